package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/go-macho/pkg/codesign"
	cstypes "github.com/blacktop/go-macho/pkg/codesign/types"
)

// A SignaturePolicy decides what an edit does to a signed image.
type SignaturePolicy int

const (
	// SignatureFail refuses to edit a signed image.
	SignatureFail SignaturePolicy = iota
	// SignatureStrip removes the code signature as part of the edit.
	SignatureStrip
	// SignatureIgnore edits the image and leaves a stale signature behind.
	SignatureIgnore
)

var signaturePolicyNames = map[SignaturePolicy]string{
	SignatureFail:   "fail",
	SignatureStrip:  "strip",
	SignatureIgnore: "ignore",
}

func (p SignaturePolicy) String() string {
	if s, ok := signaturePolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("SignaturePolicy(%d)", int(p))
}

// ParseSignaturePolicy converts "fail", "strip" or "ignore" into a SignaturePolicy.
func ParseSignaturePolicy(s string) (SignaturePolicy, error) {
	for p, name := range signaturePolicyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return SignatureFail, fmt.Errorf("invalid signature policy %q (expected fail, strip or ignore)", s)
}

func (p SignaturePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *SignaturePolicy) UnmarshalText(text []byte) error {
	v, err := ParseSignaturePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Signature decodes the embedded code signature referenced by
// LC_CODE_SIGNATURE. It returns nil and no error for unsigned images.
func (f *File) Signature() (*codesign.CodeSignature, error) {
	cs := f.CodeSignature()
	if cs == nil {
		return nil, nil
	}
	if cs.end() > f.Size() {
		return nil, fmt.Errorf("%w: code signature [%#x, %#x) exceeds file size %#x", ErrOutOfBounds, cs.Offset, cs.end(), f.Size())
	}
	blob := f.data[cs.Offset:cs.end()]

	r := bytes.NewReader(blob)
	var sb cstypes.SbHeader
	if err := binary.Read(r, binary.BigEndian, &sb); err != nil {
		return nil, fmt.Errorf("%w: code signature header: %v", ErrOutOfBounds, err)
	}
	if sb.Magic != cstypes.MAGIC_EMBEDDED_SIGNATURE {
		return nil, fmt.Errorf("%w: code signature magic %s", ErrInvalidMagic, sb.Magic)
	}
	// ParseCodeSignature allocates from the entry count and blob lengths
	if uint64(sb.Count)*uint64(binary.Size(cstypes.BlobIndex{})) > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: super blob claims %d entries in %d bytes", ErrOutOfBounds, sb.Count, len(blob))
	}
	idx := make([]cstypes.BlobIndex, sb.Count)
	if err := binary.Read(r, binary.BigEndian, idx); err != nil {
		return nil, err
	}
	for _, bi := range idx {
		var bh cstypes.BlobHeader
		if _, err := binary.Decode(blob[min(uint64(bi.Offset), uint64(len(blob))):], binary.BigEndian, &bh); err != nil {
			return nil, fmt.Errorf("%w: %s blob at %#x: %v", ErrOutOfBounds, bi.Type, bi.Offset, err)
		}
		if uint64(bi.Offset)+uint64(bh.Length) > uint64(len(blob)) {
			return nil, fmt.Errorf("%w: %s blob [%#x, %#x) exceeds signature size %#x", ErrOutOfBounds, bi.Type, bi.Offset, uint64(bi.Offset)+uint64(bh.Length), len(blob))
		}
	}

	sig, err := codesign.ParseCodeSignature(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse code signature: %w", err)
	}
	return sig, nil
}

// stripSignature removes LC_CODE_SIGNATURE from t. It returns the file length
// to keep, which drops the blob when it is the last thing in the file, and the
// blob range that has to be zeroed otherwise.
func (f *File) stripSignature(t *LoadTable) (tailEnd uint64, zero *fileRef, err error) {
	i, cs := t.codeSignature()
	if cs == nil {
		return f.Size(), nil, nil
	}
	if err := t.Remove(i); err != nil {
		return 0, nil, err
	}

	if cs.end() != f.Size() {
		return f.Size(), &fileRef{name: "code signature", off: uint64(cs.Offset), size: uint64(cs.Size)}, nil
	}

	for _, seg := range t.segments() {
		if seg.Filesz > 0 && seg.Offset+seg.Filesz == cs.end() && seg.Offset <= uint64(cs.Offset) {
			seg.Filesz = uint64(cs.Offset) - seg.Offset
		}
	}

	return uint64(cs.Offset), nil, nil
}
