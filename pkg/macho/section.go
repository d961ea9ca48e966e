package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"
)

var (
	section32Size = uint64(binary.Size(types.Section32{}))
	section64Size = uint64(binary.Size(types.Section64{}))
	relocSize     = uint64(binary.Size(types.RelocInfo{}))
)

// A Section is a section header inside a segment load command.
type Section struct {
	Name      string
	Seg       string
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

func sectionSize(f Format) uint64 {
	if f.Is64() {
		return section64Size
	}
	return section32Size
}

// readSection decodes the next section header of a segment command.
func readSection(r *bytes.Reader, f Format) (*Section, error) {
	if f.Is64() {
		var h types.Section64
		if err := binary.Read(r, f.ByteOrder, &h); err != nil {
			return nil, err
		}
		return &Section{
			Name: cstring(h.Name[:]), Seg: cstring(h.Seg[:]),
			Addr: h.Addr, Size: h.Size,
			Offset: h.Offset, Align: h.Align, Reloff: h.Reloff, Nreloc: h.Nreloc, Flags: h.Flags,
			Reserved1: h.Reserve1, Reserved2: h.Reserve2, Reserved3: h.Reserve3,
		}, nil
	}
	var h types.Section32
	if err := binary.Read(r, f.ByteOrder, &h); err != nil {
		return nil, err
	}
	return &Section{
		Name: cstring(h.Name[:]), Seg: cstring(h.Seg[:]),
		Addr: uint64(h.Addr), Size: uint64(h.Size),
		Offset: h.Offset, Align: h.Align, Reloff: h.Reloff, Nreloc: h.Nreloc, Flags: h.Flags,
		Reserved1: h.Reserve1, Reserved2: h.Reserve2,
	}, nil
}

// header reads the original section header from r and returns it with the
// mutable fields of s applied.
func (s *Section) header(r *bytes.Reader, f Format) (any, error) {
	if f.Is64() {
		var h types.Section64
		if err := binary.Read(r, f.ByteOrder, &h); err != nil {
			return nil, err
		}
		h.Addr, h.Size = s.Addr, s.Size
		h.Offset, h.Align, h.Reloff, h.Nreloc, h.Flags = s.Offset, s.Align, s.Reloff, s.Nreloc, s.Flags
		return h, nil
	}
	var h types.Section32
	if err := binary.Read(r, f.ByteOrder, &h); err != nil {
		return nil, err
	}
	h.Addr, h.Size = uint32(s.Addr), uint32(s.Size)
	h.Offset, h.Align, h.Reloff, h.Nreloc, h.Flags = s.Offset, s.Align, s.Reloff, s.Nreloc, s.Flags
	return h, nil
}

// zerofill reports whether the section occupies no bytes in the file.
func (s *Section) zerofill() bool {
	return s.Flags.IsZerofill() || s.Flags.IsGbZerofill() || s.Flags.IsThreadLocalZerofill()
}

func (s *Section) refs() []*fileRef {
	refs := []*fileRef{{
		name:  fmt.Sprintf("relocations %s.%s", s.Seg, s.Name),
		off:   uint64(s.Reloff),
		size:  uint64(s.Nreloc) * relocSize,
		width: 4,
		set:   func(v uint64) { s.Reloff = uint32(v) },
	}}
	if !s.zerofill() {
		refs = append(refs, &fileRef{
			name:  fmt.Sprintf("section %s.%s", s.Seg, s.Name),
			off:   uint64(s.Offset),
			size:  s.Size,
			width: 4,
			set:   func(v uint64) { s.Offset = uint32(v) },
			align: uint64(1) << min(s.Align, 31),
		})
	}
	return refs
}

func (s *Section) String() string {
	return fmt.Sprintf("%s.%s\taddr=%#x size=%#x offset=%#x align=2^%d %s", s.Seg, s.Name, s.Addr, s.Size, s.Offset, s.Align, s.Flags)
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
