// Package machotest builds small synthetic Mach-O images for tests.
package machotest

import (
	"bytes"
	"encoding/binary"

	cstypes "github.com/blacktop/go-macho/pkg/codesign/types"
	"github.com/blacktop/go-macho/types"
)

const pageSize = 0x1000

// FillerCmd is the kind of the opaque command used to pad load commands.
const FillerCmd types.LoadCmd = 0x7f

// SignatureID is the identifier of the code directory in signed images.
const SignatureID = "lcpatch"

// A Builder describes a minimal image: __PAGEZERO, __TEXT with one __text
// section, __LINKEDIT holding a one-symbol symbol table, LC_SYMTAB,
// LC_DYSYMTAB, LC_LOAD_DYLINKER, LC_UUID, the requested LC_RPATHs, any extra
// raw commands and an optional LC_CODE_SIGNATURE.
type Builder struct {
	ByteOrder binary.ByteOrder     // defaults to little-endian
	Is32      bool
	CPU       types.CPU            // defaults to arm64 (arm for 32-bit)
	Type      types.HeaderFileType // defaults to MH_EXECUTE
	Rpaths    []string
	Extra     [][]byte // raw load commands, encoded by the caller
	Signed    bool
	Slack     uint64 // zero bytes between the load commands and __text
	// PageAlign pads the load commands with an opaque filler command so
	// that they end exactly on a page boundary, leaving no slack.
	PageAlign bool
	// TextAtZero makes __TEXT map the file from offset 0, header included.
	TextAtZero bool
	Text       []byte
	// Relocs gives __text that many zeroed relocation entries, also listed
	// as local relocations in LC_DYSYMTAB.
	Relocs int
}

// An Image is a built image and the offsets it was laid out with.
type Image struct {
	Data       []byte
	LoadsEnd   uint64
	TextOffset uint64
	TextSize   uint64
	LinkEdit   uint64
	SymOff     uint64
	StrOff     uint64
	RelocOff   uint64
	SigOff     uint64
	SigSize    uint64
}

func (b Builder) order() binary.ByteOrder {
	if b.ByteOrder == nil {
		return binary.LittleEndian
	}
	return b.ByteOrder
}

func (b Builder) word() uint64 {
	if b.Is32 {
		return 4
	}
	return 8
}

func (b Builder) text() []byte {
	if b.Text != nil {
		return b.Text
	}
	// four arm64 nops
	return []byte{
		0x1f, 0x20, 0x03, 0xd5, 0x1f, 0x20, 0x03, 0xd5,
		0x1f, 0x20, 0x03, 0xd5, 0x1f, 0x20, 0x03, 0xd5,
	}
}

func alignUp(v, a uint64) uint64 {
	if r := v % a; r != 0 {
		return v + a - r
	}
	return v
}

// Build lays out and encodes the image.
func (b Builder) Build() *Image {
	o := b.order()
	word := b.word()
	text := b.text()

	headerSize := uint64(32)
	segSize, sectSize, nlistSize := uint64(72), uint64(80), uint64(16)
	segCmd := types.LC_SEGMENT_64
	magic := types.Magic64
	cpu := types.CPUArm64
	textAddr := uint64(0x100000000)
	if b.Is32 {
		headerSize, segSize, sectSize, nlistSize = 28, 56, 68, 12
		segCmd = types.LC_SEGMENT
		magic = types.Magic32
		cpu = types.CPUArm
		textAddr = 0x4000
	}
	if b.CPU != 0 {
		cpu = b.CPU
	}

	var cmds [][]byte
	dylinker := lcStr(o, types.LC_LOAD_DYLINKER, "/usr/lib/dyld", word)
	sizeofcmds := 3*segSize + sectSize + 24 + 80 + uint64(len(dylinker)) + 24
	for _, r := range b.Rpaths {
		sizeofcmds += uint64(len(lcStr(o, types.LC_RPATH, r, word)))
	}
	for _, e := range b.Extra {
		sizeofcmds += uint64(len(e))
	}
	if b.Signed {
		sizeofcmds += 16
	}

	var filler []byte
	if b.PageAlign {
		end := headerSize + sizeofcmds
		filler = Command(o, FillerCmd, make([]byte, alignUp(end+8, pageSize)-end-8), word)
		sizeofcmds += uint64(len(filler))
	}

	img := &Image{LoadsEnd: headerSize + sizeofcmds}
	img.TextOffset = alignUp(img.LoadsEnd+b.Slack, word)
	img.TextSize = uint64(len(text))
	img.LinkEdit = alignUp(img.TextOffset+img.TextSize, 16)
	img.SymOff = img.LinkEdit
	img.StrOff = img.SymOff + nlistSize
	strtab := []byte("\x00_main\x00\x00")
	end := img.StrOff + uint64(len(strtab))
	if b.Relocs > 0 {
		img.RelocOff = alignUp(end, 8)
		end = img.RelocOff + 8*uint64(b.Relocs)
	}
	var sig []byte
	if b.Signed {
		img.SigOff = alignUp(end, 16)
		sig = superBlob()
		img.SigSize = uint64(len(sig))
		end = img.SigOff + img.SigSize
	}

	textFileOff, textFileSize := img.TextOffset, img.TextSize
	if b.TextAtZero {
		textFileOff, textFileSize = 0, img.LinkEdit
	}
	textVMSize := alignUp(textFileSize+textFileOff%pageSize, pageSize)
	linkeditAddr := textAddr + alignUp(img.LinkEdit, pageSize) + pageSize

	pagezeroSize := uint64(0x100000000)
	if b.Is32 {
		pagezeroSize = 0x4000
	}
	cmds = append(cmds,
		segment(o, b.Is32, segCmd, "__PAGEZERO", 0, pagezeroSize, 0, 0, 0, 0, nil),
		segment(o, b.Is32, segCmd, "__TEXT", textAddr, textVMSize, textFileOff, textFileSize, 5, 5, &section{
			name:   "__text",
			seg:    "__TEXT",
			addr:   textAddr + img.TextOffset - textFileOff,
			size:   img.TextSize,
			offset: img.TextOffset,
			align:  2,
			reloff: img.RelocOff,
			nreloc: uint64(b.Relocs),
			flags:  0x80000400,
		}),
		segment(o, b.Is32, segCmd, "__LINKEDIT", linkeditAddr, alignUp(end-img.LinkEdit, pageSize), img.LinkEdit, end-img.LinkEdit, 1, 1, nil),
		u32Cmd(o, types.LC_SYMTAB, uint32(img.SymOff), 1, uint32(img.StrOff), uint32(len(strtab))),
		u32Cmd(o, types.LC_DYSYMTAB, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, uint32(img.RelocOff), uint32(b.Relocs)),
		dylinker,
		uuid(o),
	)
	for _, r := range b.Rpaths {
		cmds = append(cmds, lcStr(o, types.LC_RPATH, r, word))
	}
	cmds = append(cmds, b.Extra...)
	if filler != nil {
		cmds = append(cmds, filler)
	}
	if b.Signed {
		cmds = append(cmds, u32Cmd(o, types.LC_CODE_SIGNATURE, uint32(img.SigOff), uint32(img.SigSize)))
	}

	data := make([]byte, end)
	o.PutUint32(data[0:], uint32(magic))
	o.PutUint32(data[4:], uint32(cpu))
	o.PutUint32(data[8:], 0)
	typ := types.MH_EXECUTE
	if b.Type != 0 {
		typ = b.Type
	}
	o.PutUint32(data[12:], uint32(typ))
	o.PutUint32(data[16:], uint32(len(cmds)))
	o.PutUint32(data[20:], uint32(sizeofcmds))
	o.PutUint32(data[24:], uint32(types.NoUndefs|types.DyldLink|types.TwoLevel|types.PIE))

	off := headerSize
	for _, c := range cmds {
		copy(data[off:], c)
		off += uint64(len(c))
	}
	if off != img.LoadsEnd {
		panic("machotest: load command size mismatch")
	}

	copy(data[img.TextOffset:], text)

	nlist := data[img.SymOff:]
	o.PutUint32(nlist[0:], 1) // n_strx
	nlist[4] = 0x0f           // N_SECT|N_EXT
	nlist[5] = 1              // n_sect
	if b.Is32 {
		o.PutUint32(nlist[8:], uint32(textAddr))
	} else {
		o.PutUint64(nlist[8:], textAddr)
	}
	copy(data[img.StrOff:], strtab)
	copy(data[img.SigOff:], sig)

	img.Data = data
	return img
}

type section struct {
	name, seg      string
	addr, size     uint64
	offset         uint64
	reloff, nreloc uint64
	align, flags   uint32
}

func segment(o binary.ByteOrder, is32 bool, cmd types.LoadCmd, name string, addr, vmsize, fileoff, filesize uint64, maxprot, prot uint32, sect *section) []byte {
	segSize, sectSize := 72, 80
	if is32 {
		segSize, sectSize = 56, 68
	}
	nsects := 0
	if sect != nil {
		nsects = 1
	}
	buf := make([]byte, segSize+nsects*sectSize)
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], uint32(len(buf)))
	copy(buf[8:24], name)
	tail := 56
	if is32 {
		o.PutUint32(buf[24:], uint32(addr))
		o.PutUint32(buf[28:], uint32(vmsize))
		o.PutUint32(buf[32:], uint32(fileoff))
		o.PutUint32(buf[36:], uint32(filesize))
		tail = 40
	} else {
		o.PutUint64(buf[24:], addr)
		o.PutUint64(buf[32:], vmsize)
		o.PutUint64(buf[40:], fileoff)
		o.PutUint64(buf[48:], filesize)
	}
	o.PutUint32(buf[tail:], maxprot)
	o.PutUint32(buf[tail+4:], prot)
	o.PutUint32(buf[tail+8:], uint32(nsects))
	if sect == nil {
		return buf
	}

	s := buf[segSize:]
	copy(s[0:16], sect.name)
	copy(s[16:32], sect.seg)
	rest := 48
	if is32 {
		o.PutUint32(s[32:], uint32(sect.addr))
		o.PutUint32(s[36:], uint32(sect.size))
		rest = 40
	} else {
		o.PutUint64(s[32:], sect.addr)
		o.PutUint64(s[40:], sect.size)
	}
	o.PutUint32(s[rest:], uint32(sect.offset))
	o.PutUint32(s[rest+4:], sect.align)
	o.PutUint32(s[rest+8:], uint32(sect.reloff))
	o.PutUint32(s[rest+12:], uint32(sect.nreloc))
	o.PutUint32(s[rest+16:], sect.flags)
	return buf
}

func u32Cmd(o binary.ByteOrder, cmd types.LoadCmd, vals ...uint32) []byte {
	buf := make([]byte, 8+4*len(vals))
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], uint32(len(buf)))
	for i, v := range vals {
		o.PutUint32(buf[8+4*i:], v)
	}
	return buf
}

func lcStr(o binary.ByteOrder, cmd types.LoadCmd, s string, word uint64) []byte {
	buf := make([]byte, alignUp(12+uint64(len(s))+1, word))
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], uint32(len(buf)))
	o.PutUint32(buf[8:], 12)
	copy(buf[12:], s)
	return buf
}

func uuid(o binary.ByteOrder) []byte {
	buf := make([]byte, 24)
	o.PutUint32(buf[0:], uint32(types.LC_UUID))
	o.PutUint32(buf[4:], 24)
	copy(buf[8:], []byte{
		0x4c, 0x43, 0x50, 0x41, 0x54, 0x43, 0x48, 0x2d,
		0x54, 0x45, 0x53, 0x54, 0x2d, 0x55, 0x55, 0x49,
	})
	return buf
}

// superBlob returns an embedded signature holding one code directory with no
// hash slots.
func superBlob() []byte {
	ident := []byte(SignatureID + "\x00")
	cdHeader := uint32(binary.Size(cstypes.BlobHeader{}) + binary.Size(cstypes.CdEarliest{}))
	cdLen := cdHeader + uint32(len(ident))
	cdOff := uint32(binary.Size(cstypes.SbHeader{}) + binary.Size(cstypes.BlobIndex{}))

	var buf bytes.Buffer
	for _, v := range []any{
		cstypes.SbHeader{Magic: cstypes.MAGIC_EMBEDDED_SIGNATURE, Length: cdOff + cdLen, Count: 1},
		cstypes.BlobIndex{Type: cstypes.CSSLOT_CODEDIRECTORY, Offset: cdOff},
		cstypes.BlobHeader{Magic: cstypes.MAGIC_CODEDIRECTORY, Length: cdLen},
		cstypes.CdEarliest{
			Version:     cstypes.EARLIEST_VERSION,
			HashOffset:  cdLen,
			IdentOffset: cdHeader,
			HashSize:    32,
			HashType:    cstypes.HASHTYPE_SHA256,
			PageSize:    12,
		},
	} {
		binary.Write(&buf, binary.BigEndian, v)
	}
	buf.Write(ident)
	return buf.Bytes()
}

// Command encodes a raw load command of kind cmd with the given payload,
// zero padded to word bytes.
func Command(o binary.ByteOrder, cmd types.LoadCmd, payload []byte, word uint64) []byte {
	buf := make([]byte, alignUp(8+uint64(len(payload)), word))
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], uint32(len(buf)))
	copy(buf[8:], payload)
	return buf
}
