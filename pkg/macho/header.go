package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/lcpatch/internal/magic"
)

const (
	fileHeaderSize32 = 7 * 4
	fileHeaderSize64 = 8 * 4
)

// A Format describes how an image encodes its fields.
type Format struct {
	ByteOrder binary.ByteOrder
	WordSize  int
}

// Is64 reports whether the image uses the 64-bit layouts.
func (f Format) Is64() bool { return f.WordSize == 8 }

// HeaderSize returns the size of the mach_header for the format.
func (f Format) HeaderSize() uint64 {
	if f.Is64() {
		return fileHeaderSize64
	}
	return fileHeaderSize32
}

func (f Format) nlistSize() uint64 {
	if f.Is64() {
		return 16
	}
	return 12
}

func (f Format) String() string {
	if f.ByteOrder == binary.BigEndian {
		return fmt.Sprintf("%d-bit big-endian", f.WordSize*8)
	}
	return fmt.Sprintf("%d-bit little-endian", f.WordSize*8)
}

// A FileHeader represents a Mach-O file header.
type FileHeader struct {
	Magic        types.Magic
	CPU          types.CPU
	SubCPU       types.CPUSubtype
	Type         types.HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        types.HeaderFlag
	Reserved     uint32
}

// ParseHeader decodes the mach_header at the start of data.
func ParseHeader(data []byte) (*FileHeader, Format, error) {
	if len(data) < 4 {
		return nil, Format{}, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidMagic, len(data))
	}

	var f Format
	var m types.Magic

	raw := magic.Magic(binary.LittleEndian.Uint32(data))
	switch raw {
	case magic.Magic32:
		f, m = Format{ByteOrder: binary.LittleEndian, WordSize: 4}, types.Magic32
	case magic.Magic64:
		f, m = Format{ByteOrder: binary.LittleEndian, WordSize: 8}, types.Magic64
	case magic.Cigam32:
		f, m = Format{ByteOrder: binary.BigEndian, WordSize: 4}, types.Magic32
	case magic.Cigam64:
		f, m = Format{ByteOrder: binary.BigEndian, WordSize: 8}, types.Magic64
	case magic.MagicFatBE, magic.MagicFatLE, magic.MagicFat64:
		return nil, Format{}, fmt.Errorf("%w: %s file; a thin slice is required", ErrInvalidMagic, raw)
	default:
		return nil, Format{}, fmt.Errorf("%w: %s", ErrInvalidMagic, raw)
	}

	c := NewCursor(data, f.ByteOrder, f.WordSize)
	if c.Len() < f.HeaderSize() {
		return nil, Format{}, fmt.Errorf("%w: truncated %s header", ErrOutOfBounds, f)
	}

	var fields [7]uint32
	n := len(fields)
	if !f.Is64() {
		n--
	}
	for i := range n {
		v, err := c.ReadU32(uint64(4 + 4*i))
		if err != nil {
			return nil, Format{}, err
		}
		fields[i] = v
	}

	h := &FileHeader{
		Magic:        m,
		CPU:          types.CPU(fields[0]),
		SubCPU:       types.CPUSubtype(fields[1]),
		Type:         types.HeaderFileType(fields[2]),
		NCommands:    fields[3],
		SizeCommands: fields[4],
		Flags:        types.HeaderFlag(fields[5]),
	}
	if f.Is64() {
		h.Reserved = fields[6]
	}

	return h, f, nil
}

func (h *FileHeader) put(c *Cursor, f Format) error {
	fields := []uint32{
		uint32(h.Magic),
		uint32(h.CPU),
		uint32(h.SubCPU),
		uint32(h.Type),
		h.NCommands,
		h.SizeCommands,
		uint32(h.Flags),
	}
	if f.Is64() {
		fields = append(fields, h.Reserved)
	}
	for i, v := range fields {
		if err := c.WriteU32(uint64(4*i), v); err != nil {
			return err
		}
	}
	return nil
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %s\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, h.SubCPU.String(h.CPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags.Flags(),
	)
}
