package magic

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Magic is the first four bytes of a file read in little-endian order.
type Magic uint32

const (
	Magic32    Magic = 0xfeedface
	Magic64    Magic = 0xfeedfacf
	Cigam32    Magic = 0xcefaedfe
	Cigam64    Magic = 0xcffaedfe
	MagicFatBE Magic = 0xbebafeca // FAT_MAGIC stored big-endian, the usual form
	MagicFatLE Magic = 0xcafebabe
	MagicFat64 Magic = 0xbfbafeca
)

func (m Magic) String() string {
	switch m {
	case Magic32:
		return "32-bit little-endian"
	case Magic64:
		return "64-bit little-endian"
	case Cigam32:
		return "32-bit big-endian"
	case Cigam64:
		return "64-bit big-endian"
	case MagicFatBE, MagicFatLE:
		return "universal"
	case MagicFat64:
		return "universal (64-bit)"
	default:
		return fmt.Sprintf("%#08x", uint32(m))
	}
}

// Kind is the container type of a Mach-O file.
type Kind int

const (
	NotMachO Kind = iota
	Thin
	Fat
)

func (k Kind) String() string {
	switch k {
	case Thin:
		return "thin"
	case Fat:
		return "universal"
	default:
		return "not a macho"
	}
}

// Classify reports the container type from the first four bytes of a file.
func Classify(hdr []byte) Kind {
	if len(hdr) < 4 {
		return NotMachO
	}
	switch Magic(binary.LittleEndian.Uint32(hdr)) {
	case Magic32, Magic64, Cigam32, Cigam64:
		return Thin
	case MagicFatBE, MagicFatLE, MagicFat64:
		return Fat
	default:
		return NotMachO
	}
}

func readMagic(filePath string) (Kind, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return NotMachO, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		return NotMachO, fmt.Errorf("failed to read magic: %w", err)
	}

	return Classify(magic[:]), nil
}

// IsThinMachO reports whether filePath is a single-architecture Mach-O.
func IsThinMachO(filePath string) (bool, error) {
	kind, err := readMagic(filePath)
	if err != nil {
		return false, err
	}
	switch kind {
	case Thin:
		return true, nil
	case Fat:
		return false, fmt.Errorf("universal macho files are not supported (extract a slice with `lipo -thin`)")
	default:
		return false, fmt.Errorf("not a macho file")
	}
}
