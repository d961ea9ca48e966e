package macho

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"
	"github.com/blacktop/lcpatch/internal/magic"
	lcmacho "github.com/blacktop/lcpatch/pkg/macho"
	"github.com/pkg/errors"
)

// ReadThin reads a single-architecture Mach-O file into memory.
func ReadThin(path string) ([]byte, error) {
	if ok, err := magic.IsThinMachO(path); !ok {
		return nil, errors.Wrap(err, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

// Open reads and parses a single-architecture Mach-O file.
func Open(path string) (*lcmacho.File, error) {
	data, err := ReadThin(path)
	if err != nil {
		return nil, err
	}
	f, err := lcmacho.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return f, nil
}

// ListRpaths returns the LC_RPATH entries of the Mach-O at path.
func ListRpaths(path string) ([]string, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	return f.Rpaths(), nil
}

// Verify runs the offset-consistency checks on the Mach-O at path and makes
// sure go-macho reads the same LC_RPATH entries.
func Verify(path string) error {
	f, err := Open(path)
	if err != nil {
		return err
	}
	if err := f.Verify(); err != nil {
		return errors.Wrapf(err, "%s failed verification", path)
	}
	data, err := f.Bytes()
	if err != nil {
		return errors.Wrap(err, "failed to re-serialize")
	}
	return crossCheck(data, f.Rpaths())
}

// crossCheck parses data with go-macho and compares its LC_RPATH list to want.
func crossCheck(data []byte, want []string) error {
	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "go-macho failed to parse the image")
	}
	defer m.Close()

	var got []string
	for _, l := range m.Loads {
		if r, ok := l.(*macho.Rpath); ok {
			got = append(got, r.Path)
		}
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("go-macho reads LC_RPATHs %q, expected %q", got, want)
	}

	log.WithFields(log.Fields{
		"cpu":    m.CPU.String(),
		"ncmds":  m.NCommands,
		"rpaths": len(got),
	}).Debug("go-macho agrees")

	return nil
}
