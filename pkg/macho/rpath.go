package macho

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-macho/types"
)

var errUnchanged = errors.New("unchanged")

// AddRpath returns a copy of data with an LC_RPATH for path appended to the load commands.
func AddRpath(data []byte, path string, opts ...Option) ([]byte, error) {
	return edit(data, opts, func(f *File, t *LoadTable, conf *Config) error {
		if err := checkPath(path, conf); err != nil {
			return err
		}
		if conf.RejectDuplicates {
			if i := findRpath(t, path); i >= 0 {
				return fmt.Errorf("%w: %s (load command %d)", ErrDuplicateRpath, path, i)
			}
		}
		t.Insert(NewRpath(path, f.Format))
		return nil
	})
}

// RemoveRpath returns a copy of data without the LC_RPATH for path.
func RemoveRpath(data []byte, path string, opts ...Option) ([]byte, error) {
	return edit(data, opts, func(f *File, t *LoadTable, conf *Config) error {
		i := findRpath(t, path)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrRpathNotFound, path)
		}
		return t.Remove(i)
	})
}

// ChangeRpath returns a copy of data with the LC_RPATH for oldPath rewritten to newPath.
func ChangeRpath(data []byte, oldPath, newPath string, opts ...Option) ([]byte, error) {
	return edit(data, opts, func(f *File, t *LoadTable, conf *Config) error {
		if err := checkPath(newPath, conf); err != nil {
			return err
		}
		i := findRpath(t, oldPath)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrRpathNotFound, oldPath)
		}
		if oldPath == newPath {
			return errUnchanged
		}
		if conf.RejectDuplicates {
			if j := findRpath(t, newPath); j >= 0 {
				return fmt.Errorf("%w: %s (load command %d)", ErrDuplicateRpath, newPath, j)
			}
		}
		return t.Replace(i, NewRpath(newPath, f.Format))
	})
}

// ListRpaths returns the LC_RPATH paths of data in load command order.
func ListRpaths(data []byte) ([]string, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return f.Rpaths(), nil
}

func checkPath(path string, conf *Config) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, path)
	}
	if len(path) > conf.MaxPathLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPathTooLong, len(path), conf.MaxPathLength)
	}
	return nil
}

func findRpath(t *LoadTable, path string) int {
	for i, l := range t.Iter() {
		if r, ok := l.(*Rpath); ok && r.Path == path {
			return i
		}
	}
	return -1
}

// edit parses data, lets mutate change a copy of the load commands and
// rebuilds the image around the result.
func edit(data []byte, opts []Option, mutate func(*File, *LoadTable, *Config) error) ([]byte, error) {
	conf, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	next := f.Loads.clone()
	if err := mutate(f, next, conf); err != nil {
		if errors.Is(err, errUnchanged) {
			return bytes.Clone(data), nil
		}
		return nil, err
	}
	return f.rebuild(next, conf)
}

// rebuild lays out next in place of the image's load commands.
func (f *File) rebuild(next *LoadTable, conf *Config) ([]byte, error) {
	tailEnd := f.Size()
	var stale *fileRef

	if _, cs := next.codeSignature(); cs != nil {
		switch conf.SignaturePolicy {
		case SignatureFail:
			return nil, fmt.Errorf("%w: image has an LC_CODE_SIGNATURE (strip it, or re-sign after editing)", ErrSignatureInvalidated)
		case SignatureStrip:
			var err error
			if tailEnd, stale, err = f.stripSignature(next); err != nil {
				return nil, err
			}
			log.WithField("size", cs.Size).Debug("stripping code signature")
		case SignatureIgnore:
			log.Debug("leaving invalidated code signature in place")
		}
	}

	plan, err := f.plan(next, conf)
	if err != nil {
		return nil, err
	}
	relocated, err := relocate(next, plan, tailEnd+plan.Delta)
	if err != nil {
		return nil, err
	}
	out, err := f.emit(relocated, plan, tailEnd)
	if err != nil {
		return nil, err
	}

	if stale != nil {
		off := stale.off
		if plan.Delta > 0 && off >= plan.Pivot {
			off += plan.Delta
		}
		if end := off + stale.size; end <= uint64(len(out)) {
			clear(out[off:end])
		}
	}

	if _, err := Parse(out); err != nil {
		return nil, fmt.Errorf("edited image does not parse: %w", err)
	}

	return out, nil
}

// HasRpath reports whether the image has an LC_RPATH for path.
func (f *File) HasRpath(path string) bool {
	return findRpath(f.Loads, path) >= 0
}

// RpathLoads returns the LC_RPATH commands.
func (f *File) RpathLoads() []*Rpath {
	var out []*Rpath
	for _, l := range f.Loads.FindAll(types.LC_RPATH) {
		out = append(out, l.(*Rpath))
	}
	return out
}
