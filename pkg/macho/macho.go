// Package macho parses single-architecture Mach-O images and rewrites their
// load-command region.
//
// Every edit is a pure function from the input bytes to a freshly allocated
// output: the input slice is never modified and no partially edited image is
// ever returned.
package macho

import (
	"errors"
	"fmt"

	"github.com/blacktop/go-macho/types"
)

// A File is a parsed Mach-O image.
type File struct {
	FileHeader
	Format
	Loads *LoadTable

	data []byte
}

// Parse decodes the header and load commands of a thin Mach-O image.
// The returned File keeps a reference to data, which must not be modified.
func Parse(data []byte) (*File, error) {
	h, f, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	loads, err := parseLoadTable(data, h, f)
	if err != nil {
		return nil, err
	}
	if uint32(loads.Len()) != h.NCommands {
		return nil, fmt.Errorf("%w: parsed %d commands, header says %d", ErrMalformedLoadCommand, loads.Len(), h.NCommands)
	}
	return &File{FileHeader: *h, Format: f, Loads: loads, data: data}, nil
}

// Size returns the length of the image in bytes.
func (f *File) Size() uint64 { return uint64(len(f.data)) }

// LoadsEnd returns the file offset one past the last load command.
func (f *File) LoadsEnd() uint64 {
	return f.HeaderSize() + uint64(f.SizeCommands)
}

// Bytes re-serializes the image. Without edits the result equals the input.
func (f *File) Bytes() ([]byte, error) {
	return f.emit(f.Loads, &RelocationPlan{Pivot: f.Boundary()}, f.Size())
}

// Segments returns the segment commands in file order.
func (f *File) Segments() []*Segment {
	return f.Loads.segments()
}

// Segment returns the first segment named name, or nil.
func (f *File) Segment(name string) *Segment {
	for _, s := range f.Loads.segments() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// CodeSignature returns the LC_CODE_SIGNATURE command, or nil.
func (f *File) CodeSignature() *CodeSignature {
	_, cs := f.Loads.codeSignature()
	return cs
}

// Rpaths returns the LC_RPATH paths in file order.
func (f *File) Rpaths() []string {
	var paths []string
	for _, l := range f.Loads.FindAll(types.LC_RPATH) {
		paths = append(paths, l.(*Rpath).Path)
	}
	return paths
}

// Boundary returns the offset of the first byte after the load commands that
// belongs to file content: the lowest referenced offset at or after LoadsEnd,
// lowered to the first non-zero byte of the gap.
func (f *File) Boundary() uint64 {
	end := f.LoadsEnd()
	boundary := f.Size()
	for _, r := range f.Loads.refs() {
		if r.size > 0 && r.off >= end && r.off < boundary {
			boundary = r.off
		}
	}
	for i, b := range f.data[end:boundary] {
		if b != 0 {
			return max(end, alignDown(end+uint64(i), uint64(f.WordSize)))
		}
	}
	return boundary
}

// Slack returns the number of zero bytes available for load command growth.
func (f *File) Slack() uint64 {
	return f.Boundary() - f.LoadsEnd()
}

// Verify checks the offset consistency of the image: every referenced range
// lies within the file, non-zerofill sections lie within their segment and no
// content overlaps the load commands.
func (f *File) Verify() error {
	var errs []error

	end := f.LoadsEnd()
	for _, r := range f.Loads.refs() {
		if r.size == 0 {
			continue
		}
		if r.off+r.size > f.Size() {
			errs = append(errs, fmt.Errorf("%w: %s [%#x, %#x) exceeds file size %#x", ErrOutOfBounds, r.name, r.off, r.off+r.size, f.Size()))
		}
		if r.off < end && !(r.segment && r.off == 0) {
			errs = append(errs, fmt.Errorf("%w: %s at %#x overlaps load commands ending at %#x", ErrMalformedLoadCommand, r.name, r.off, end))
		}
	}

	for _, seg := range f.Segments() {
		if seg.Filesz == 0 {
			continue
		}
		for _, sect := range seg.Sections {
			if sect.zerofill() || sect.Size == 0 {
				continue
			}
			if !seg.contains(uint64(sect.Offset), sect.Size) {
				errs = append(errs, fmt.Errorf("%w: section %s.%s [%#x, %#x) outside segment %s [%#x, %#x)", ErrOutOfBounds,
					sect.Seg, sect.Name, sect.Offset, uint64(sect.Offset)+sect.Size, seg.Name, seg.Offset, seg.Offset+seg.Filesz))
			}
		}
	}

	return errors.Join(errs...)
}
