package macho

import (
	"fmt"
	"iter"

	"github.com/blacktop/go-macho/types"
)

// A LoadTable is the ordered sequence of load commands of an image.
type LoadTable struct {
	loads []Load
}

func parseLoadTable(data []byte, h *FileHeader, f Format) (*LoadTable, error) {
	c := NewCursor(data, f.ByteOrder, f.WordSize)

	start := f.HeaderSize()
	end := start + uint64(h.SizeCommands)
	if end > c.Len() {
		return nil, fmt.Errorf("%w: sizeofcmds %#x runs past end of file (%#x)", ErrOutOfBounds, h.SizeCommands, c.Len())
	}

	t := &LoadTable{loads: make([]Load, 0, min(h.NCommands, h.SizeCommands/loadCmdHeaderSize))}
	off := start
	for i := range h.NCommands {
		if off+loadCmdHeaderSize > end {
			return nil, fmt.Errorf("%w: command %d at %#x starts past sizeofcmds", ErrMalformedLoadCommand, i, off)
		}
		cmd, err := c.ReadU32(off)
		if err != nil {
			return nil, err
		}
		size, err := c.ReadU32(off + 4)
		if err != nil {
			return nil, err
		}
		if size == 0 || size%uint32(f.WordSize) != 0 {
			return nil, fmt.Errorf("%w: command %d (%s) has cmdsize %d, not a positive multiple of %d",
				ErrMalformedLoadCommand, i, types.LoadCmd(cmd), size, f.WordSize)
		}
		if off+uint64(size) > end {
			return nil, fmt.Errorf("%w: command %d (%s) runs past sizeofcmds", ErrMalformedLoadCommand, i, types.LoadCmd(cmd))
		}
		raw, err := c.ReadBytes(off, uint64(size))
		if err != nil {
			return nil, err
		}
		l, err := parseLoad(LoadBytes{cmd: types.LoadCmd(cmd), raw: raw}, f)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		t.loads = append(t.loads, l)
		off += uint64(size)
	}

	if t.TotalSize() != uint64(h.SizeCommands) {
		return nil, fmt.Errorf("%w: commands occupy %d bytes but sizeofcmds is %d", ErrMalformedLoadCommand, t.TotalSize(), h.SizeCommands)
	}

	return t, nil
}

// Len returns the number of load commands.
func (t *LoadTable) Len() int { return len(t.loads) }

// At returns the load command at index i.
func (t *LoadTable) At(i int) Load { return t.loads[i] }

// FindFirst returns the index and value of the first command of kind cmd, or (-1, nil).
func (t *LoadTable) FindFirst(cmd types.LoadCmd) (int, Load) {
	for i, l := range t.loads {
		if l.Command() == cmd {
			return i, l
		}
	}
	return -1, nil
}

// FindAll returns every command of kind cmd in file order.
func (t *LoadTable) FindAll(cmd types.LoadCmd) []Load {
	var out []Load
	for _, l := range t.loads {
		if l.Command() == cmd {
			out = append(out, l)
		}
	}
	return out
}

// Iter returns a restartable sequence over the commands in file order.
func (t *LoadTable) Iter() iter.Seq2[int, Load] {
	return func(yield func(int, Load) bool) {
		for i, l := range t.loads {
			if !yield(i, l) {
				return
			}
		}
	}
}

// TotalSize returns the sum of the declared sizes of all commands.
func (t *LoadTable) TotalSize() uint64 {
	var total uint64
	for _, l := range t.loads {
		total += uint64(l.LoadSize())
	}
	return total
}

// Insert appends l to the end of the table.
func (t *LoadTable) Insert(l Load) {
	t.loads = append(t.loads, l)
}

// Remove deletes the command at index i.
func (t *LoadTable) Remove(i int) error {
	if i < 0 || i >= len(t.loads) {
		return fmt.Errorf("%w: load command index %d (have %d)", ErrOutOfBounds, i, len(t.loads))
	}
	t.loads = append(t.loads[:i], t.loads[i+1:]...)
	return nil
}

// Replace swaps the command at index i for l.
func (t *LoadTable) Replace(i int, l Load) error {
	if i < 0 || i >= len(t.loads) {
		return fmt.Errorf("%w: load command index %d (have %d)", ErrOutOfBounds, i, len(t.loads))
	}
	t.loads[i] = l
	return nil
}

func (t *LoadTable) clone() *LoadTable {
	n := &LoadTable{loads: make([]Load, len(t.loads))}
	for i, l := range t.loads {
		n.loads[i] = l.clone()
	}
	return n
}

func (t *LoadTable) refs() []*fileRef {
	var refs []*fileRef
	for _, l := range t.loads {
		refs = append(refs, l.refs()...)
	}
	return refs
}

func (t *LoadTable) segments() []*Segment {
	var segs []*Segment
	for _, l := range t.loads {
		if s, ok := l.(*Segment); ok {
			segs = append(segs, s)
		}
	}
	return segs
}

func (t *LoadTable) codeSignature() (int, *CodeSignature) {
	for i, l := range t.loads {
		if cs, ok := l.(*CodeSignature); ok {
			return i, cs
		}
	}
	return -1, nil
}

func (t *LoadTable) encode(f Format) ([]byte, error) {
	out := make([]byte, 0, t.TotalSize())
	for i, l := range t.loads {
		b, err := l.encode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to encode command %d (%s): %w", i, l.Command(), err)
		}
		out = append(out, b...)
	}
	return out, nil
}
