package macho

import (
	"fmt"
	"math"
)

// emit writes the header, the commands of t and the original content from
// plan.Pivot up to tailEnd (moved by plan.Delta) into a new buffer.
func (f *File) emit(t *LoadTable, plan *RelocationPlan, tailEnd uint64) ([]byte, error) {
	cmds, err := t.encode(f.Format)
	if err != nil {
		return nil, err
	}
	if uint64(len(cmds)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: sizeofcmds %d does not fit in 32 bits", ErrRelocationOverflow, len(cmds))
	}

	hdr := f.FileHeader
	hdr.NCommands = uint32(t.Len())
	hdr.SizeCommands = uint32(len(cmds))

	cmdsEnd := f.HeaderSize() + uint64(len(cmds))
	if cmdsEnd > plan.Pivot+plan.Delta {
		return nil, fmt.Errorf("%w: load commands end at %#x, content starts at %#x", ErrInsufficientPadding, cmdsEnd, plan.Pivot+plan.Delta)
	}
	if tailEnd < plan.Pivot || tailEnd > f.Size() {
		return nil, fmt.Errorf("%w: tail [%#x, %#x) of %#x byte file", ErrOutOfBounds, plan.Pivot, tailEnd, f.Size())
	}

	out := make([]byte, tailEnd+plan.Delta)
	copy(out, f.data[:plan.Pivot])
	copy(out[plan.Pivot+plan.Delta:], f.data[plan.Pivot:tailEnd])

	c := NewCursor(out, f.ByteOrder, f.WordSize)
	if err := hdr.put(c, f.Format); err != nil {
		return nil, err
	}
	if err := c.WriteBytes(f.HeaderSize(), cmds); err != nil {
		return nil, err
	}

	// clear what is left of the old commands and the gap opened by the move
	zeroEnd := f.LoadsEnd()
	if plan.Delta > 0 {
		zeroEnd = plan.Pivot + plan.Delta
	}
	if cmdsEnd < zeroEnd {
		clear(out[cmdsEnd:zeroEnd])
	}

	return out, nil
}
