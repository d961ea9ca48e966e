package macho

import (
	"fmt"
	"math"
)

// relocate returns a copy of t with every offset at or after the pivot moved
// by the plan's delta. t itself is left untouched, so a failed relocation
// leaves nothing half-updated.
func relocate(t *LoadTable, plan *RelocationPlan, fileSize uint64) (*LoadTable, error) {
	out := t.clone()
	for _, r := range out.refs() {
		off := r.off
		if plan.Delta > 0 && off >= plan.Pivot {
			off += plan.Delta
			if r.width == 4 && off > math.MaxUint32 {
				return nil, fmt.Errorf("%w: %s offset %#x does not fit in 32 bits", ErrRelocationOverflow, r.name, off)
			}
			r.set(off)
		}
		if r.size > 0 && (off+r.size < off || off+r.size > fileSize) {
			return nil, fmt.Errorf("%w: %s [%#x, %#x) exceeds new file size %#x", ErrRelocationOverflow, r.name, off, off+r.size, fileSize)
		}
	}
	return out, nil
}
