package macho

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-macho/types"
)

// A RelocationPlan moves every file offset at or after Pivot by Delta bytes.
type RelocationPlan struct {
	Pivot uint64
	Delta uint64
}

func (p RelocationPlan) String() string {
	return fmt.Sprintf("pivot=%#x delta=%#x", p.Pivot, p.Delta)
}

// plan computes where the content after the load commands has to move so
// that next fits in front of it.
func (f *File) plan(next *LoadTable, conf *Config) (*RelocationPlan, error) {
	boundary := f.Boundary()
	need := f.HeaderSize() + next.TotalSize()

	ctx := log.WithFields(log.Fields{
		"sizeofcmds": f.SizeCommands,
		"new":        next.TotalSize(),
		"boundary":   fmt.Sprintf("%#x", boundary),
	})

	if need <= boundary {
		ctx.Debug("load commands fit in existing padding")
		return &RelocationPlan{Pivot: boundary}, nil
	}

	if !conf.AllowRelocation {
		return nil, fmt.Errorf("%w: load commands need %d bytes but only %d are free before %#x and relocation is disabled",
			ErrInsufficientPadding, need-f.LoadsEnd(), boundary-f.LoadsEnd(), boundary)
	}
	for _, seg := range f.Segments() {
		if seg.Filesz > 0 && seg.Offset < boundary && seg.Offset+seg.Filesz > boundary {
			return nil, fmt.Errorf("%w: need %d more bytes and segment %s maps [%#x, %#x) across the end of the load commands (relink with -headerpad)",
				ErrInsufficientPadding, need-boundary, seg.Name, seg.Offset, seg.Offset+seg.Filesz)
		}
	}

	for _, l := range f.Loads.Iter() {
		if opaqueFileOffsets[l.Command()] {
			return nil, fmt.Errorf("%w: need %d more bytes and %s carries file offsets that cannot be relocated",
				ErrInsufficientPadding, need-boundary, l.Command())
		}
	}

	gran := f.granularity(boundary, conf.PageSize)
	p := &RelocationPlan{
		Pivot: boundary,
		Delta: alignUp(next.TotalSize()-uint64(f.SizeCommands), gran),
	}
	ctx.WithField("granularity", gran).Debugf("relocating content: %s", p)

	return p, nil
}

// granularity returns the alignment every shift must preserve. Loadable
// images are mapped page by page, so their content only moves by whole pages.
func (f *File) granularity(boundary, pageSize uint64) uint64 {
	if boundary%pageSize == 0 || f.Type != types.MH_OBJECT {
		return pageSize
	}
	gran := uint64(f.WordSize)
	for _, r := range f.Loads.refs() {
		if r.off >= boundary && r.size > 0 {
			gran = max(gran, r.align)
		}
	}
	return min(gran, pageSize)
}
