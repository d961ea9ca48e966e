package macho

import (
	"bytes"
	"fmt"
	"os"

	"github.com/apex/log"
	lcmacho "github.com/blacktop/lcpatch/pkg/macho"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"
)

// An Action is an LC_RPATH edit.
type Action string

const (
	AddRpath    Action = "add"
	RemoveRpath Action = "rm"
	ChangeRpath Action = "mod"
)

// PatchConfig describes one LC_RPATH edit of a file.
type PatchConfig struct {
	Input  string
	Output string // defaults to Input

	Action  Action
	Path    string
	NewPath string // ChangeRpath only

	Macho lcmacho.Config
}

// PatchResult reports what an edit did.
type PatchResult struct {
	Output  string
	Before  []string
	After   []string
	OldSize int
	NewSize int
	// Signed is set when the input carried an LC_CODE_SIGNATURE.
	Signed bool
	// Invalidated is set when the output still carries that signature.
	Invalidated bool
}

// Grew returns the number of bytes the edit added to the file.
func (r *PatchResult) Grew() int { return r.NewSize - r.OldSize }

func (conf *PatchConfig) apply(data []byte) ([]byte, error) {
	opt := lcmacho.WithConfig(conf.Macho)
	switch conf.Action {
	case AddRpath:
		return lcmacho.AddRpath(data, conf.Path, opt)
	case RemoveRpath:
		return lcmacho.RemoveRpath(data, conf.Path, opt)
	case ChangeRpath:
		return lcmacho.ChangeRpath(data, conf.Path, conf.NewPath, opt)
	default:
		return nil, fmt.Errorf("unsupported action: %s", conf.Action)
	}
}

// Patch applies conf to its input file and atomically writes the result.
// On error nothing is written.
func Patch(conf *PatchConfig) (*PatchResult, error) {
	info, err := os.Stat(conf.Input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", conf.Input)
	}
	data, err := ReadThin(conf.Input)
	if err != nil {
		return nil, err
	}
	before, err := lcmacho.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", conf.Input)
	}

	out, err := conf.apply(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to %s LC_RPATH in %s", conf.Action, conf.Input)
	}

	after, err := lcmacho.Parse(out)
	if err != nil {
		return nil, errors.Wrap(err, "patched MachO does not parse")
	}
	if err := after.Verify(); err != nil {
		return nil, errors.Wrap(err, "patched MachO failed verification")
	}
	if err := crossCheck(out, after.Rpaths()); err != nil {
		return nil, err
	}

	res := &PatchResult{
		Output:      conf.Output,
		Before:      before.Rpaths(),
		After:       after.Rpaths(),
		OldSize:     len(data),
		NewSize:     len(out),
		Signed:      before.CodeSignature() != nil,
		Invalidated: after.CodeSignature() != nil && !bytes.Equal(data, out),
	}
	if res.Output == "" {
		res.Output = conf.Input
	}

	log.WithFields(log.Fields{
		"action": conf.Action,
		"output": res.Output,
		"size":   len(out),
	}).Debug("writing patched MachO")

	if err := atomicwriter.WriteFile(res.Output, out, info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", res.Output)
	}

	return res, nil
}
