/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	"github.com/blacktop/lcpatch/internal/colors"
	mcmd "github.com/blacktop/lcpatch/internal/commands/macho"
	"github.com/blacktop/lcpatch/internal/config"
	"github.com/blacktop/lcpatch/internal/utils"
	"github.com/blacktop/lcpatch/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var signaturePolicies = []string{
	macho.SignatureFail.String(),
	macho.SignatureStrip.String(),
	macho.SignatureIgnore.String(),
}

var patchFlags = []string{
	"output",
	"overwrite",
	"no-relocate",
	"allow-duplicates",
	"max-path",
	"page-size",
	"signature",
}

func addPatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Write the patched MachO here instead of in place")
	cmd.Flags().BoolP("overwrite", "f", false, "Overwrite the input without asking")
	cmd.Flags().Bool("no-relocate", false, "Fail instead of moving file content when the header padding is too small")
	cmd.Flags().Bool("allow-duplicates", false, "Allow adding an LC_RPATH that is already present")
	cmd.Flags().Int("max-path", macho.DefaultMaxPathLength, "Longest accepted path in bytes")
	cmd.Flags().String("page-size", "4KiB", "Alignment kept when relocating segments (e.g. 16KiB for arm64)")
	cmd.Flags().String("signature", macho.SignatureFail.String(), "What to do with a code signature: fail, strip or ignore")
	cmd.MarkFlagsMutuallyExclusive("output", "overwrite")
	cmd.RegisterFlagCompletionFunc("signature", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return signaturePolicies, cobra.ShellCompDirectiveNoFileComp
	})
}

// bindPatchFlags binds the flags of the command being run to the patch.* keys.
func bindPatchFlags(flags *pflag.FlagSet) {
	for _, name := range patchFlags {
		viper.BindPFlag("patch."+name, flags.Lookup(name))
	}
}

func confirm(path string, overwrite bool) bool {
	if overwrite {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Error("refusing to modify the file in place without a terminal (use --overwrite or --output)")
		return false
	}
	yes := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to overwrite %s. Continue?", filepath.Base(path)),
	}
	survey.AskOne(prompt, &yes)
	return yes
}

func runPatch(cmd *cobra.Command, pc *mcmd.PatchConfig) error {
	bindPatchFlags(cmd.Flags())

	conf, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if !utils.StrSliceHas(signaturePolicies, conf.Patch.Signature.String()) {
		return fmt.Errorf("invalid --signature %s", conf.Patch.Signature)
	}

	pc.Input = filepath.Clean(pc.Input)
	if info, err := os.Stat(pc.Input); os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", pc.Input)
	} else if err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", pc.Input)
	}

	pc.Output = conf.Patch.Output
	pc.Macho = conf.Macho()

	if pc.Output == "" || filepath.Clean(pc.Output) == pc.Input { // modify in place
		if !confirm(pc.Input, conf.Patch.Overwrite) {
			log.Warn("Aborted")
			return nil
		}
	}

	res, err := mcmd.Patch(pc)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"action": pc.Action,
		"size":   humanize.Bytes(uint64(res.NewSize)),
	}).Info(fmt.Sprintf("Patched %s", res.Output))
	for _, p := range utils.Difference(res.After, res.Before) {
		utils.Indent(log.Info, 2)(colors.Added().Sprintf("+ LC_RPATH %s", p))
	}
	for _, p := range utils.Difference(res.Before, res.After) {
		utils.Indent(log.Info, 2)(colors.Removed().Sprintf("- LC_RPATH %s", p))
	}
	if grew := res.Grew(); grew > 0 {
		log.Warnf("Relocated file content by %s to make room for the load commands", humanize.Bytes(uint64(grew)))
	}
	if res.Invalidated {
		log.Warn("Code signature has been invalidated (MachO needs to be re-signed)")
	} else if res.Signed && pc.Macho.SignaturePolicy == macho.SignatureStrip {
		log.Warn("Code signature was removed (MachO needs to be re-signed)")
	}

	return nil
}
