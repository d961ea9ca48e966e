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
	"text/tabwriter"

	"github.com/apex/log"
	"github.com/blacktop/lcpatch/internal/colors"
	mcmd "github.com/blacktop/lcpatch/internal/commands/macho"
	"github.com/blacktop/lcpatch/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:           "info <MACHO>",
	Short:         "Show the header, load commands and header padding of a MachO file",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Clean(args[0])

		f, err := mcmd.Open(path)
		if err != nil {
			return err
		}

		colors.Bold().Println(filepath.Base(path))
		fmt.Printf("Format        = %s\n", f.Format)
		fmt.Print(f.FileHeader.String())
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
		for i, l := range f.Loads.Iter() {
			fmt.Fprintf(w, "%03d:\t%s\t%s\n", i, colors.Offset().Sprintf("%5d", l.LoadSize()), colors.LoadCommand().Sprint(l.String()))
			if seg, ok := l.(*macho.Segment); ok {
				for _, sect := range seg.Sections {
					fmt.Fprintf(w, "\t\t  %s\n", colors.Faint().Sprint(sect))
				}
			}
		}
		w.Flush()
		fmt.Println()

		fmt.Printf("Load commands end at %#x, content starts at %#x\n", f.LoadsEnd(), f.Boundary())
		slack := colors.BoldGreen()
		if f.Slack() < 32 {
			slack = colors.BoldYellow()
		}
		fmt.Printf("Header padding: %s\n", slack.Sprint(humanize.IBytes(f.Slack())))

		sig, err := f.Signature()
		if err != nil {
			log.WithError(err).Warn("failed to parse code signature")
		} else if sig != nil {
			cs := f.CodeSignature()
			fmt.Printf("Code signature: %s\n", colors.Yellow().Sprintf("offset=%#x size=%s", cs.Offset, humanize.IBytes(uint64(cs.Size))))
			for _, cd := range sig.CodeDirectories {
				fmt.Printf("  CodeDirectory %s", colors.Path().Sprint(cd.ID))
				if cd.TeamID != "" {
					fmt.Printf(" team=%s", cd.TeamID)
				}
				fmt.Printf(" cdhash=%s slots=%d\n", cd.CDHash, len(cd.CodeSlots))
			}
		} else {
			fmt.Println("Code signature: none")
		}

		return nil
	},
}
