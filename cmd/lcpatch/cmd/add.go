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
	"github.com/MakeNowJust/heredoc/v2"
	mcmd "github.com/blacktop/lcpatch/internal/commands/macho"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
	addPatchFlags(addCmd)
}

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add <MACHO> <PATH>",
	Short: "Add an LC_RPATH to a MachO file",
	Example: heredoc.Doc(`
		# Add an LC_RPATH like install_name_tool -add_rpath
		❯ lcpatch add ./app @executable_path/../Frameworks
		# Write to a new file and drop the (now invalid) code signature
		❯ lcpatch add ./app /usr/local/lib -o ./app.patched --signature strip`),
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPatch(cmd, &mcmd.PatchConfig{
			Input:  args[0],
			Action: mcmd.AddRpath,
			Path:   args[1],
		})
	},
}
