// Package colors provides centralized color output with TTY-aware defaults.
//
// Colors are automatically disabled when stdout is not a terminal (piped or
// redirected to a file). Use Init() to override based on the --color flag.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (--color flag)
//   - forceColor == false: force colors off
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

func Bold() *color.Color       { return color.New(color.Bold) }
func Faint() *color.Color      { return color.New(color.Faint) }
func Yellow() *color.Color     { return color.New(color.FgYellow) }
func BoldGreen() *color.Color  { return color.New(color.Bold, color.FgGreen) }
func BoldRed() *color.Color    { return color.New(color.Bold, color.FgRed) }
func BoldYellow() *color.Color { return color.New(color.Bold, color.FgYellow) }

// -----------------------------------------------------------------------------
// Roles
// -----------------------------------------------------------------------------

// LoadCommand colors load command names (LC_RPATH, LC_SEGMENT_64, ...).
func LoadCommand() *color.Color { return color.New(color.FgMagenta) }

// Path colors filesystem and rpath strings.
func Path() *color.Color { return color.New(color.FgCyan) }

// Offset colors file offsets and sizes.
func Offset() *color.Color { return color.New(color.Faint, color.FgWhite) }

// Added colors entries an edit introduced.
func Added() *color.Color { return BoldGreen() }

// Removed colors entries an edit dropped.
func Removed() *color.Color { return BoldRed() }
