package colors

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestInit_ForceOn(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	forceOn := true
	Init(&forceOn)

	if color.NoColor {
		t.Error("expected colors enabled when Init(true)")
	}
}

func TestInit_ForceOff(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = false
	forceOff := false
	Init(&forceOff)

	if !color.NoColor {
		t.Error("expected colors disabled when Init(false)")
	}
}

func TestInit_Nil_KeepsExisting(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	for _, noColor := range []bool{false, true} {
		color.NoColor = noColor
		Init(nil)
		if color.NoColor != noColor {
			t.Errorf("Init(nil) changed NoColor from %v", noColor)
		}
	}
}

func TestRoles(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	roles := []struct {
		name string
		fn   func() *color.Color
	}{
		{"Bold", Bold},
		{"Faint", Faint},
		{"Yellow", Yellow},
		{"BoldGreen", BoldGreen},
		{"BoldRed", BoldRed},
		{"BoldYellow", BoldYellow},
		{"LoadCommand", LoadCommand},
		{"Path", Path},
		{"Offset", Offset},
		{"Added", Added},
		{"Removed", Removed},
	}

	for _, tc := range roles {
		t.Run(tc.name, func(t *testing.T) {
			color.NoColor = false
			if got := tc.fn().Sprint("LC_RPATH"); !strings.Contains(got, "\x1b[") {
				t.Errorf("expected ANSI codes when colors enabled, got: %q", got)
			}
			color.NoColor = true
			if got := tc.fn().Sprint("LC_RPATH"); got != "LC_RPATH" {
				t.Errorf("expected plain text when colors disabled, got: %q", got)
			}
		})
	}
}
