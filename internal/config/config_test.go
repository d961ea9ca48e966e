package config

import (
	"strings"
	"testing"

	"github.com/blacktop/lcpatch/pkg/macho"
	"github.com/spf13/viper"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
			t.Fatalf("failed to read config: %v", err)
		}
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := c.Macho(), macho.DefaultConfig(); got != want {
		t.Errorf("Macho() = %+v, want %+v", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	c, err := Load(newViper(t, `
patch:
  no-relocate: true
  allow-duplicates: true
  max-path: 1024
  page-size: 16KiB
  signature: strip
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := macho.Config{
		AllowRelocation:  false,
		MaxPathLength:    1024,
		RejectDuplicates: false,
		SignaturePolicy:  macho.SignatureStrip,
		PageSize:         0x4000,
	}
	if got := c.Macho(); got != want {
		t.Errorf("Macho() = %+v, want %+v", got, want)
	}
}

func TestLoadPageSize(t *testing.T) {
	tests := []struct {
		value string
		want  uint64
	}{
		{"4096", 0x1000},
		{"0x4000", 0x4000},
		{"64KiB", 0x10000},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v := newViper(t, "")
			v.Set("patch.page-size", tt.value)
			c, err := Load(v)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if uint64(c.Patch.PageSize) != tt.want {
				t.Errorf("page size = %#x, want %#x", c.Patch.PageSize, tt.want)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"signature policy", "patch.signature", "resign"},
		{"page size", "patch.page-size", "3000"},
		{"page size unit", "patch.page-size", "lots"},
		{"max path", "patch.max-path", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t, "")
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Errorf("Load() accepted %s = %v", tt.key, tt.val)
			}
		})
	}

	v := newViper(t, "")
	v.Set("patch.output", "/tmp/out")
	v.Set("patch.overwrite", true)
	if _, err := Load(v); err == nil {
		t.Error("Load() accepted --output together with --overwrite")
	}
}

func TestYAML(t *testing.T) {
	v := newViper(t, "")
	v.Set("patch.page-size", "16KiB")
	v.Set("patch.signature", "ignore")
	v.Set("patch.output", "/tmp/out")
	c, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}

	out, err := c.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	for _, want := range []string{"page-size: 16 KiB", "signature: ignore", "max-path: 4096"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("YAML() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(string(out), "/tmp/out") {
		t.Errorf("YAML() wrote the output path:\n%s", out)
	}

	got, err := Load(newViper(t, string(out)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Macho() != c.Macho() {
		t.Errorf("reloaded %+v, want %+v", got.Macho(), c.Macho())
	}
}
