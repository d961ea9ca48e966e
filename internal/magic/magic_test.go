package magic

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		hdr  []byte
		want Kind
	}{
		{"64-bit", []byte{0xcf, 0xfa, 0xed, 0xfe}, Thin},
		{"32-bit", []byte{0xce, 0xfa, 0xed, 0xfe}, Thin},
		{"64-bit big-endian", []byte{0xfe, 0xed, 0xfa, 0xcf}, Thin},
		{"universal", []byte{0xca, 0xfe, 0xba, 0xbe}, Fat},
		{"universal 64", []byte{0xca, 0xfe, 0xba, 0xbf}, Fat},
		{"elf", []byte{0x7f, 'E', 'L', 'F'}, NotMachO},
		{"short", []byte{0xcf, 0xfa}, NotMachO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.hdr); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsThinMachO(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	thin := write("thin", []byte{0xcf, 0xfa, 0xed, 0xfe, 0, 0, 0, 0})
	if ok, err := IsThinMachO(thin); !ok || err != nil {
		t.Errorf("IsThinMachO(thin) = %v, %v", ok, err)
	}
	fat := write("fat", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 1})
	if ok, err := IsThinMachO(fat); ok || err == nil {
		t.Errorf("IsThinMachO(fat) = %v, %v", ok, err)
	}
	elf := write("elf", []byte{0x7f, 'E', 'L', 'F'})
	if ok, err := IsThinMachO(elf); ok || err == nil || !strings.Contains(err.Error(), "not a macho") {
		t.Errorf("IsThinMachO(elf) = %v, %v", ok, err)
	}
	empty := write("empty", nil)
	if ok, err := IsThinMachO(empty); ok || err == nil {
		t.Errorf("IsThinMachO(empty) = %v, %v", ok, err)
	}
	if _, err := IsThinMachO(filepath.Join(dir, "missing")); err == nil {
		t.Error("IsThinMachO(missing) succeeded")
	}
}

func TestMagicString(t *testing.T) {
	tests := []struct {
		hdr  []byte
		want string
	}{
		{[]byte{0xcf, 0xfa, 0xed, 0xfe}, "64-bit little-endian"},
		{[]byte{0xfe, 0xed, 0xfa, 0xce}, "32-bit big-endian"},
		{[]byte{0xca, 0xfe, 0xba, 0xbe}, "universal"},
		{[]byte{0xbe, 0xba, 0xfe, 0xca}, "universal"},
		{[]byte{0xca, 0xfe, 0xba, 0xbf}, "universal (64-bit)"},
		{[]byte{0x7f, 'E', 'L', 'F'}, "0x464c457f"},
	}
	for _, tt := range tests {
		if got := Magic(binary.LittleEndian.Uint32(tt.hdr)).String(); got != tt.want {
			t.Errorf("Magic(% x).String() = %q, want %q", tt.hdr, got, tt.want)
		}
	}
	if got := Magic(binary.LittleEndian.Uint32([]byte{0xca, 0xfe, 0xba, 0xbe})); got != MagicFatBE {
		t.Errorf("big-endian universal header read as %#x, want MagicFatBE", uint32(got))
	}
}
