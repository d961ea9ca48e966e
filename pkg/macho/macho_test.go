package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/lcpatch/internal/machotest"
)

func mustParse(t *testing.T, data []byte) *File {
	t.Helper()
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return f
}

func TestParseHeaderMagic(t *testing.T) {
	tests := []struct {
		name    string
		magic   []byte
		want    Format
		wantErr string
	}{
		{"64-bit little-endian", []byte{0xcf, 0xfa, 0xed, 0xfe}, Format{binary.LittleEndian, 8}, ""},
		{"32-bit little-endian", []byte{0xce, 0xfa, 0xed, 0xfe}, Format{binary.LittleEndian, 4}, ""},
		{"64-bit big-endian", []byte{0xfe, 0xed, 0xfa, 0xcf}, Format{binary.BigEndian, 8}, ""},
		{"32-bit big-endian", []byte{0xfe, 0xed, 0xfa, 0xce}, Format{binary.BigEndian, 4}, ""},
		{"universal", []byte{0xca, 0xfe, 0xba, 0xbe}, Format{}, "universal file; a thin slice"},
		{"universal 64-bit", []byte{0xca, 0xfe, 0xba, 0xbf}, Format{}, "universal (64-bit) file"},
		{"elf", []byte{0x7f, 'E', 'L', 'F'}, Format{}, "invalid magic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 64)
			copy(data, tt.magic)
			_, f, err := ParseHeader(data)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidMagic) {
					t.Fatalf("error = %v, want ErrInvalidMagic", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHeader failed: %v", err)
			}
			if f != tt.want {
				t.Fatalf("format = %s, want %s", f, tt.want)
			}
		})
	}
}

func TestParseHeaderTruncated(t *testing.T) {
	if _, _, err := ParseHeader([]byte{0xcf, 0xfa}); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("2-byte file error = %v, want ErrInvalidMagic", err)
	}
	if _, _, err := ParseHeader([]byte{0xcf, 0xfa, 0xed, 0xfe, 0, 0, 0, 0}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("8-byte file error = %v, want ErrOutOfBounds", err)
	}
}

func TestParse(t *testing.T) {
	img := machotest.Builder{Rpaths: []string{"@executable_path/../Frameworks"}, Slack: 32}.Build()
	f := mustParse(t, img.Data)

	if f.Magic != types.Magic64 || f.CPU != types.CPUArm64 || f.Type != types.MH_EXECUTE {
		t.Fatalf("unexpected header:\n%s", f.FileHeader)
	}
	if f.Loads.Len() != int(f.NCommands) {
		t.Fatalf("parsed %d commands, header says %d", f.Loads.Len(), f.NCommands)
	}
	if f.Loads.TotalSize() != uint64(f.SizeCommands) {
		t.Fatalf("TotalSize() = %d, sizeofcmds = %d", f.Loads.TotalSize(), f.SizeCommands)
	}
	if got := f.LoadsEnd(); got != img.LoadsEnd {
		t.Errorf("LoadsEnd() = %#x, want %#x", got, img.LoadsEnd)
	}
	if got := f.Boundary(); got != img.TextOffset {
		t.Errorf("Boundary() = %#x, want %#x", got, img.TextOffset)
	}
	if got := f.Slack(); got != 32 {
		t.Errorf("Slack() = %d, want 32", got)
	}

	text := f.Segment("__TEXT")
	if text == nil {
		t.Fatal("no __TEXT segment")
	}
	if text.Offset != img.TextOffset || len(text.Sections) != 1 || text.Sections[0].Name != "__text" {
		t.Errorf("unexpected __TEXT: %s", text)
	}
	if text.Prot.String() != "r-x" {
		t.Errorf("__TEXT prot = %s, want r-x", text.Prot)
	}

	_, l := f.Loads.FindFirst(types.LC_SYMTAB)
	st, ok := l.(*Symtab)
	if !ok {
		t.Fatalf("LC_SYMTAB parsed as %T", l)
	}
	if uint64(st.Symoff) != img.SymOff || uint64(st.Stroff) != img.StrOff || st.Nsyms != 1 {
		t.Errorf("unexpected symtab: %s", st)
	}

	_, l = f.Loads.FindFirst(types.LC_LOAD_DYLINKER)
	if d, ok := l.(*Dylinker); !ok || d.Name != "/usr/lib/dyld" {
		t.Errorf("unexpected dylinker: %v", l)
	}

	if got := f.Rpaths(); len(got) != 1 || got[0] != "@executable_path/../Frameworks" {
		t.Errorf("Rpaths() = %v", got)
	}
	if f.CodeSignature() != nil {
		t.Error("unsigned image reports a code signature")
	}
	if err := f.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	o := binary.LittleEndian
	tests := []struct {
		name    string
		corrupt func(data []byte, img *machotest.Image)
		wantErr error
	}{
		{
			name: "cmdsize not a multiple of the word size",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[32+4:], 68) // __PAGEZERO
			},
			wantErr: ErrMalformedLoadCommand,
		},
		{
			name: "zero cmdsize",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[32+4:], 0)
			},
			wantErr: ErrMalformedLoadCommand,
		},
		{
			name: "more commands than sizeofcmds holds",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[16:], o.Uint32(data[16:])+1)
			},
			wantErr: ErrMalformedLoadCommand,
		},
		{
			name: "fewer commands than sizeofcmds holds",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[16:], o.Uint32(data[16:])-1)
			},
			wantErr: ErrMalformedLoadCommand,
		},
		{
			name: "sizeofcmds past end of file",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[20:], uint32(len(data)))
			},
			wantErr: ErrOutOfBounds,
		},
		{
			name: "section count larger than the segment command",
			corrupt: func(data []byte, img *machotest.Image) {
				o.PutUint32(data[32+72+64:], 2) // __TEXT nsects
			},
			wantErr: ErrMalformedLoadCommand,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := machotest.Builder{Slack: 16}.Build()
			data := bytes.Clone(img.Data)
			tt.corrupt(data, img)
			if _, err := Parse(data); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	opaque := machotest.Command(binary.LittleEndian, types.LoadCmd(0x99), []byte("opaque payload"), 8)
	tests := []struct {
		name string
		b    machotest.Builder
	}{
		{"64-bit", machotest.Builder{}},
		{"64-bit with slack", machotest.Builder{Slack: 256, Rpaths: []string{"/usr/lib", "@loader_path"}}},
		{"64-bit big-endian", machotest.Builder{ByteOrder: binary.BigEndian, Slack: 8}},
		{"32-bit", machotest.Builder{Is32: true, Slack: 12}},
		{"32-bit big-endian", machotest.Builder{Is32: true, ByteOrder: binary.BigEndian}},
		{"signed", machotest.Builder{Signed: true}},
		{"page aligned", machotest.Builder{PageAlign: true}},
		{"unknown command", machotest.Builder{Extra: [][]byte{opaque}}},
		{"text at zero", machotest.Builder{TextAtZero: true, Slack: 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := tt.b.Build()
			f := mustParse(t, img.Data)
			out, err := f.Bytes()
			if err != nil {
				t.Fatalf("Bytes failed: %v", err)
			}
			if !bytes.Equal(out, img.Data) {
				t.Fatalf("round trip changed the image (%d -> %d bytes)", len(img.Data), len(out))
			}
			if err := f.Verify(); err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
		})
	}
}

func TestRoundTripPreservesTrailingSlackData(t *testing.T) {
	img := machotest.Builder{Slack: 64}.Build()
	data := bytes.Clone(img.Data)
	// unreferenced bytes in the padding must survive and end the usable slack
	data[img.LoadsEnd+40] = 0xaa

	f := mustParse(t, data)
	if got := f.Boundary(); got != img.LoadsEnd+40 {
		t.Fatalf("Boundary() = %#x, want %#x", got, img.LoadsEnd+40)
	}
	out, err := f.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round trip lost data in the padding")
	}
}

func TestLoadTable(t *testing.T) {
	img := machotest.Builder{Rpaths: []string{"/a", "/b"}}.Build()
	f := mustParse(t, img.Data)
	tbl := f.Loads.clone()

	var first []types.LoadCmd
	for _, l := range tbl.Iter() {
		first = append(first, l.Command())
	}
	var second []types.LoadCmd
	for _, l := range tbl.Iter() {
		second = append(second, l.Command())
	}
	if len(first) != tbl.Len() || len(first) != len(second) {
		t.Fatalf("Iter is not restartable: %d then %d commands", len(first), len(second))
	}
	for i, l := range tbl.Iter() {
		if i == 2 {
			break
		}
		if l != tbl.At(i) {
			t.Fatalf("Iter yielded the wrong command at %d", i)
		}
	}

	i, l := tbl.FindFirst(types.LC_RPATH)
	if l == nil || l.(*Rpath).Path != "/a" {
		t.Fatalf("FindFirst(LC_RPATH) = %d, %v", i, l)
	}
	if got := len(tbl.FindAll(types.LC_RPATH)); got != 2 {
		t.Fatalf("FindAll(LC_RPATH) returned %d commands", got)
	}
	if i, l := tbl.FindFirst(types.LC_MAIN); i != -1 || l != nil {
		t.Fatalf("FindFirst(LC_MAIN) = %d, %v", i, l)
	}

	size := tbl.TotalSize()
	r := NewRpath("/c", f.Format)
	tbl.Insert(r)
	if tbl.At(tbl.Len()-1) != r || tbl.TotalSize() != size+uint64(r.LoadSize()) {
		t.Fatal("Insert did not append at the tail")
	}
	if err := tbl.Replace(i, NewRpath("/z", f.Format)); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Remove(tbl.Len() - 1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Remove(tbl.Len()); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Remove past end error = %v", err)
	}

	// the parsed table is untouched by edits to its clone
	if got := f.Rpaths(); len(got) != 2 || got[0] != "/a" {
		t.Fatalf("original table changed: %v", got)
	}
}

func TestNewRpath(t *testing.T) {
	tests := []struct {
		path     string
		wordSize int
		want     uint32
	}{
		{"/x/y", 8, 24},
		{"@executable_path/../lib", 8, 40},
		{"abc", 8, 16},
		{"abcd", 8, 24},
		{"/x/y", 4, 20},
		{"abc", 4, 16},
	}
	for _, tt := range tests {
		f := Format{ByteOrder: binary.LittleEndian, WordSize: tt.wordSize}
		r := NewRpath(tt.path, f)
		if r.LoadSize() != tt.want {
			t.Errorf("NewRpath(%q) size = %d, want %d", tt.path, r.LoadSize(), tt.want)
		}
		got, err := parseRpath(r.LoadBytes, f)
		if err != nil {
			t.Fatalf("parseRpath failed: %v", err)
		}
		if got.Path != tt.path {
			t.Errorf("parsed path = %q, want %q", got.Path, tt.path)
		}
		if r.Raw()[len(r.Raw())-1] != 0 {
			t.Errorf("NewRpath(%q) is not NUL padded", tt.path)
		}
	}
}

func TestVerify(t *testing.T) {
	img := machotest.Builder{Slack: 32}.Build()

	t.Run("string table past end of file", func(t *testing.T) {
		f := mustParse(t, img.Data)
		_, l := f.Loads.FindFirst(types.LC_SYMTAB)
		l.(*Symtab).Stroff = uint32(f.Size())
		err := f.Verify()
		if !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("Verify error = %v, want ErrOutOfBounds", err)
		}
		if !strings.Contains(err.Error(), "string table") {
			t.Fatalf("error %q does not name the string table", err)
		}
	})

	t.Run("section outside its segment", func(t *testing.T) {
		f := mustParse(t, img.Data)
		f.Segment("__TEXT").Sections[0].Offset += 8
		if err := f.Verify(); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("Verify error = %v, want ErrOutOfBounds", err)
		}
	})

	t.Run("content overlapping the load commands", func(t *testing.T) {
		f := mustParse(t, img.Data)
		_, l := f.Loads.FindFirst(types.LC_SYMTAB)
		l.(*Symtab).Symoff = uint32(f.LoadsEnd() - 8)
		if err := f.Verify(); !errors.Is(err, ErrMalformedLoadCommand) {
			t.Fatalf("Verify error = %v, want ErrMalformedLoadCommand", err)
		}
	})
}

func TestSignature(t *testing.T) {
	img := machotest.Builder{Signed: true}.Build()
	f := mustParse(t, img.Data)

	cs := f.CodeSignature()
	if cs == nil {
		t.Fatal("no LC_CODE_SIGNATURE")
	}
	if uint64(cs.Offset) != img.SigOff || uint64(cs.Size) != img.SigSize {
		t.Fatalf("code signature = %s", cs)
	}

	sig, err := f.Signature()
	if err != nil {
		t.Fatalf("Signature failed: %v", err)
	}
	if len(sig.CodeDirectories) != 1 {
		t.Fatalf("got %d code directories, want 1", len(sig.CodeDirectories))
	}
	cd := sig.CodeDirectories[0]
	if cd.ID != machotest.SignatureID {
		t.Errorf("code directory identifier = %q, want %q", cd.ID, machotest.SignatureID)
	}
	if len(cd.CDHash) != 64 {
		t.Errorf("cdhash = %q, want a sha256 digest", cd.CDHash)
	}

	unsigned := mustParse(t, machotest.Builder{}.Build().Data)
	if sig, err := unsigned.Signature(); sig != nil || err != nil {
		t.Errorf("unsigned Signature() = %v, %v", sig, err)
	}

	corrupt := func(at int, v uint32) *File {
		data := bytes.Clone(img.Data)
		binary.BigEndian.PutUint32(data[img.SigOff+uint64(at):], v)
		return mustParse(t, data)
	}
	tests := []struct {
		name    string
		f       *File
		wantErr error
	}{
		{"bad magic", corrupt(0, 0xfade0b02), ErrInvalidMagic},
		{"entry count past the blob", corrupt(8, 0x10000000), ErrOutOfBounds},
		{"blob length past the signature", corrupt(24, 0x10000), ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.f.Signature(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
