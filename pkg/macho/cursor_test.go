package macho

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestCursorBounds(t *testing.T) {
	c := NewCursor(make([]byte, 16), binary.LittleEndian, 8)

	if _, err := c.ReadU32(12); err != nil {
		t.Fatalf("ReadU32(12) failed: %v", err)
	}
	if _, err := c.ReadU32(13); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU32(13) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := c.ReadU64(9); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU64(9) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := c.ReadBytes(8, 9); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadBytes(8, 9) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := c.ReadBytes(^uint64(0), 2); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadBytes with wrapping range error = %v, want ErrOutOfBounds", err)
	}
	if err := c.WriteU64(16, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("WriteU64(16) error = %v, want ErrOutOfBounds", err)
	}
	if err := c.WriteBytes(10, make([]byte, 7)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("WriteBytes(10, 7 bytes) error = %v, want ErrOutOfBounds", err)
	}
}

func TestCursorAlignment(t *testing.T) {
	tests := []struct {
		name     string
		wordSize int
		write    func(*Cursor) error
		wantErr  error
	}{
		{"u32 aligned", 8, func(c *Cursor) error { return c.WriteU32(4, 1) }, nil},
		{"u32 misaligned", 8, func(c *Cursor) error { return c.WriteU32(2, 1) }, ErrMisaligned},
		{"u64 aligned", 8, func(c *Cursor) error { return c.WriteU64(8, 1) }, nil},
		{"u64 on 4 in 64-bit image", 8, func(c *Cursor) error { return c.WriteU64(4, 1) }, ErrMisaligned},
		{"u64 on 4 in 32-bit image", 4, func(c *Cursor) error { return c.WriteU64(4, 1) }, nil},
		{"u64 on 2 in 32-bit image", 4, func(c *Cursor) error { return c.WriteU64(2, 1) }, ErrMisaligned},
		{"bytes anywhere", 8, func(c *Cursor) error { return c.WriteBytes(3, []byte{1, 2}) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(make([]byte, 32), binary.LittleEndian, tt.wordSize)
			err := tt.write(c)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCursorByteOrder(t *testing.T) {
	buf := make([]byte, 8)
	be := NewCursor(buf, binary.BigEndian, 8)
	if err := be.WriteU32(0, 0xfeedfacf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xfe || buf[3] != 0xcf {
		t.Fatalf("big-endian write produced % x", buf[:4])
	}

	le := NewCursor(buf, binary.LittleEndian, 8)
	v, err := le.ReadU32(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xcffaedfe {
		t.Fatalf("little-endian read = %#x, want 0xcffaedfe", v)
	}
}

func TestCursorReadCString(t *testing.T) {
	c := NewCursor([]byte("abc\x00def"), binary.LittleEndian, 8)
	s, err := c.ReadCString(0, c.Len())
	if err != nil {
		t.Fatal(err)
	}
	if s != "abc" {
		t.Errorf("ReadCString = %q, want %q", s, "abc")
	}
	if _, err := c.ReadCString(4, c.Len()); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("unterminated string error = %v, want ErrOutOfBounds", err)
	}
}

func TestAlign(t *testing.T) {
	for _, tt := range []struct{ v, a, up, down uint64 }{
		{0, 8, 0, 0},
		{1, 8, 8, 0},
		{8, 8, 8, 8},
		{4097, 4096, 8192, 4096},
		{17, 0, 17, 17},
	} {
		if got := alignUp(tt.v, tt.a); got != tt.up {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.v, tt.a, got, tt.up)
		}
		if got := alignDown(tt.v, tt.a); got != tt.down {
			t.Errorf("alignDown(%d, %d) = %d, want %d", tt.v, tt.a, got, tt.down)
		}
	}
}
