package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// A Cursor reads and writes fixed width fields in an in-memory image.
// Every access is bounds checked; writes are also alignment checked.
type Cursor struct {
	buf      []byte
	order    binary.ByteOrder
	wordSize int
}

// NewCursor returns a Cursor over buf. wordSize is 4 for 32-bit images and 8 for 64-bit images.
func NewCursor(buf []byte, order binary.ByteOrder, wordSize int) *Cursor {
	return &Cursor{buf: buf, order: order, wordSize: wordSize}
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() uint64 { return uint64(len(c.buf)) }

// ByteOrder returns the byte order used for multi-byte fields.
func (c *Cursor) ByteOrder() binary.ByteOrder { return c.order }

func (c *Cursor) check(at, n uint64) error {
	if at > c.Len() || n > c.Len()-at {
		return fmt.Errorf("%w: range %#x+%#x exceeds buffer of %#x bytes", ErrOutOfBounds, at, n, c.Len())
	}
	return nil
}

func (c *Cursor) aligned(at uint64, width int) error {
	align := uint64(width)
	if width == 8 && c.wordSize < 8 {
		align = 4
	}
	if at%align != 0 {
		return fmt.Errorf("%w: %d-byte field at %#x", ErrMisaligned, width, at)
	}
	return nil
}

// ReadU32 reads a 32-bit field at offset at.
func (c *Cursor) ReadU32(at uint64) (uint32, error) {
	if err := c.check(at, 4); err != nil {
		return 0, err
	}
	return c.order.Uint32(c.buf[at:]), nil
}

// ReadU64 reads a 64-bit field at offset at.
func (c *Cursor) ReadU64(at uint64) (uint64, error) {
	if err := c.check(at, 8); err != nil {
		return 0, err
	}
	return c.order.Uint64(c.buf[at:]), nil
}

// ReadBytes returns a copy of n bytes starting at offset at.
func (c *Cursor) ReadBytes(at, n uint64) ([]byte, error) {
	if err := c.check(at, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[at:at+n])
	return out, nil
}

// ReadCString reads a NUL terminated string starting at offset at.
// The string may not extend past limit.
func (c *Cursor) ReadCString(at, limit uint64) (string, error) {
	if limit > c.Len() {
		limit = c.Len()
	}
	if at >= limit {
		return "", fmt.Errorf("%w: string at %#x", ErrOutOfBounds, at)
	}
	s := c.buf[at:limit]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		return string(s[:i]), nil
	}
	return "", fmt.Errorf("%w: unterminated string at %#x", ErrOutOfBounds, at)
}

// WriteU32 writes a 32-bit field at offset at.
func (c *Cursor) WriteU32(at uint64, v uint32) error {
	if err := c.check(at, 4); err != nil {
		return err
	}
	if err := c.aligned(at, 4); err != nil {
		return err
	}
	c.order.PutUint32(c.buf[at:], v)
	return nil
}

// WriteU64 writes a 64-bit field at offset at.
func (c *Cursor) WriteU64(at uint64, v uint64) error {
	if err := c.check(at, 8); err != nil {
		return err
	}
	if err := c.aligned(at, 8); err != nil {
		return err
	}
	c.order.PutUint64(c.buf[at:], v)
	return nil
}

// WriteBytes copies b into the buffer at offset at.
func (c *Cursor) WriteBytes(at uint64, b []byte) error {
	if err := c.check(at, uint64(len(b))); err != nil {
		return err
	}
	copy(c.buf[at:], b)
	return nil
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	if r := v % align; r != 0 {
		v += align - r
	}
	return v
}

func alignDown(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return v - v%align
}
