// Package bytesutil provides zero-copy byte slicing and bit-level readers
// used by the FLV demuxer and codec inspectors.
package bytesutil

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEOF is returned when a read or extract goes past the end of
// the underlying buffer.
var ErrUnexpectedEOF = errors.New("bytesutil: unexpected end of buffer")

// ByteView is a reference-counted-in-spirit slice of an owning buffer. Go's
// garbage collector makes the reference counting implicit: a ByteView keeps
// its backing array alive only as long as the view itself is reachable, and
// slicing never copies.
type ByteView []byte

// Len reports the number of bytes in the view.
func (v ByteView) Len() int { return len(v) }

// Cursor walks a ByteView without copying, handing out further ByteViews on
// each extraction.
type Cursor struct {
	buf ByteView
	pos int
}

// NewCursor wraps buf for sequential, zero-copy extraction.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int { return c.pos }

// Remaining reports how many bytes are left to read.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// ExtractBytes returns the next n bytes as a view into the underlying
// buffer, advancing the cursor. It fails with ErrUnexpectedEOF if fewer than
// n bytes remain.
func (c *Cursor) ExtractBytes(n int) (ByteView, error) {
	if n < 0 {
		return nil, fmt.Errorf("bytesutil: negative extract length %d", n)
	}
	if c.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// ExtractRemaining returns everything from the current position to the end
// and advances the cursor to the end.
func (c *Cursor) ExtractRemaining() ByteView {
	v := c.buf[c.pos:]
	c.pos = len(c.buf)
	return v
}

// PeekByte returns the byte at the current position without advancing.
func (c *Cursor) PeekByte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, ErrUnexpectedEOF
	}
	return c.buf[c.pos], nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	if c.Remaining() < n {
		return ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

// ReadU8 reads a single big-endian byte.
func (c *Cursor) ReadU8() (uint8, error) {
	v, err := c.ExtractBytes(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadU16BE reads a big-endian uint16.
func (c *Cursor) ReadU16BE() (uint16, error) {
	v, err := c.ExtractBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(v[0])<<8 | uint16(v[1]), nil
}

// ReadU24BE reads a big-endian 24-bit unsigned integer.
func (c *Cursor) ReadU24BE() (uint32, error) {
	v, err := c.ExtractBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(v[0])<<16 | uint32(v[1])<<8 | uint32(v[2]), nil
}

// ReadU32BE reads a big-endian uint32.
func (c *Cursor) ReadU32BE() (uint32, error) {
	v, err := c.ExtractBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), nil
}
