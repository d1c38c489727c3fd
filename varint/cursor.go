package varint

import (
	"encoding/binary"

	"github.com/caozhiyi/quicx-go/qerrors"
)

// Cursor is a bounds-checked read/write view over a byte slice: a
// (begin, end) window that codec, packet protection and stream
// reassembly all pass around instead of copying. Cursor itself does
// no reference counting; it is a cheap cursor-style accessor.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential reading starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// NewWriteCursor wraps a pre-sized buffer for sequential writing.
func NewWriteCursor(buf []byte) *Cursor { return &Cursor{buf: buf[:0]} }

// Pos returns the current read/write offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Bytes returns the full underlying buffer (for writers, what's been written so far).
func (c *Cursor) Bytes() []byte { return c.buf }

// Remaining returns a slice over the unread tail without advancing pos.
func (c *Cursor) Remaining() []byte { return c.buf[c.pos:] }

// ReadByte reads one byte, advancing pos. The cursor is left unchanged on error.
func (c *Cursor) ReadByte() (byte, error) {
	if c.Len() < 1 {
		return 0, qerrors.New(qerrors.CodeShortBuffer, "ReadByte")
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// ReadN reads exactly n bytes, advancing pos. The returned slice aliases
// the underlying buffer. The cursor is left unchanged on error.
func (c *Cursor) ReadN(n int) ([]byte, error) {
	if c.Len() < n {
		return nil, qerrors.Newf(qerrors.CodeShortBuffer, "ReadN(%d), have %d", n, c.Len())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadUint16 reads a fixed-width big-endian uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.ReadN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint24 reads a fixed-width big-endian, 3-byte unsigned integer.
func (c *Cursor) ReadUint24() (uint32, error) {
	b, err := c.ReadN(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ReadUint32 reads a fixed-width big-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.ReadN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a fixed-width big-endian uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.ReadN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadVarint reads one RFC 9000 §16 variable-length integer.
func (c *Cursor) ReadVarint() (uint64, error) {
	v, n, err := Decode(c.Remaining())
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

// WriteByte appends a single byte. Part of the io.ByteWriter contract.
func (c *Cursor) WriteByte(b byte) error {
	c.buf = append(c.buf, b)
	c.pos++
	return nil
}

// Write appends b verbatim. Part of the io.Writer contract.
func (c *Cursor) Write(b []byte) (int, error) {
	c.buf = append(c.buf, b...)
	c.pos += len(b)
	return len(b), nil
}

// WriteUint16 appends a fixed-width big-endian uint16.
func (c *Cursor) WriteUint16(v uint16) {
	c.buf = append(c.buf, byte(v>>8), byte(v))
	c.pos += 2
}

// WriteUint32 appends a fixed-width big-endian uint32.
func (c *Cursor) WriteUint32(v uint32) {
	c.buf = append(c.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	c.pos += 4
}

// WriteUint64 appends a fixed-width big-endian uint64.
func (c *Cursor) WriteUint64(v uint64) {
	c.buf = append(c.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	c.pos += 8
}

// WriteVarint appends the RFC 9000 §16 encoding of v.
func (c *Cursor) WriteVarint(v uint64) {
	before := len(c.buf)
	c.buf = Encode(c.buf, v)
	c.pos += len(c.buf) - before
}
