// Package varint implements RFC 9000 §16 variable-length integer encoding
// and the fixed-width big-endian helpers the rest of the wire codec builds
// on.
package varint

import "github.com/caozhiyi/quicx-go/qerrors"

// MaxValue is the largest value representable in a QUIC varint, 2^62-1.
const MaxValue = uint64(1)<<62 - 1

// Len returns the number of bytes Encode would use for value, the
// shortest of {1,2,4,8} that fits.
func Len(value uint64) int {
	switch {
	case value <= 63:
		return 1
	case value <= 16383:
		return 2
	case value <= 1073741823:
		return 4
	default:
		return 8
	}
}

// Encode appends value's varint encoding to dst and returns the result.
// It panics if value exceeds MaxValue: an out-of-range value on send is a
// caller bug, not a recoverable codec error.
func Encode(dst []byte, value uint64) []byte {
	if value > MaxValue {
		panic("varint: value exceeds 62-bit range")
	}
	switch n := Len(value); n {
	case 1:
		return append(dst, byte(value))
	case 2:
		v := uint16(value) | 0x4000
		return append(dst, byte(v>>8), byte(v))
	case 4:
		v := uint32(value) | 0x80000000
		return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	case 8:
		v := value | 0xC000000000000000
		return append(dst,
			byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		panic("varint: value exceeds 62-bit range")
	}
}

// Decode reads one varint from the front of buf, returning the value and
// the number of bytes consumed. It returns qerrors.CodeShortBuffer if buf
// is too short to hold the encoding the first byte announces.
func Decode(buf []byte) (value uint64, consumed int, err error) {
	if len(buf) < 1 {
		return 0, 0, qerrors.New(qerrors.CodeShortBuffer, "empty buffer")
	}

	first := buf[0]
	length := 1 << (first >> 6) // 1, 2, 4, or 8
	if len(buf) < length {
		return 0, 0, qerrors.Newf(qerrors.CodeShortBuffer, "need %d bytes, have %d", length, len(buf))
	}

	value = uint64(first & 0x3f)
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(buf[i])
	}
	return value, length, nil
}
