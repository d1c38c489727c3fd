package packet

import (
	"github.com/caozhiyi/quicx-go/packetnumber"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// aeadTagLen is 16 bytes for all three RFC 9001 §5.3 AEAD suites.
const aeadTagLen = 16

// sampleLen is the header-protection sample size (RFC 9001 §5.4.2): always
// 16 bytes, taken starting 4 bytes after the packet-number field begins,
// regardless of the field's actual length, so the sample position never
// depends on information the header protection itself is hiding.
const sampleLen = 16

func hpSample(data []byte, pnOffset int) ([]byte, error) {
	start := pnOffset + 4
	if start+sampleLen > len(data) {
		return nil, qerrors.New(qerrors.CodeShortBuffer, "packet too short for header-protection sample")
	}
	return data[start : start+sampleLen], nil
}

// BuildLongHeaderPacket protects a complete long-header packet: header
// fields, a full 62-bit packet number (truncated per packetnumber against
// largestAcked), and a plaintext frame payload. Returns the wire bytes.
func BuildLongHeaderPacket(c *qcrypto.Cryptographer, h LongHeader, largestAcked int64, pn uint64, payload []byte) ([]byte, error) {
	pnLen := packetnumber.Encode(largestAcked, pn)
	h.Length = uint64(pnLen) + uint64(len(payload)) + aeadTagLen

	buf := make([]byte, 0, 64+len(h.DCID)+len(h.SCID)+len(h.Token)+pnLen)
	cur := varint.NewWriteCursor(buf)
	if err := encodeLongHeaderPrefix(cur, h, pnLen); err != nil {
		return nil, err
	}
	pnOffset := cur.Pos()
	if _, err := cur.Write(packetnumber.TruncatedBytes(pn, pnLen)); err != nil {
		return nil, err
	}

	headerBytes := append([]byte(nil), cur.Bytes()...) // AAD: header including plaintext PN
	level := h.Type.Level()
	sealed, err := c.Protect(level, pn, headerBytes, payload)
	if err != nil {
		return nil, err
	}
	out := append(cur.Bytes(), sealed...)

	if err := applyHP(c, level, qcrypto.DirectionWrite, out, pnOffset, pnLen, true); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseLongHeaderPacket removes header protection and AEAD-opens a single
// long-header packet occupying exactly data (callers split coalesced
// datagrams first). largestPN is the largest packet number processed so
// far in this packet's number space, used to reconstruct the full PN.
func ParseLongHeaderPacket(c *qcrypto.Cryptographer, data []byte, largestPN int64) (LongHeader, uint64, []byte, error) {
	cur := varint.NewCursor(data)
	h, guessedPNLen, err := parseLongHeaderPrefix(cur)
	if err != nil {
		return h, 0, nil, err
	}
	pnOffset := cur.Pos()
	level := h.Type.Level()

	sample, err := hpSample(data, pnOffset)
	if err != nil {
		return h, 0, nil, err
	}
	ks, err := c.KeysFor(level, qcrypto.DirectionRead)
	if err != nil {
		return h, 0, nil, err
	}
	mask, err := ks.Suite.HPMask(ks.HP, sample)
	if err != nil {
		return h, 0, nil, qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}

	firstByteUnmasked := data[0] ^ (mask[0] & 0x0f)
	pnLen := int(firstByteUnmasked&0x03) + 1
	_ = guessedPNLen

	if pnOffset+pnLen > len(data) {
		return h, 0, nil, qerrors.New(qerrors.CodeShortBuffer, "packet number field truncated")
	}
	truncated := make([]byte, pnLen)
	for i := 0; i < pnLen; i++ {
		truncated[i] = data[pnOffset+i] ^ mask[1+i]
	}
	data[0] = firstByteUnmasked
	copy(data[pnOffset:pnOffset+pnLen], truncated)

	pn := packetnumber.Decode(largestPN, truncated)

	headerEnd := pnOffset + pnLen
	payloadEnd := pnOffset + int(h.Length)
	if payloadEnd > len(data) {
		return h, 0, nil, qerrors.New(qerrors.CodeShortBuffer, "packet length exceeds datagram")
	}
	headerBytes := data[:headerEnd]
	ciphertext := data[headerEnd:payloadEnd]

	plaintext, err := c.Unprotect(level, pn, headerBytes, ciphertext)
	if err != nil {
		return h, pn, nil, err
	}
	return h, pn, plaintext, nil
}

// BuildShortHeaderPacket protects a 1-RTT packet. The short header has no
// explicit length field; the returned slice is exactly as long as the
// protected packet and is expected to be the last packet in its datagram.
func BuildShortHeaderPacket(c *qcrypto.Cryptographer, h ShortHeader, largestAcked int64, pn uint64, payload []byte) ([]byte, error) {
	pnLen := packetnumber.Encode(largestAcked, pn)
	firstByte := byte(0x40) | byte(pnLen-1)
	if h.SpinBit {
		firstByte |= 0x20
	}
	if h.KeyPhase {
		firstByte |= 0x04
	}

	buf := make([]byte, 0, 1+len(h.DCID)+pnLen)
	cur := varint.NewWriteCursor(buf)
	if err := cur.WriteByte(firstByte); err != nil {
		return nil, err
	}
	if _, err := cur.Write(h.DCID); err != nil {
		return nil, err
	}
	pnOffset := cur.Pos()
	if _, err := cur.Write(packetnumber.TruncatedBytes(pn, pnLen)); err != nil {
		return nil, err
	}

	headerBytes := append([]byte(nil), cur.Bytes()...)
	sealed, err := c.Protect(qcrypto.LevelOneRTT, pn, headerBytes, payload)
	if err != nil {
		return nil, err
	}
	out := append(cur.Bytes(), sealed...)

	if err := applyHP(c, qcrypto.LevelOneRTT, qcrypto.DirectionWrite, out, pnOffset, pnLen, false); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseShortHeaderPacket mirrors ParseLongHeaderPacket for 1-RTT packets.
// dcidLen comes from the connection-ID registry: short headers don't
// carry their own DCID length on the wire.
func ParseShortHeaderPacket(c *qcrypto.Cryptographer, data []byte, dcidLen int, largestPN int64) (ShortHeader, uint64, []byte, error) {
	var h ShortHeader
	if len(data) < 1+dcidLen {
		return h, 0, nil, qerrors.New(qerrors.CodeShortBuffer, "short header truncated")
	}
	h.DCID = append([]byte(nil), data[1:1+dcidLen]...)
	pnOffset := 1 + dcidLen

	sample, err := hpSample(data, pnOffset)
	if err != nil {
		return h, 0, nil, err
	}
	ks, err := c.KeysFor(qcrypto.LevelOneRTT, qcrypto.DirectionRead)
	if err != nil {
		return h, 0, nil, err
	}
	mask, err := ks.Suite.HPMask(ks.HP, sample)
	if err != nil {
		return h, 0, nil, qerrors.Wrap(qerrors.CodeKeyNotAvailable, err)
	}

	firstByteUnmasked := data[0] ^ (mask[0] & 0x1f)
	pnLen := int(firstByteUnmasked&0x03) + 1
	h.SpinBit = firstByteUnmasked&0x20 != 0
	h.KeyPhase = firstByteUnmasked&0x04 != 0

	if pnOffset+pnLen > len(data) {
		return h, 0, nil, qerrors.New(qerrors.CodeShortBuffer, "packet number field truncated")
	}
	truncated := make([]byte, pnLen)
	for i := 0; i < pnLen; i++ {
		truncated[i] = data[pnOffset+i] ^ mask[1+i]
	}
	data[0] = firstByteUnmasked
	copy(data[pnOffset:pnOffset+pnLen], truncated)

	pn := packetnumber.Decode(largestPN, truncated)
	headerEnd := pnOffset + pnLen
	headerBytes := data[:headerEnd]
	ciphertext := data[headerEnd:]

	var plaintext []byte
	if h.KeyPhase != c.KeyPhase() {
		plaintext, err = c.UnprotectWithPreviousPhase(pn, headerBytes, ciphertext)
	} else {
		plaintext, err = c.Unprotect(qcrypto.LevelOneRTT, pn, headerBytes, ciphertext)
	}
	if err != nil {
		return h, pn, nil, err
	}
	return h, pn, plaintext, nil
}

func applyHP(c *qcrypto.Cryptographer, level qcrypto.Level, dir qcrypto.Direction, buf []byte, pnOffset, pnLen int, isLong bool) error {
	ks, err := c.KeysFor(level, dir)
	if err != nil {
		return err
	}
	sample, err := hpSample(buf, pnOffset)
	if err != nil {
		return err
	}
	return qcrypto.ApplyHeaderProtection(ks, buf, pnOffset, pnLen, sample, isLong)
}
