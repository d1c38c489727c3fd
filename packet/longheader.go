package packet

import (
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// Cursor is shared with the varint/frame packages' cursor type.
type Cursor = varint.Cursor

// IsLongHeader reports whether the first byte of a packet indicates a long
// header (RFC 9000 §17.2: the high bit is set).
func IsLongHeader(firstByte byte) bool { return firstByte&0x80 != 0 }

// PeekVersion reads the version field of a long-header packet without
// consuming anything, so the demuxer (cidreg) can special-case version 0
// (Version Negotiation) before committing to a parse.
func PeekVersion(data []byte) (uint32, bool) {
	if len(data) < 5 || !IsLongHeader(data[0]) {
		return 0, false
	}
	return uint32(data[1])<<24 | uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4]), true
}

// PeekLongHeaderDCID returns a long-header packet's destination connection
// ID without removing header protection, for the demuxer (cidreg) to route
// by: the DCID and its length prefix are sent in the clear (RFC 9000
// §17.2).
func PeekLongHeaderDCID(data []byte) ([]byte, error) {
	cur := varint.NewCursor(data)
	h, _, err := parseLongHeaderPrefix(cur)
	if err != nil {
		return nil, err
	}
	return h.DCID, nil
}

// PeekShortHeaderDCID returns a short-header packet's destination
// connection ID, given the length the demuxer's CID registry has on file
// for this socket (short headers carry no DCID length of their own, RFC
// 9000 §17.3).
func PeekShortHeaderDCID(data []byte, dcidLen int) ([]byte, error) {
	if len(data) < 1+dcidLen {
		return nil, qerrors.New(qerrors.CodeShortBuffer, "short header too short for DCID")
	}
	return data[1 : 1+dcidLen], nil
}

// PeekLongHeaderCIDs returns both connection IDs of a long-header packet,
// for the endpoint runtime to mint a server connection from a client's
// first Initial: dcid re-derives the Initial secrets, scid becomes the new
// connection's peer CID.
func PeekLongHeaderCIDs(data []byte) (dcid, scid []byte, err error) {
	cur := varint.NewCursor(data)
	h, _, err := parseLongHeaderPrefix(cur)
	if err != nil {
		return nil, nil, err
	}
	return h.DCID, h.SCID, nil
}

// encodeLongHeaderPrefix writes everything up to and including Length,
// leaving the cursor positioned where the PN bytes belong. h.Length must
// already equal pnLen + encrypted-payload-length (PN field + payload +
// AEAD tag), per RFC 9000 §17.2.
func encodeLongHeaderPrefix(c *Cursor, h LongHeader, pnLen int) error {
	firstByte := byte(0xc0) | byte(h.Type)<<4 | byte(pnLen-1)
	if err := c.WriteByte(firstByte); err != nil {
		return err
	}
	c.WriteUint32(h.Version)
	if err := c.WriteByte(byte(len(h.DCID))); err != nil {
		return err
	}
	if _, err := c.Write(h.DCID); err != nil {
		return err
	}
	if err := c.WriteByte(byte(len(h.SCID))); err != nil {
		return err
	}
	if _, err := c.Write(h.SCID); err != nil {
		return err
	}
	if h.Type == LongTypeInitial {
		c.WriteVarint(uint64(len(h.Token)))
		if _, err := c.Write(h.Token); err != nil {
			return err
		}
	}
	c.WriteVarint(h.Length)
	return nil
}

// parseLongHeaderPrefix reads the unprotected long-header fields and
// returns the header plus the PN-length implied by the first byte's low
// bits (still header-protected: the caller must remove protection before
// trusting pnLen).
func parseLongHeaderPrefix(c *Cursor) (LongHeader, int, error) {
	var h LongHeader
	first, err := c.ReadByte()
	if err != nil {
		return h, 0, err
	}
	if !IsLongHeader(first) {
		return h, 0, qerrors.New(qerrors.CodeFrameEncodingErr, "not a long header")
	}
	h.Type = LongType((first >> 4) & 0x03)
	pnLen := int(first&0x03) + 1

	h.Version, err = c.ReadUint32()
	if err != nil {
		return h, 0, err
	}
	if h.Version == 0 {
		return h, 0, qerrors.New(qerrors.CodeFrameEncodingErr, "version negotiation has no long-header body")
	}

	dcidLen, err := c.ReadByte()
	if err != nil {
		return h, 0, err
	}
	dcid, err := c.ReadN(int(dcidLen))
	if err != nil {
		return h, 0, err
	}
	h.DCID = append([]byte(nil), dcid...)

	scidLen, err := c.ReadByte()
	if err != nil {
		return h, 0, err
	}
	scid, err := c.ReadN(int(scidLen))
	if err != nil {
		return h, 0, err
	}
	h.SCID = append([]byte(nil), scid...)

	if h.Type == LongTypeInitial {
		tokenLen, err := c.ReadVarint()
		if err != nil {
			return h, 0, err
		}
		tok, err := c.ReadN(int(tokenLen))
		if err != nil {
			return h, 0, err
		}
		h.Token = append([]byte(nil), tok...)
	}

	h.Length, err = c.ReadVarint()
	if err != nil {
		return h, 0, err
	}
	return h, pnLen, nil
}
