// Package packet implements long/short header parsing, AEAD packet
// protection and header-protection mask application, coalesced datagram
// splitting, and the Retry integrity tag. It drives qcrypto but knows
// nothing about frames above the payload boundary.
package packet

import "github.com/caozhiyi/quicx-go/qcrypto"

// LongType distinguishes the four long-header packet types (RFC 9000
// §17.2). VersionNegotiation is carried separately since it has no
// type bits of its own (version == 0 signals it).
type LongType byte

const (
	LongTypeInitial   LongType = 0x00
	LongTypeZeroRTT   LongType = 0x01
	LongTypeHandshake LongType = 0x02
	LongTypeRetry     LongType = 0x03
)

func (t LongType) Level() qcrypto.Level {
	switch t {
	case LongTypeInitial:
		return qcrypto.LevelInitial
	case LongTypeZeroRTT:
		return qcrypto.LevelZeroRTT
	case LongTypeHandshake:
		return qcrypto.LevelHandshake
	default:
		return qcrypto.LevelInitial
	}
}

// LongHeader is the unprotected portion of a long-header packet (RFC 9000
// §17.2): everything up to and including the length field. The packet
// number itself is still header-protected at parse time.
type LongHeader struct {
	Type    LongType
	Version uint32
	DCID    []byte
	SCID    []byte
	Token   []byte // Initial only
	Length  uint64 // remaining bytes: protected PN + payload + tag
}

// ShortHeader is the unprotected portion of a 1-RTT short header (RFC 9000
// §17.3). DCID length is not on the wire; the caller supplies it from the
// connection-ID registry.
type ShortHeader struct {
	SpinBit  bool
	KeyPhase bool
	DCID     []byte
}

// VersionNegotiation lists the versions a server supports, sent in
// response to an Initial carrying an unsupported version.
type VersionNegotiation struct {
	DCID, SCID []byte
	Versions   []uint32
}
