package conn

import (
	"time"

	"github.com/caozhiyi/quicx-go/ackgen"
	"github.com/caozhiyi/quicx-go/qcrypto"
	"github.com/caozhiyi/quicx-go/recovery"
)

// pnSpace bundles everything scoped to one packet-number space: the
// outgoing packet-number counter, the loss-detection tracker, the ACK
// generator for inbound packets in this space, and the CRYPTO stream
// carried at this space's encryption level (every space has one; the
// Application space's carries post-handshake data such as
// NewSessionTicket).
type pnSpace struct {
	level     qcrypto.Level
	nextPN    uint64
	largestRX int64 // -1 until a packet has been received in this space
	crypto    *cryptoStream
	ack       *ackgen.Generator
	discarded bool
}

func newPNSpace(level qcrypto.Level, ackDelayExponent uint8, maxAckDelay time.Duration) *pnSpace {
	return &pnSpace{
		level:     level,
		largestRX: -1,
		crypto:    newCryptoStream(),
		ack:       ackgen.New(ackDelayExponent, maxAckDelay),
	}
}

// allocatePN returns the next packet number to send in this space.
func (s *pnSpace) allocatePN() uint64 {
	pn := s.nextPN
	s.nextPN++
	return pn
}

// onPacketNumberSeen updates the largest-received watermark used for PN
// decoding truncation (RFC 9000 §17.1) on the next packet in this space.
func (s *pnSpace) onPacketNumberSeen(pn uint64) {
	if int64(pn) > s.largestRX {
		s.largestRX = int64(pn)
	}
}

// spaceIDFor maps an encryption level onto this connection's recovery
// detector's SpaceID (RFC 9002's packet-number-space concept). Levels map
// onto recovery.SpaceID 1:1 except 0-RTT, which shares the Application
// space's packet numbers and loss tracking.
func spaceIDFor(level qcrypto.Level) recovery.SpaceID {
	switch level {
	case qcrypto.LevelInitial:
		return recovery.SpaceInitial
	case qcrypto.LevelHandshake:
		return recovery.SpaceHandshake
	default:
		return recovery.SpaceApplication
	}
}
