// Package qcrypto implements the per-encryption-level AEAD and
// header-protection key schedules derived via HKDF-Expand-Label, plus
// 1-RTT key update rotation. HKDF and ChaCha20-Poly1305 come from
// golang.org/x/crypto; AES-GCM comes from the standard library, the way
// crypto/tls itself composes these primitives.
package qcrypto

// Level is one of the four QUIC encryption levels, each with its own key
// schedule and packet-number space (Initial keys are derived locally from
// the client's DCID; 0-RTT, Handshake and 1-RTT secrets come from the TLS
// engine).
type Level int

const (
	LevelInitial Level = iota
	LevelZeroRTT
	LevelHandshake
	LevelOneRTT
)

func (l Level) String() string {
	switch l {
	case LevelInitial:
		return "initial"
	case LevelZeroRTT:
		return "0-rtt"
	case LevelHandshake:
		return "handshake"
	case LevelOneRTT:
		return "1-rtt"
	default:
		return "unknown"
	}
}

// Direction selects which side of a level's key schedule to use.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
)
