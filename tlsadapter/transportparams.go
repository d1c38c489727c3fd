package tlsadapter

import (
	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/caozhiyi/quicx-go/varint"
)

// ParamID is a transport-parameter identifier, RFC 9000 §18.2.
type ParamID uint64

const (
	ParamOriginalDestinationConnectionID ParamID = 0x00
	ParamMaxIdleTimeout                  ParamID = 0x01
	ParamStatelessResetToken             ParamID = 0x02
	ParamMaxUDPPayloadSize               ParamID = 0x03
	ParamInitialMaxData                  ParamID = 0x04
	ParamInitialMaxStreamDataBidiLocal   ParamID = 0x05
	ParamInitialMaxStreamDataBidiRemote  ParamID = 0x06
	ParamInitialMaxStreamDataUni         ParamID = 0x07
	ParamInitialMaxStreamsBidi           ParamID = 0x08
	ParamInitialMaxStreamsUni            ParamID = 0x09
	ParamAckDelayExponent                ParamID = 0x0a
	ParamMaxAckDelay                     ParamID = 0x0b
	ParamDisableActiveMigration          ParamID = 0x0c
	ParamPreferredAddress                ParamID = 0x0d
	ParamActiveConnectionIDLimit         ParamID = 0x0e
	ParamInitialSourceConnectionID       ParamID = 0x0f
	ParamRetrySourceConnectionID         ParamID = 0x10

	// paramStatelessResetTokenLen is the fixed length Decode requires of
	// the stateless_reset_token parameter.
	paramStatelessResetTokenLen = 16
)

// serverOnly lists parameters a client must never send; receiving one
// from a client is a fatal transport parameter error.
var serverOnly = map[ParamID]bool{
	ParamOriginalDestinationConnectionID: true,
	ParamStatelessResetToken:             true,
	ParamPreferredAddress:                true,
	ParamRetrySourceConnectionID:         true,
}

// Params holds the subset of the 17 RFC 9000 §18.2 transport parameters
// this endpoint cares about; varint-valued ones are 0 when absent. Decode
// does not fill in the RFC's non-zero defaults (for example
// ack_delay_exponent 3 or max_ack_delay 25), so an absent one reads as 0.
type Params struct {
	OriginalDestinationConnectionID []byte
	InitialSourceConnectionID       []byte
	RetrySourceConnectionID         []byte
	StatelessResetToken             []byte // exactly 16 bytes when present
	PreferredAddress                []byte // opaque; preferred-address migration is out of scope beyond round-tripping bytes

	MaxIdleTimeoutMs             uint64
	MaxUDPPayloadSize            uint64
	InitialMaxData                uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64
	AckDelayExponent               uint64
	MaxAckDelayMs                  uint64
	ActiveConnectionIDLimit        uint64
	DisableActiveMigration         bool
}

// Encode writes p as the (id, length, value) triples RFC 9000 §18.2
// describes.
func Encode(p Params) []byte {
	c := varint.NewWriteCursor(make([]byte, 0, 128))
	writeBytes := func(id ParamID, v []byte) {
		if v == nil {
			return
		}
		c.WriteVarint(uint64(id))
		c.WriteVarint(uint64(len(v)))
		c.Write(v)
	}
	writeVarint := func(id ParamID, v uint64, omitZero bool) {
		if omitZero && v == 0 {
			return
		}
		c.WriteVarint(uint64(id))
		vbuf := varint.Encode(nil, v)
		c.WriteVarint(uint64(len(vbuf)))
		c.Write(vbuf)
	}
	writeFlag := func(id ParamID, set bool) {
		if !set {
			return
		}
		c.WriteVarint(uint64(id))
		c.WriteVarint(0)
	}

	writeBytes(ParamOriginalDestinationConnectionID, p.OriginalDestinationConnectionID)
	writeVarint(ParamMaxIdleTimeout, p.MaxIdleTimeoutMs, true)
	writeBytes(ParamStatelessResetToken, p.StatelessResetToken)
	writeVarint(ParamMaxUDPPayloadSize, p.MaxUDPPayloadSize, true)
	writeVarint(ParamInitialMaxData, p.InitialMaxData, true)
	writeVarint(ParamInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal, true)
	writeVarint(ParamInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote, true)
	writeVarint(ParamInitialMaxStreamDataUni, p.InitialMaxStreamDataUni, true)
	writeVarint(ParamInitialMaxStreamsBidi, p.InitialMaxStreamsBidi, true)
	writeVarint(ParamInitialMaxStreamsUni, p.InitialMaxStreamsUni, true)
	writeVarint(ParamAckDelayExponent, p.AckDelayExponent, true)
	writeVarint(ParamMaxAckDelay, p.MaxAckDelayMs, true)
	writeFlag(ParamDisableActiveMigration, p.DisableActiveMigration)
	writeBytes(ParamPreferredAddress, p.PreferredAddress)
	writeVarint(ParamActiveConnectionIDLimit, p.ActiveConnectionIDLimit, true)
	writeBytes(ParamInitialSourceConnectionID, p.InitialSourceConnectionID)
	writeBytes(ParamRetrySourceConnectionID, p.RetrySourceConnectionID)

	return c.Bytes()
}

// Decode parses the transport-parameter extension bytes a peer sent.
// isFromClient gates the server-only parameters; a client extension
// carrying one is a fatal TransportParameterError.
func Decode(data []byte, isFromClient bool) (Params, error) {
	var p Params
	c := varint.NewCursor(data)
	for c.Len() > 0 {
		id, err := c.ReadVarint()
		if err != nil {
			return p, qerrors.Wrap(qerrors.CodeTransportParamError, err)
		}
		length, err := c.ReadVarint()
		if err != nil {
			return p, qerrors.Wrap(qerrors.CodeTransportParamError, err)
		}
		value, err := c.ReadN(int(length))
		if err != nil {
			return p, qerrors.Wrap(qerrors.CodeTransportParamError, err)
		}
		pid := ParamID(id)
		if isFromClient && serverOnly[pid] {
			return p, qerrors.Newf(qerrors.CodeTransportParamError, "client sent server-only parameter 0x%x", id)
		}

		switch pid {
		case ParamOriginalDestinationConnectionID:
			p.OriginalDestinationConnectionID = append([]byte(nil), value...)
		case ParamInitialSourceConnectionID:
			p.InitialSourceConnectionID = append([]byte(nil), value...)
		case ParamRetrySourceConnectionID:
			p.RetrySourceConnectionID = append([]byte(nil), value...)
		case ParamStatelessResetToken:
			if len(value) != paramStatelessResetTokenLen {
				return p, qerrors.New(qerrors.CodeTransportParamError, "stateless_reset_token must be 16 bytes")
			}
			p.StatelessResetToken = append([]byte(nil), value...)
		case ParamPreferredAddress:
			p.PreferredAddress = append([]byte(nil), value...)
		case ParamDisableActiveMigration:
			p.DisableActiveMigration = true
		case ParamMaxIdleTimeout, ParamMaxUDPPayloadSize, ParamInitialMaxData,
			ParamInitialMaxStreamDataBidiLocal, ParamInitialMaxStreamDataBidiRemote,
			ParamInitialMaxStreamDataUni, ParamInitialMaxStreamsBidi, ParamInitialMaxStreamsUni,
			ParamAckDelayExponent, ParamMaxAckDelay, ParamActiveConnectionIDLimit:
			v, _, err := varint.Decode(value)
			if err != nil {
				return p, qerrors.Wrap(qerrors.CodeTransportParamError, err)
			}
			assignVarintParam(&p, pid, v)
		default:
			// Unknown parameters are ignored per RFC 9000 §7.4.
		}
	}
	if p.AckDelayExponent > 20 {
		return p, qerrors.New(qerrors.CodeTransportParamError, "ack_delay_exponent exceeds 20")
	}
	return p, nil
}

func assignVarintParam(p *Params, id ParamID, v uint64) {
	switch id {
	case ParamMaxIdleTimeout:
		p.MaxIdleTimeoutMs = v
	case ParamMaxUDPPayloadSize:
		p.MaxUDPPayloadSize = v
	case ParamInitialMaxData:
		p.InitialMaxData = v
	case ParamInitialMaxStreamDataBidiLocal:
		p.InitialMaxStreamDataBidiLocal = v
	case ParamInitialMaxStreamDataBidiRemote:
		p.InitialMaxStreamDataBidiRemote = v
	case ParamInitialMaxStreamDataUni:
		p.InitialMaxStreamDataUni = v
	case ParamInitialMaxStreamsBidi:
		p.InitialMaxStreamsBidi = v
	case ParamInitialMaxStreamsUni:
		p.InitialMaxStreamsUni = v
	case ParamAckDelayExponent:
		p.AckDelayExponent = v
	case ParamMaxAckDelay:
		p.MaxAckDelayMs = v
	case ParamActiveConnectionIDLimit:
		p.ActiveConnectionIDLimit = v
	}
}
