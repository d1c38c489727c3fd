// Package frame implements encode/decode for every RFC 9000 §12.4 frame
// type and the ack-eliciting / congestion-controlled / path-probing
// classification used by flow control, the send path and loss detection.
package frame

// Type is a frame's wire tag. STREAM and ACK occupy small tag ranges
// rather than a single value; Type holds the base value the decoder
// dispatches on after peeking the varint tag.
type Type uint64

const (
	TypePadding          Type = 0x00
	TypePing             Type = 0x01
	TypeAck              Type = 0x02 // 0x02-0x03 (plain / ECN)
	TypeAckECN           Type = 0x03
	TypeResetStream      Type = 0x04
	TypeStopSending      Type = 0x05
	TypeCrypto           Type = 0x06
	TypeNewToken         Type = 0x07
	TypeStream           Type = 0x08 // 0x08-0x0f, 3 flag bits
	TypeMaxData          Type = 0x10
	TypeMaxStreamData    Type = 0x11
	TypeMaxStreamsBidi   Type = 0x12
	TypeMaxStreamsUni    Type = 0x13
	TypeDataBlocked      Type = 0x14
	TypeStreamDataBlocked Type = 0x15
	TypeStreamsBlockedBidi Type = 0x16
	TypeStreamsBlockedUni  Type = 0x17
	TypeNewConnectionID  Type = 0x18
	TypeRetireConnectionID Type = 0x19
	TypePathChallenge    Type = 0x1a
	TypePathResponse     Type = 0x1b
	TypeConnectionClose  Type = 0x1c // transport variant
	TypeConnectionCloseApp Type = 0x1d
	TypeHandshakeDone    Type = 0x1e
)

// Class is a bit-set classifying a frame for flow control, congestion
// control and path-validation purposes.
type Class uint8

const (
	AckEliciting Class = 1 << iota
	CongestionControlled
	PathProbing
)

// Frame is the tagged sum over every RFC 9000 frame. Concrete types below
// all implement it.
type Frame interface {
	Type() Type
	Class() Class
	// EncodedLen returns the exact number of bytes Encode will write,
	// without allocating, so the send path can budget MTU space before
	// committing to a frame.
	EncodedLen() int
	Encode(c *Cursor) error
}

// Padding is a single zero byte; packets carry runs of these.
type Padding struct{}

func (Padding) Type() Type       { return TypePadding }
func (Padding) Class() Class     { return PathProbing }
func (Padding) EncodedLen() int  { return 1 }

// Ping carries no fields; it exists purely to elicit an ACK.
type Ping struct{}

func (Ping) Type() Type      { return TypePing }
func (Ping) Class() Class    { return AckEliciting | CongestionControlled }
func (Ping) EncodedLen() int { return 1 }

// AckRange is one (gap, range-length) pair in descending order.
type AckRange struct {
	Gap      uint64 // unacknowledged packet numbers between the previous (higher) range and this one, minus 1
	RangeLen uint64 // ack range length - 1 (count of additional contiguous acked PNs)
}

// Ack carries the coalesced ranges of acknowledged packet numbers and,
// optionally, ECN counters.
type Ack struct {
	LargestAcked uint64
	AckDelay     uint64 // peer's raw (unscaled) ack_delay field
	FirstRange   uint64 // contiguous count ending at LargestAcked, minus 1
	Ranges       []AckRange
	ECN          *ECNCounts // nil when the plain (non-ECN) variant is used
}

// ECNCounts are the three ECN codepoint counters carried by ACK_ECN.
type ECNCounts struct {
	ECT0, ECT1, CE uint64
}

func (a *Ack) Type() Type {
	if a.ECN != nil {
		return TypeAckECN
	}
	return TypeAck
}
func (a *Ack) Class() Class { return 0 } // ACK is never ack-eliciting nor congestion-controlled

// SmallestAcked returns the lowest packet number this ACK frame claims was
// received, used to validate the "implied smallest acked >= 0" decode rule.
func (a *Ack) SmallestAcked() (uint64, bool) {
	largest := a.LargestAcked
	consumed := a.FirstRange
	if consumed > largest {
		return 0, false
	}
	smallest := largest - consumed
	for _, r := range a.Ranges {
		if r.Gap+2 > smallest {
			return 0, false
		}
		smallest -= r.Gap + 2
		if r.RangeLen > smallest {
			return 0, false
		}
		smallest -= r.RangeLen
	}
	return smallest, true
}

// ResetStream abruptly terminates the send side of a stream.
type ResetStream struct {
	StreamID  uint64
	ErrorCode uint64
	FinalSize uint64
}

func (ResetStream) Type() Type   { return TypeResetStream }
func (ResetStream) Class() Class { return AckEliciting | CongestionControlled }

// StopSending asks a peer to abandon sending on a stream.
type StopSending struct {
	StreamID  uint64
	ErrorCode uint64
}

func (StopSending) Type() Type   { return TypeStopSending }
func (StopSending) Class() Class { return AckEliciting | CongestionControlled }

// Crypto carries a chunk of the TLS handshake byte stream for one
// encryption level; it may arrive out of order.
type Crypto struct {
	Offset uint64
	Data   []byte
}

func (Crypto) Type() Type   { return TypeCrypto }
func (Crypto) Class() Class { return AckEliciting | CongestionControlled }

// NewToken supplies an address-validation token for a future connection.
type NewToken struct {
	Token []byte
}

func (NewToken) Type() Type   { return TypeNewToken }
func (NewToken) Class() Class { return AckEliciting | CongestionControlled }

// Stream carries application data. OffsetPresent/LengthPresent/Fin are the
// three bits RFC 9000's 8 STREAM sub-encodings select between; when
// LengthPresent is false the frame is understood to extend to the end of
// the packet.
type Stream struct {
	StreamID      uint64
	Offset        uint64
	OffsetPresent bool
	LengthPresent bool
	Fin           bool
	Data          []byte
}

func (s *Stream) Type() Type {
	t := TypeStream
	if s.OffsetPresent {
		t |= 0x04
	}
	if s.LengthPresent {
		t |= 0x02
	}
	if s.Fin {
		t |= 0x01
	}
	return t
}
func (*Stream) Class() Class { return AckEliciting | CongestionControlled }

// MaxData raises the connection-wide send limit.
type MaxData struct{ Maximum uint64 }

func (MaxData) Type() Type   { return TypeMaxData }
func (MaxData) Class() Class { return AckEliciting | CongestionControlled }

// MaxStreamData raises the per-stream send limit.
type MaxStreamData struct {
	StreamID uint64
	Maximum  uint64
}

func (MaxStreamData) Type() Type   { return TypeMaxStreamData }
func (MaxStreamData) Class() Class { return AckEliciting | CongestionControlled }

// MaxStreams raises the peer's stream-creation limit for one directionality.
type MaxStreams struct {
	Bidi    bool
	Maximum uint64
}

func (m MaxStreams) Type() Type {
	if m.Bidi {
		return TypeMaxStreamsBidi
	}
	return TypeMaxStreamsUni
}
func (MaxStreams) Class() Class { return AckEliciting | CongestionControlled }

// DataBlocked signals the sender was limited by the connection-wide window.
type DataBlocked struct{ Limit uint64 }

func (DataBlocked) Type() Type   { return TypeDataBlocked }
func (DataBlocked) Class() Class { return AckEliciting | CongestionControlled }

// StreamDataBlocked signals the sender was limited by a per-stream window.
type StreamDataBlocked struct {
	StreamID uint64
	Limit    uint64
}

func (StreamDataBlocked) Type() Type   { return TypeStreamDataBlocked }
func (StreamDataBlocked) Class() Class { return AckEliciting | CongestionControlled }

// StreamsBlocked signals the sender hit its stream-creation limit.
type StreamsBlocked struct {
	Bidi  bool
	Limit uint64
}

func (s StreamsBlocked) Type() Type {
	if s.Bidi {
		return TypeStreamsBlockedBidi
	}
	return TypeStreamsBlockedUni
}
func (StreamsBlocked) Class() Class { return AckEliciting | CongestionControlled }

// NewConnectionID announces a connection ID the peer may address us with.
type NewConnectionID struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

func (NewConnectionID) Type() Type   { return TypeNewConnectionID }
func (NewConnectionID) Class() Class { return AckEliciting | CongestionControlled | PathProbing }

// RetireConnectionID acknowledges retirement of a previously issued CID.
type RetireConnectionID struct{ SequenceNumber uint64 }

func (RetireConnectionID) Type() Type   { return TypeRetireConnectionID }
func (RetireConnectionID) Class() Class { return AckEliciting | CongestionControlled }

// PathChallenge probes a network path; PathResponse must echo Data exactly.
type PathChallenge struct{ Data [8]byte }

func (PathChallenge) Type() Type   { return TypePathChallenge }
func (PathChallenge) Class() Class { return AckEliciting | CongestionControlled | PathProbing }

// PathResponse is described above PathChallenge.
type PathResponse struct{ Data [8]byte }

func (PathResponse) Type() Type   { return TypePathResponse }
func (PathResponse) Class() Class { return AckEliciting | CongestionControlled | PathProbing }

// ConnectionClose terminates the connection. IsApplication selects the
// application-level variant, forbidden in Initial/Handshake packets.
type ConnectionClose struct {
	IsApplication bool
	ErrorCode     uint64
	FrameType     uint64 // only meaningful for the transport variant
	Reason        string
}

func (c ConnectionClose) Type() Type {
	if c.IsApplication {
		return TypeConnectionCloseApp
	}
	return TypeConnectionClose
}
func (ConnectionClose) Class() Class { return 0 }

// HandshakeDone confirms the handshake to the client; server-only.
type HandshakeDone struct{}

func (HandshakeDone) Type() Type   { return TypeHandshakeDone }
func (HandshakeDone) Class() Class { return AckEliciting | CongestionControlled }
