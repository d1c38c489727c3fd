package recovery

import "time"

// PacketState is a sent packet's lifecycle, used to guarantee
// bytes_in_flight is credited exactly once.
type PacketState int

const (
	StateInFlight PacketState = iota
	StateAcked
	StateLost
	StateDiscarded
)

// SentPacket records what a space needs to retain about an outstanding
// packet number to later detect loss or process an ACK.
type SentPacket struct {
	PN            uint64
	SentAt        time.Time
	Size          int
	AckEliciting  bool
	InFlight      bool // congestion-controlled (excludes pure ACK/path-probe)
	State         PacketState
	Frames        []FrameRecord
}

// FrameRecord is enough of a sent frame to rebuild a retransmission: the
// space doesn't keep the original wire bytes, only what's needed to
// requeue the carried data on a new packet number.
type FrameRecord struct {
	Kind string // "crypto", "stream", "reset_stream", "max_data", ...
	Data interface{}
}

// Space tracks one packet-number space's outstanding sent packets and
// drives loss detection over them. One Space exists per encryption level
// that has its own packet-number sequence (Initial, Handshake, 1-RTT).
type Space struct {
	sent    map[uint64]*SentPacket
	largestAcked        uint64
	haveLargestAcked    bool
	lossTime            time.Time
	haveLossTime        bool
	ptoCount            int
}

// NewSpace creates an empty packet-number space tracker.
func NewSpace() *Space {
	return &Space{sent: make(map[uint64]*SentPacket)}
}

// OnPacketSent records pn as just sent; size counts toward bytes_in_flight
// only when inFlight is true (path probes and pure ACKs are not congestion
// controlled).
func (s *Space) OnPacketSent(pn uint64, now time.Time, size int, ackEliciting, inFlight bool, frames []FrameRecord) *SentPacket {
	p := &SentPacket{PN: pn, SentAt: now, Size: size, AckEliciting: ackEliciting, InFlight: inFlight, State: StateInFlight, Frames: frames}
	s.sent[pn] = p
	return p
}

// InFlightBytes sums Size over packets still in StateInFlight with
// InFlight=true.
func (s *Space) InFlightBytes() int {
	total := 0
	for _, p := range s.sent {
		if p.State == StateInFlight && p.InFlight {
			total += p.Size
		}
	}
	return total
}

// HasInFlightAckEliciting reports whether any ack-eliciting packet is
// still outstanding, the condition that arms the PTO timer.
func (s *Space) HasInFlightAckEliciting() bool {
	for _, p := range s.sent {
		if p.State == StateInFlight && p.AckEliciting {
			return true
		}
	}
	return false
}

// SentAt returns when pn was sent, if it is still tracked (in flight,
// not yet acked/lost/discarded and pruned).
func (s *Space) SentAt(pn uint64) (time.Time, bool) {
	p, ok := s.sent[pn]
	if !ok {
		return time.Time{}, false
	}
	return p.SentAt, true
}

// OldestInFlightSentAt returns the send time of the oldest still-in-flight
// packet, used to compute the PTO deadline.
func (s *Space) OldestInFlightSentAt() (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, p := range s.sent {
		if p.State != StateInFlight {
			continue
		}
		if !found || p.SentAt.Before(oldest) {
			oldest = p.SentAt
			found = true
		}
	}
	return oldest, found
}

// PTOCount returns the current consecutive-PTO-expiry backoff exponent.
func (s *Space) PTOCount() int { return s.ptoCount }

// OnPTOExpired doubles the backoff exponent.
func (s *Space) OnPTOExpired() { s.ptoCount++ }

// ResetPTOBackoff clears the backoff, done on a valid ACK in a space that
// was not anti-amplification-blocked.
func (s *Space) ResetPTOBackoff() { s.ptoCount = 0 }
