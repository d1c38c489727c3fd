// Package congestion implements the pacer and congestion controller: a
// Reno-style window (RFC 9002 §7.2), a token-bucket pacer built on
// golang.org/x/time/rate, and the anti-amplification controller RFC 9000
// §8.1 requires before address validation.
package congestion

import "time"

// MSS is the maximum datagram size congestion control counts in,
// matching the conservative default UDP payload size the packetizer
// targets.
const MSS = 1200

const minCwnd = 2 * MSS

// Reno implements the slow-start / congestion-avoidance / loss-response
// controller from RFC 9002 §7.2.
type Reno struct {
	cwnd           uint64
	ssthresh       uint64
	bytesInFlight  uint64
	ackedInRound   uint64
}

// NewReno starts in slow start with the RFC 9002 default initial window
// (10 * MSS, capped at 14720 bytes).
func NewReno() *Reno {
	iw := uint64(10 * MSS)
	if iw > 14720 {
		iw = 14720
	}
	return &Reno{cwnd: iw, ssthresh: ^uint64(0)}
}

// Cwnd returns the current congestion window.
func (r *Reno) Cwnd() uint64 { return r.cwnd }

// BytesInFlight returns bytes currently charged against the window.
func (r *Reno) BytesInFlight() uint64 { return r.bytesInFlight }

// CanSend reports how many more bytes may be sent right now under the
// congestion window alone (the pacer and anti-amplification controller
// apply their own, separate caps).
func (r *Reno) CanSend() uint64 {
	if r.bytesInFlight >= r.cwnd {
		return 0
	}
	return r.cwnd - r.bytesInFlight
}

// InSlowStart reports whether cwnd is still below ssthresh.
func (r *Reno) InSlowStart() bool { return r.cwnd < r.ssthresh }

// OnPacketSent charges inFlight-eligible bytes against the window.
func (r *Reno) OnPacketSent(size uint64) {
	r.bytesInFlight += size
}

// OnAck credits ackedBytes back and grows the window: doubling per byte
// acked in slow start, +1 MSS per RTT in congestion avoidance. rtt (the
// smoothed RTT at ack time) is not used: congestion avoidance adds one MSS
// each time a full cwnd's worth of bytes has been acked.
func (r *Reno) OnAck(ackedBytes uint64, rtt time.Duration) {
	if ackedBytes > r.bytesInFlight {
		ackedBytes = r.bytesInFlight
	}
	r.bytesInFlight -= ackedBytes

	if r.InSlowStart() {
		r.cwnd += ackedBytes
		return
	}
	r.ackedInRound += ackedBytes
	if r.ackedInRound >= r.cwnd {
		r.cwnd += MSS
		r.ackedInRound = 0
	}
}

// OnLoss applies RFC 9002 §7.3.2's multiplicative decrease: ssthresh =
// cwnd/2, cwnd = max(2*MSS, ssthresh). ECN-CE is routed through this same
// call since RFC 9000 §13.4.2 treats it as a loss event.
func (r *Reno) OnLoss() {
	r.ssthresh = r.cwnd / 2
	r.cwnd = r.ssthresh
	if r.cwnd < minCwnd {
		r.cwnd = minCwnd
	}
	r.ackedInRound = 0
}

// OnDiscard removes bytes from in-flight accounting without treating the
// packet as acked or lost (keys discarded, path abandoned); the caller is
// responsible for calling this exactly once per packet, mirroring
// recovery.Space's single-credit discipline.
func (r *Reno) OnDiscard(size uint64) {
	if size > r.bytesInFlight {
		size = r.bytesInFlight
	}
	r.bytesInFlight -= size
}
