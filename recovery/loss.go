package recovery

import (
	"time"

	"github.com/caozhiyi/quicx-go/frame"
)

// AckResult summarizes what processing an ACK frame against a Space did,
// for the caller (conn) to drive congestion control and retransmission.
type AckResult struct {
	NewlyAcked      []*SentPacket
	NewlyLost       []*SentPacket
	AckedBytes      int
	LostBytes       int
	LargestAckedRTT bool // true if LargestAcked was itself newly acked, eligible for RTT sample
}

// ackedSet expands an *frame.Ack into the set of packet numbers it covers.
func ackedSet(a *frame.Ack) map[uint64]bool {
	set := make(map[uint64]bool)
	hi := a.LargestAcked
	lo := a.LargestAcked - a.FirstRange
	for pn := lo; pn <= hi; pn++ {
		set[pn] = true
	}
	for _, r := range a.Ranges {
		hi = lo - r.Gap - 2
		lo = hi - r.RangeLen
		for pn := lo; pn <= hi; pn++ {
			set[pn] = true
		}
	}
	return set
}

// OnAckReceived applies a's coverage to the space: marks covered
// in-flight packets Acked exactly once, then runs loss detection over the
// remaining in-flight packets per RFC 9002 §6.1's two thresholds.
func (s *Space) OnAckReceived(a *frame.Ack, now time.Time, rtt *Estimator) AckResult {
	var res AckResult

	if !s.haveLargestAcked || a.LargestAcked > s.largestAcked {
		s.largestAcked = a.LargestAcked
		s.haveLargestAcked = true
	}

	covered := ackedSet(a)
	for pn := range covered {
		p, ok := s.sent[pn]
		if !ok || p.State != StateInFlight {
			continue
		}
		p.State = StateAcked
		res.NewlyAcked = append(res.NewlyAcked, p)
		if p.InFlight {
			res.AckedBytes += p.Size
		}
		if pn == a.LargestAcked {
			res.LargestAckedRTT = true
		}
	}

	maxRTT := rtt.Smoothed()
	if rtt.Latest() > maxRTT {
		maxRTT = rtt.Latest()
	}
	threshold := maxRTT * 9 / 8
	if threshold < kGranularity {
		threshold = kGranularity
	}

	s.haveLossTime = false
	for pn, p := range s.sent {
		if p.State != StateInFlight {
			continue
		}
		reordered := s.largestAcked >= kPacketThreshold && pn+kPacketThreshold <= s.largestAcked
		aged := now.Sub(p.SentAt) > threshold && s.largestAcked > pn
		if reordered || aged {
			p.State = StateLost
			res.NewlyLost = append(res.NewlyLost, p)
			if p.InFlight {
				res.LostBytes += p.Size
			}
			continue
		}
		if s.largestAcked > pn {
			lossDeadline := p.SentAt.Add(threshold)
			if !s.haveLossTime || lossDeadline.Before(s.lossTime) {
				s.lossTime = lossDeadline
				s.haveLossTime = true
			}
		}
	}

	for _, p := range res.NewlyAcked {
		delete(s.sent, p.PN)
	}
	for _, p := range res.NewlyLost {
		delete(s.sent, p.PN)
	}
	return res
}

// LossTimerDeadline returns the earliest time-threshold loss deadline
// armed by the last OnAckReceived call, for the timer wheel.
func (s *Space) LossTimerDeadline() (time.Time, bool) {
	return s.lossTime, s.haveLossTime
}

// Discard marks every still-in-flight packet in the space Discarded,
// crediting bytes_in_flight down exactly once (guarding against a
// double-subtraction), done when a packet-number space's keys are
// dropped (handshake confirmed, Retry, connection close).
func (s *Space) Discard() (discardedBytes int) {
	for _, p := range s.sent {
		if p.State == StateInFlight && p.InFlight {
			discardedBytes += p.Size
		}
		p.State = StateDiscarded
	}
	s.sent = make(map[uint64]*SentPacket)
	s.haveLossTime = false
	return discardedBytes
}
