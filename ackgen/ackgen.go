// Package ackgen implements per-packet-number-space received record
// tracking, ACK range coalescing, ACK delay and scheduling, and ECN
// counters (RFC 9000 §13.2, RFC 9002 §A.3). The received set is kept as
// merged ascending ranges, documented rather than bit-packed since a
// transport endpoint's per-space packet-number density is low enough
// that a dense bitmap buys nothing here.
package ackgen

import (
	"time"

	"github.com/caozhiyi/quicx-go/frame"
)

// arrival records when a packet number was received, for ack-delay
// computation against the largest one.
type arrival struct {
	pn uint64
	at time.Time
}

// pnRange is an inclusive ascending [lo, hi] range of received packet
// numbers.
type pnRange struct{ lo, hi uint64 }

// Generator tracks one packet-number space's receive record and decides
// when an ACK frame is due.
type Generator struct {
	ranges   []pnRange // ascending, merged, non-overlapping
	largest  arrival
	hasAny   bool
	ect0, ect1, ce uint64

	ackElicitingSinceLastAck int
	forceImmediate           bool
	timerArmed               bool
	timerDeadline            time.Time
	ackDelayExponent         uint8
	maxAckDelay              time.Duration
	srtt                     time.Duration

	largestAckedByPeer uint64
	haveLargestAckedByPeer bool
}

// New builds a Generator; ackDelayExponent and maxAckDelay come from the
// negotiated transport parameters.
func New(ackDelayExponent uint8, maxAckDelay time.Duration) *Generator {
	return &Generator{ackDelayExponent: ackDelayExponent, maxAckDelay: maxAckDelay}
}

// UpdateRTT feeds the current smoothed RTT estimate so the ACK timer can
// use min(max_ack_delay, RTT/8).
func (g *Generator) UpdateRTT(srtt time.Duration) { g.srtt = srtt }

// ECNCounts are exposed for the ACK_ECN frame and congestion control's
// ECN-CE-as-loss-event rule.
type ECNCounts struct{ ECT0, ECT1, CE uint64 }

// OnPacketReceived records pn as received at 'now', with ECN codepoint ect
// (0 = not-ECT, 1 = ECT(1), 2 = ECT(0), 3 = CE, per RFC 3168), and whether
// it carried any ack-eliciting frame. It updates whether the ACK timer
// should now be considered armed or forced.
func (g *Generator) OnPacketReceived(pn uint64, now time.Time, ect uint8, ackEliciting bool) {
	outOfOrder := g.hasAny && pn < g.largest.pn
	g.insert(pn)

	if !g.hasAny || pn > g.largest.pn {
		g.largest = arrival{pn: pn, at: now}
		g.hasAny = true
	}

	switch ect {
	case 2:
		g.ect0++
	case 1:
		g.ect1++
	case 3:
		g.ce++
	}

	if !ackEliciting {
		return
	}
	g.ackElicitingSinceLastAck++
	if outOfOrder || g.ackElicitingSinceLastAck >= 2 {
		g.forceImmediate = true
		return
	}
	if !g.timerArmed {
		delay := g.maxAckDelay
		if g.srtt > 0 && g.srtt/8 < delay {
			delay = g.srtt / 8
		}
		g.timerDeadline = now.Add(delay)
		g.timerArmed = true
	}
}

func (g *Generator) insert(pn uint64) {
	// Insertion keeps ranges ascending and merges adjacency/overlap;
	// duplicates are absorbed without changing state.
	for i, r := range g.ranges {
		switch {
		case pn >= r.lo && pn <= r.hi:
			return // duplicate
		case pn+1 == r.lo:
			g.ranges[i].lo = pn
			g.mergeLeft(i)
			return
		case pn == r.hi+1:
			g.ranges[i].hi = pn
			g.mergeRight(i)
			return
		case pn < r.lo:
			g.ranges = append(g.ranges, pnRange{})
			copy(g.ranges[i+1:], g.ranges[i:])
			g.ranges[i] = pnRange{lo: pn, hi: pn}
			return
		}
	}
	g.ranges = append(g.ranges, pnRange{lo: pn, hi: pn})
}

func (g *Generator) mergeLeft(i int) {
	if i == 0 {
		return
	}
	if g.ranges[i-1].hi+1 == g.ranges[i].lo {
		g.ranges[i-1].hi = g.ranges[i].hi
		g.ranges = append(g.ranges[:i], g.ranges[i+1:]...)
	}
}

func (g *Generator) mergeRight(i int) {
	if i+1 >= len(g.ranges) {
		return
	}
	if g.ranges[i].hi+1 == g.ranges[i+1].lo {
		g.ranges[i].hi = g.ranges[i+1].hi
		g.ranges = append(g.ranges[:i+1], g.ranges[i+2:]...)
	}
}

// ShouldSendNow reports whether an ACK is due at 'now': either the forced-
// immediate condition fired, or the armed timer has expired.
func (g *Generator) ShouldSendNow(now time.Time) bool {
	if g.forceImmediate {
		return true
	}
	return g.timerArmed && !now.Before(g.timerDeadline)
}

// NextDeadline returns the armed ACK-timer deadline, if any, for the
// event loop's timer wheel.
func (g *Generator) NextDeadline() (time.Time, bool) {
	if !g.timerArmed {
		return time.Time{}, false
	}
	return g.timerDeadline, true
}

// BuildAck emits an *Ack frame from the current receive record and
// resets the scheduling state. Returns false if nothing has been
// received yet.
func (g *Generator) BuildAck(now time.Time) (*frame.Ack, bool) {
	if !g.hasAny || len(g.ranges) == 0 {
		return nil, false
	}
	ackDelay := now.Sub(g.largest.at) >> g.ackDelayExponent

	// Ranges are ascending; walk from the top down to produce the
	// descending (gap, range-length) pairs RFC 9000 §19.3 requires.
	n := len(g.ranges)
	top := g.ranges[n-1]
	firstRange := top.hi - top.lo // contiguous count ending at largest, minus 1
	var out []frame.AckRange
	prevLo := top.lo
	for i := n - 2; i >= 0; i-- {
		r := g.ranges[i]
		gap := prevLo - r.hi - 2 // unacked packet numbers between the ranges, minus 1, per RFC 9000 §19.3
		rangeLen := r.hi - r.lo
		out = append(out, frame.AckRange{Gap: gap, RangeLen: rangeLen})
		prevLo = r.lo
	}

	a := &frame.Ack{
		LargestAcked: g.largest.pn,
		AckDelay:     uint64(ackDelay / time.Microsecond),
		FirstRange:   firstRange,
		Ranges:       out,
	}
	if g.ect0 != 0 || g.ect1 != 0 || g.ce != 0 {
		a.ECN = &frame.ECNCounts{ECT0: g.ect0, ECT1: g.ect1, CE: g.ce}
	}

	g.ackElicitingSinceLastAck = 0
	g.forceImmediate = false
	g.timerArmed = false
	return a, true
}

// OnAckSent records the peer-visible largest-acked value so a future ACK
// of our ACK can prune ranges we know the peer has already seen.
func (g *Generator) OnAckSent(largest uint64) {
	// A full implementation prunes ranges below this once the peer's ACK
	// of our ACK-carrying packet is itself received; tracked here as the
	// high-water mark for that future prune.
	if !g.haveLargestAckedByPeer || largest > g.largestAckedByPeer {
		g.largestAckedByPeer = largest
		g.haveLargestAckedByPeer = true
	}
}
