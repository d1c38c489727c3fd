// Package flowcontrol implements symmetric outgoing/incoming byte and
// stream-count windows at connection and stream granularity (RFC 9000
// §4).
package flowcontrol

import "github.com/caozhiyi/quicx-go/qerrors"

// incomingThresholdNum/Den express "half the initial window" as the
// default auto-tuning threshold.
const (
	incomingThresholdNum = 1
	incomingThresholdDen = 2
)

// Outgoing tracks what this endpoint is allowed to send against a single
// limit (connection-wide or one stream's), as advanced by the peer's
// MAX_DATA/MAX_STREAM_DATA/MAX_STREAMS frames.
type Outgoing struct {
	sent           uint64
	limit          uint64
	lastBlockedAt  uint64
	blockedArmed   bool
}

// NewOutgoing starts an Outgoing window at initialLimit.
func NewOutgoing(initialLimit uint64) *Outgoing { return &Outgoing{limit: initialLimit} }

// Limit returns the current send limit.
func (o *Outgoing) Limit() uint64 { return o.limit }

// Sent returns bytes/units sent so far.
func (o *Outgoing) Sent() uint64 { return o.sent }

// Available returns how much more may be sent right now.
func (o *Outgoing) Available() uint64 {
	if o.sent >= o.limit {
		return 0
	}
	return o.limit - o.sent
}

// Reserve commits n units of send budget. Callers must have checked
// Available() >= n first: outgoing policy here is advisory-check then
// commit, unlike stream-ID peek-then-commit which flowcontrol doesn't own.
func (o *Outgoing) Reserve(n uint64) {
	o.sent += n
}

// ShouldEmitBlocked reports whether a *_BLOCKED frame should be emitted
// for the current limit, and arms the at-most-once-per-limit-value
// notification policy.
func (o *Outgoing) ShouldEmitBlocked() bool {
	if o.blockedArmed && o.lastBlockedAt == o.limit {
		return false
	}
	o.blockedArmed = true
	o.lastBlockedAt = o.limit
	return true
}

// OnLimitRaised applies a MAX_DATA/MAX_STREAM_DATA/MAX_STREAMS frame. Per
// RFC 9000 §4.1 a non-increasing value is a silent no-op; an increase
// re-arms the blocked-notification policy.
func (o *Outgoing) OnLimitRaised(newLimit uint64) {
	if newLimit <= o.limit {
		return
	}
	o.limit = newLimit
	o.blockedArmed = false
}

// Incoming tracks how much the peer may send against our advertised
// limit, auto-tuning it upward as the peer approaches exhaustion.
type Incoming struct {
	received     uint64
	limit        uint64
	initialDelta uint64 // the step size MAX_* frames advance by
}

// NewIncoming starts an Incoming window at initialLimit, stepping by the
// same amount each time it auto-tunes: the limit advances by the initial
// window size.
func NewIncoming(initialLimit uint64) *Incoming {
	return &Incoming{limit: initialLimit, initialDelta: initialLimit}
}

// Limit returns the currently advertised limit.
func (in *Incoming) Limit() uint64 { return in.limit }

// Received returns bytes/units received so far.
func (in *Incoming) Received() uint64 { return in.received }

// OnReceive records peer_sent advancing to newTotal (the cumulative
// offset/count implied by a frame, not a delta), returning the raised
// limit and whether to emit a MAX_* frame, or a FlowControlError if the
// peer exceeded the current limit.
func (in *Incoming) OnReceive(newTotal uint64) (raisedLimit uint64, shouldSend bool, err error) {
	if newTotal > in.limit {
		return 0, false, qerrors.New(qerrors.CodeFlowControlError, "peer exceeded advertised limit")
	}
	if newTotal > in.received {
		in.received = newTotal
	}
	remaining := in.limit - in.received
	threshold := (in.initialDelta * incomingThresholdNum) / incomingThresholdDen
	if remaining < threshold {
		in.limit += in.initialDelta
		return in.limit, true, nil
	}
	return 0, false, nil
}

// StreamCounts tracks the bidi/uni stream-creation limits, symmetric to
// Outgoing/Incoming but counted in streams rather than bytes.
type StreamCounts struct {
	Bidi *Outgoing
	Uni  *Outgoing
}

// NewOutgoingStreamCounts builds the peer-granted creation limits this
// endpoint may open against.
func NewOutgoingStreamCounts(bidi, uni uint64) StreamCounts {
	return StreamCounts{Bidi: NewOutgoing(bidi), Uni: NewOutgoing(uni)}
}
