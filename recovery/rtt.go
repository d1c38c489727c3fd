// Package recovery implements the RTT estimator, loss detection, and PTO
// timer defined in RFC 9002. congestion (pacer + controllers) is a
// sibling package so loss detection can stay independent of which
// controller is plugged in.
package recovery

import "time"

// kGranularity is RFC 9002's timer granularity floor.
const kGranularity = time.Millisecond

// kPacketThreshold is the reordering threshold (RFC 9002 §6.1.1).
const kPacketThreshold = 3

// Estimator tracks smoothed RTT, RTT variance and minimum RTT per RFC
// 9002 §5.
type Estimator struct {
	initial   time.Duration
	smoothed  time.Duration
	rttvar    time.Duration
	min       time.Duration
	latest    time.Duration
	haveFirst bool
}

// NewEstimator seeds the estimator with initialRTT (config
// `initial_rtt_ms`, default 333ms per RFC 9002).
func NewEstimator(initialRTT time.Duration) *Estimator {
	return &Estimator{initial: initialRTT, smoothed: initialRTT, rttvar: initialRTT / 2}
}

// Smoothed returns the current smoothed RTT.
func (e *Estimator) Smoothed() time.Duration { return e.smoothed }

// Var returns the current RTT variance.
func (e *Estimator) Var() time.Duration { return e.rttvar }

// Min returns the minimum RTT observed so far, used as a floor for
// ack-delay correction.
func (e *Estimator) Min() time.Duration { return e.min }

// Latest returns the most recent latest_rtt sample, used alongside
// Smoothed() for the loss-detection time threshold.
func (e *Estimator) Latest() time.Duration { return e.latest }

// OnAck updates the estimator from an ACK whose largest-acked corresponds
// to an ack-eliciting packet sent at sendTime and received/processed at
// now, with the peer's reported (already-decoded) ack delay.
func (e *Estimator) OnAck(sendTime, now time.Time, peerAckDelay time.Duration) {
	latest := now.Sub(sendTime)
	if latest < 0 {
		latest = 0
	}
	e.latest = latest
	if !e.haveFirst || e.min == 0 || latest < e.min {
		e.min = latest
	}

	adjusted := latest
	if adjusted > e.min+peerAckDelay {
		adjusted -= peerAckDelay
	}

	if !e.haveFirst {
		e.smoothed = adjusted
		e.rttvar = adjusted / 2
		e.haveFirst = true
		return
	}
	diff := e.smoothed - adjusted
	if diff < 0 {
		diff = -diff
	}
	e.rttvar = (3*e.rttvar + diff) / 4
	e.smoothed = (7*e.smoothed + adjusted) / 8
}

// PTO implements RFC 9002 §6.2.1's probe-timeout formula.
func (e *Estimator) PTO(maxAckDelay time.Duration) time.Duration {
	backoff := 4 * e.rttvar
	if backoff < kGranularity {
		backoff = kGranularity
	}
	return e.smoothed + backoff + maxAckDelay
}
