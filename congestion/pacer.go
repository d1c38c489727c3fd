package congestion

import (
	"time"

	"golang.org/x/time/rate"
)

// Pacer smooths a round's congestion-window budget out over roughly one
// RTT instead of bursting it all at once, sitting alongside the
// congestion controller. Built on golang.org/x/time/rate for its
// token-bucket shape.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer with no configured rate; call SetRate once cwnd
// and smoothed RTT are known.
func NewPacer() *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Inf, MSS)}
}

// SetRate recomputes the pacing rate as cwnd/rtt, the standard QUIC
// pacing-rate formula, bursting up to one MSS.
func (p *Pacer) SetRate(cwnd uint64, rtt time.Duration) {
	if rtt <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSec := float64(cwnd) / rtt.Seconds()
	p.limiter.SetLimit(rate.Limit(bytesPerSec))
}

// Allow reports whether a packet of size bytes may be sent now without
// violating the pacing rate.
func (p *Pacer) Allow(size int) bool {
	return p.limiter.AllowN(time.Now(), size)
}

// NextAllowedAt returns when a packet of size bytes would next be
// permitted, for arming the pacing timer.
func (p *Pacer) NextAllowedAt(size int) time.Time {
	r := p.limiter.ReserveN(time.Now(), size)
	if !r.OK() {
		return time.Time{}
	}
	delay := r.Delay()
	r.Cancel()
	return time.Now().Add(delay)
}
