// Package recovery implements loss detection (RFC 9002): RTT estimation,
// per-packet-number-space sent-packet tracking, the time- and
// reordering-threshold loss rules, and the PTO timer. The state-machine
// shape, space-indexed trackers each feeding a single shared timer,
// follows the fan-out-to-independent-scopes pattern an event dispatcher
// uses to route one trigger out to several independent listeners.
package recovery

import "time"

// SpaceID indexes the three packet-number spaces that can carry
// independently tracked, independently discarded sent packets.
type SpaceID int

const (
	SpaceInitial SpaceID = iota
	SpaceHandshake
	SpaceApplication
	numSpaces
)

// Detector owns one Space per packet-number space plus the shared RTT
// estimator and drives the single PTO timer: armed whenever there is
// ack-eliciting data in flight and no loss-detection timer.
type Detector struct {
	RTT    *Estimator
	spaces [numSpaces]*Space

	maxAckDelay time.Duration
}

// NewDetector builds a Detector seeded with initialRTT. Its max_ack_delay
// is 0 until SetMaxAckDelay installs the peer's negotiated value;
// LossOrPTODeadline adds that value to the PTO whichever space is in
// flight.
func NewDetector(initialRTT time.Duration) *Detector {
	d := &Detector{RTT: NewEstimator(initialRTT)}
	for i := range d.spaces {
		d.spaces[i] = NewSpace()
	}
	return d
}

// Space returns the tracker for the given packet-number space.
func (d *Detector) Space(id SpaceID) *Space { return d.spaces[id] }

// SetMaxAckDelay installs the negotiated max_ack_delay transport
// parameter once the handshake's peer parameters are available.
func (d *Detector) SetMaxAckDelay(v time.Duration) { d.maxAckDelay = v }

// DiscardSpace drops a space's keys (Initial after first Handshake
// packet, Handshake after confirmation) crediting bytes_in_flight down
// exactly once, and excludes it from further timer computation.
func (d *Detector) DiscardSpace(id SpaceID) int {
	return d.spaces[id].Discard()
}

// LossOrPTODeadline computes the single timer deadline the event loop
// should arm: the earliest per-space loss-detection time if any
// space has one pending, otherwise the PTO deadline over the space with
// the oldest in-flight ack-eliciting packet, otherwise no timer is needed.
func (d *Detector) LossOrPTODeadline() (time.Time, bool) {
	var earliestLoss time.Time
	haveLoss := false
	for _, sp := range d.spaces {
		if t, ok := sp.LossTimerDeadline(); ok {
			if !haveLoss || t.Before(earliestLoss) {
				earliestLoss = t
				haveLoss = true
			}
		}
	}
	if haveLoss {
		return earliestLoss, true
	}

	var oldest time.Time
	haveOldest := false
	maxPTOCount := 0
	anyAckEliciting := false
	for _, sp := range d.spaces {
		if !sp.HasInFlightAckEliciting() {
			continue
		}
		anyAckEliciting = true
		if t, ok := sp.OldestInFlightSentAt(); ok {
			if !haveOldest || t.Before(oldest) {
				oldest = t
				haveOldest = true
			}
		}
		if sp.PTOCount() > maxPTOCount {
			maxPTOCount = sp.PTOCount()
		}
	}
	if !anyAckEliciting || !haveOldest {
		return time.Time{}, false
	}

	pto := d.RTT.PTO(d.maxAckDelay)
	for i := 0; i < maxPTOCount; i++ {
		pto *= 2
	}
	return oldest.Add(pto), true
}

// OnPTOExpired advances every space's backoff that has in-flight
// ack-eliciting data, for the caller to then send probe packets in the
// earliest such space.
func (d *Detector) OnPTOExpired() {
	for _, sp := range d.spaces {
		if sp.HasInFlightAckEliciting() {
			sp.OnPTOExpired()
		}
	}
}

// EarliestSpaceWithInFlight returns the lowest-numbered space (Initial
// before Handshake before Application) that still has in-flight
// ack-eliciting data, the space a PTO probe must be sent in.
func (d *Detector) EarliestSpaceWithInFlight() (SpaceID, bool) {
	for i, sp := range d.spaces {
		if sp.HasInFlightAckEliciting() {
			return SpaceID(i), true
		}
	}
	return 0, false
}
