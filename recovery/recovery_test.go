package recovery

import (
	"testing"
	"time"

	"github.com/caozhiyi/quicx-go/frame"
	"github.com/stretchr/testify/require"
)

func TestEstimatorFirstSampleSeedsSmoothedAndVar(t *testing.T) {
	e := NewEstimator(100 * time.Millisecond)
	base := time.Unix(0, 0)
	e.OnAck(base, base.Add(50*time.Millisecond), 0)
	require.Equal(t, 50*time.Millisecond, e.Smoothed())
	require.Equal(t, 25*time.Millisecond, e.Var())
}

func TestEstimatorSubsequentSampleIsEWMA(t *testing.T) {
	e := NewEstimator(100 * time.Millisecond)
	base := time.Unix(0, 0)
	e.OnAck(base, base.Add(40*time.Millisecond), 0)
	e.OnAck(base, base.Add(80*time.Millisecond), 0)
	// smoothed = 7/8*40 + 1/8*80 = 45ms
	require.Equal(t, 45*time.Millisecond, e.Smoothed())
}

func TestPTOGrowsWithRTTVar(t *testing.T) {
	e := NewEstimator(100 * time.Millisecond)
	pto1 := e.PTO(25 * time.Millisecond)
	base := time.Unix(0, 0)
	e.OnAck(base, base.Add(300*time.Millisecond), 0)
	pto2 := e.PTO(25 * time.Millisecond)
	require.Greater(t, pto2, pto1)
}

func TestOnAckReceivedMarksAckedAndFreesSpace(t *testing.T) {
	s := NewSpace()
	now := time.Unix(0, 0)
	s.OnPacketSent(1, now, 100, true, true, nil)
	s.OnPacketSent(2, now, 100, true, true, nil)

	rtt := NewEstimator(100 * time.Millisecond)
	ack := &frame.Ack{LargestAcked: 2, FirstRange: 1}
	res := s.OnAckReceived(ack, now.Add(10*time.Millisecond), rtt)
	require.Len(t, res.NewlyAcked, 2)
	require.Equal(t, 200, res.AckedBytes)
	require.Empty(t, s.sent)
}

func TestOnAckReceivedDetectsReorderingThresholdLoss(t *testing.T) {
	s := NewSpace()
	now := time.Unix(0, 0)
	for pn := uint64(1); pn <= 5; pn++ {
		s.OnPacketSent(pn, now, 50, true, true, nil)
	}
	rtt := NewEstimator(100 * time.Millisecond)
	// Ack only pn=5 (and none below): pn=1 is 4 behind the largest acked,
	// exceeding kPacketThreshold=3, so it's declared lost immediately.
	ack := &frame.Ack{LargestAcked: 5, FirstRange: 0}
	res := s.OnAckReceived(ack, now, rtt)
	found := false
	for _, p := range res.NewlyLost {
		if p.PN == 1 {
			found = true
		}
	}
	require.True(t, found)
}

func TestOnAckReceivedDetectsTimeThresholdLoss(t *testing.T) {
	s := NewSpace()
	base := time.Unix(0, 0)
	s.OnPacketSent(1, base, 50, true, true, nil)
	s.OnPacketSent(2, base.Add(200*time.Millisecond), 50, true, true, nil)

	rtt := NewEstimator(10 * time.Millisecond)
	ack := &frame.Ack{LargestAcked: 2, FirstRange: 0}
	res := s.OnAckReceived(ack, base.Add(205*time.Millisecond), rtt)
	require.Len(t, res.NewlyLost, 1)
	require.Equal(t, uint64(1), res.NewlyLost[0].PN)
}

func TestDiscardCreditsInFlightBytesOnce(t *testing.T) {
	s := NewSpace()
	now := time.Unix(0, 0)
	s.OnPacketSent(1, now, 100, true, true, nil)
	require.Equal(t, 100, s.InFlightBytes())
	discarded := s.Discard()
	require.Equal(t, 100, discarded)
	require.Zero(t, s.InFlightBytes())
	require.Zero(t, s.Discard(), "second discard must not double-credit")
}

func TestDetectorPTODeadlineArmsOnlyWithInFlightAckEliciting(t *testing.T) {
	d := NewDetector(100 * time.Millisecond)
	_, ok := d.LossOrPTODeadline()
	require.False(t, ok)

	now := time.Unix(0, 0)
	d.Space(SpaceApplication).OnPacketSent(1, now, 100, true, true, nil)
	_, ok = d.LossOrPTODeadline()
	require.True(t, ok)
}

func TestDetectorEarliestSpaceWithInFlightPrefersInitial(t *testing.T) {
	d := NewDetector(100 * time.Millisecond)
	now := time.Unix(0, 0)
	d.Space(SpaceApplication).OnPacketSent(1, now, 100, true, true, nil)
	d.Space(SpaceInitial).OnPacketSent(1, now, 100, true, true, nil)

	sp, ok := d.EarliestSpaceWithInFlight()
	require.True(t, ok)
	require.Equal(t, SpaceInitial, sp)
}
