package congestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenoSlowStartDoublesOnFullAck(t *testing.T) {
	r := NewReno()
	r.OnPacketSent(r.Cwnd())
	before := r.Cwnd()
	r.OnAck(before, 50*time.Millisecond)
	require.Equal(t, 2*before, r.Cwnd())
}

func TestRenoLossHalvesCwndAndSetsSsthresh(t *testing.T) {
	r := NewReno()
	before := r.Cwnd()
	r.OnLoss()
	require.Equal(t, before/2, r.Cwnd())
	require.Equal(t, before/2, r.ssthresh)
	require.False(t, r.InSlowStart())
}

func TestRenoLossNeverGoesBelowMinCwnd(t *testing.T) {
	r := NewReno()
	r.cwnd = MSS // below 2*MSS
	r.OnLoss()
	require.Equal(t, uint64(minCwnd), r.Cwnd())
}

func TestRenoCongestionAvoidanceGrowsOneMSSPerWindow(t *testing.T) {
	r := NewReno()
	r.OnLoss() // drop into congestion avoidance
	cwnd := r.Cwnd()
	r.OnPacketSent(cwnd)
	r.OnAck(cwnd, 50*time.Millisecond) // one full window acked
	require.Equal(t, cwnd+MSS, r.Cwnd())
}

func TestAntiAmplificationCapsAtThreeTimesReceived(t *testing.T) {
	a := NewAntiAmplification()
	a.OnBytesReceived(100)
	require.Equal(t, uint64(300), a.CanSend())
	a.OnBytesSent(300)
	require.Zero(t, a.CanSend())
}

func TestAntiAmplificationLiftedOnceValidated(t *testing.T) {
	a := NewAntiAmplification()
	a.OnBytesReceived(10)
	a.OnBytesSent(30)
	require.Zero(t, a.CanSend())
	a.MarkValidated()
	require.Greater(t, a.CanSend(), uint64(1<<32))
}

func TestPacerSetRateZeroRTTIsUnbounded(t *testing.T) {
	p := NewPacer()
	p.SetRate(10000, 0)
	require.True(t, p.Allow(MSS))
}
