package ackgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSinglePacketAckHasEmptyRanges(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	g.OnPacketReceived(5, now, 0, true)

	a, ok := g.BuildAck(now)
	require.True(t, ok)
	require.Equal(t, uint64(5), a.LargestAcked)
	require.Equal(t, uint64(0), a.FirstRange)
	require.Empty(t, a.Ranges)
}

func TestOutOfOrderPacketForcesImmediateAck(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	g.OnPacketReceived(5, now, 0, true)
	require.False(t, g.ShouldSendNow(now))

	g.OnPacketReceived(3, now, 0, true) // out of order relative to largest=5
	require.True(t, g.ShouldSendNow(now))
}

func TestSecondAckElicitingPacketForcesImmediateAck(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	g.OnPacketReceived(1, now, 0, true)
	require.False(t, g.ShouldSendNow(now))
	g.OnPacketReceived(2, now, 0, true)
	require.True(t, g.ShouldSendNow(now))
}

func TestNonAckElicitingPacketDoesNotArmTimer(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	g.OnPacketReceived(1, now, 0, false)
	_, armed := g.NextDeadline()
	require.False(t, armed)
}

func TestGapAndRangeCoalescingDescending(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	for _, pn := range []uint64{10, 11, 12, 15, 16, 20} {
		g.OnPacketReceived(pn, now, 0, true)
	}
	a, ok := g.BuildAck(now)
	require.True(t, ok)
	require.Equal(t, uint64(20), a.LargestAcked)
	require.Equal(t, uint64(0), a.FirstRange) // just {20}
	require.Len(t, a.Ranges, 2)
	// {15,16}: gap = 20 - 16 - 2 = 2, rangeLen = 1
	require.Equal(t, uint64(2), a.Ranges[0].Gap)
	require.Equal(t, uint64(1), a.Ranges[0].RangeLen)
	// {10,11,12}: gap = 15 - 12 - 2 = 1, rangeLen = 2
	require.Equal(t, uint64(1), a.Ranges[1].Gap)
	require.Equal(t, uint64(2), a.Ranges[1].RangeLen)
}

func TestECNVariantUsedWhenAnyCountNonzero(t *testing.T) {
	g := New(3, 25*time.Millisecond)
	now := time.Unix(0, 0)
	g.OnPacketReceived(1, now, 3, true) // CE
	a, ok := g.BuildAck(now)
	require.True(t, ok)
	require.NotNil(t, a.ECN)
	require.Equal(t, uint64(1), a.ECN.CE)
}
