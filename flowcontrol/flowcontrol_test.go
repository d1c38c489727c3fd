package flowcontrol

import (
	"testing"

	"github.com/caozhiyi/quicx-go/qerrors"
	"github.com/stretchr/testify/require"
)

func TestOutgoingBlockedEmittedOncePerLimit(t *testing.T) {
	o := NewOutgoing(100)
	o.Reserve(100)
	require.Zero(t, o.Available())
	require.True(t, o.ShouldEmitBlocked())
	require.False(t, o.ShouldEmitBlocked(), "must not re-emit for the same limit value")

	o.OnLimitRaised(200)
	require.True(t, o.ShouldEmitBlocked(), "a raised limit re-arms the blocked notice")
}

func TestOutgoingNonIncreasingLimitIsNoop(t *testing.T) {
	o := NewOutgoing(100)
	o.OnLimitRaised(50)
	require.Equal(t, uint64(100), o.Limit())
	o.OnLimitRaised(100)
	require.Equal(t, uint64(100), o.Limit())
}

func TestIncomingTriggersMaxDataAtHalfWindow(t *testing.T) {
	in := NewIncoming(10000)
	raised, should, err := in.OnReceive(5001)
	require.NoError(t, err)
	require.True(t, should)
	require.Equal(t, uint64(20000), raised)
	require.Equal(t, uint64(20000), in.Limit())
}

func TestIncomingExceedingLimitIsFlowControlError(t *testing.T) {
	in := NewIncoming(20000)
	in.OnReceive(5001)
	_, _, err := in.OnReceive(20001)
	require.Error(t, err)
	var qe *qerrors.Error
	require.ErrorAs(t, err, &qe)
	require.Equal(t, qerrors.CodeFlowControlError, qe.Code)
}

func TestIncomingDoesNotRegressOnOutOfOrderSmallerTotal(t *testing.T) {
	in := NewIncoming(10000)
	in.OnReceive(5000)
	in.OnReceive(3000) // stale/retransmitted frame with a smaller cumulative offset
	require.Equal(t, uint64(5000), in.Received())
}
