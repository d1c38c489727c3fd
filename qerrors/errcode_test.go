package qerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesDescriptorValue(t *testing.T) {
	err := New(CodeFlowControlError, "limit 10000 exceeded by 1 byte")
	require.Contains(t, err.Error(), "FLOW_CONTROL_ERROR")
	require.Contains(t, err.Error(), "10000")
}

func TestTransportCodeMapping(t *testing.T) {
	require.Equal(t, TransportFlowControlError, New(CodeFlowControlError, "").TransportCode())
	require.Equal(t, TransportFinalSizeError, New(CodeFinalSizeError, "").TransportCode())
}

func TestOperationalSignalsAreNotFatal(t *testing.T) {
	for _, c := range []Code{CodeWouldBlock, CodeAgain, CodeTimeout} {
		require.False(t, New(c, "").IsFatal(), "%v should not be fatal", DescriptorFor(c).Value)
	}
}

func TestAppLocalStreamErrorsAreNotFatal(t *testing.T) {
	require.False(t, New(CodeStreamReset, "").IsFatal())
	require.False(t, New(CodeStopSending, "").IsFatal())
}

func TestProtocolErrorsAreFatal(t *testing.T) {
	for _, c := range []Code{CodeFlowControlError, CodeStreamLimitError, CodeStreamStateError,
		CodeFinalSizeError, CodeProtocolViolation, CodeTransportParamError,
		CodeConnectionIDLimit, CodeInvalidToken} {
		require.True(t, New(c, "").IsFatal())
	}
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	underlying := errors.New("boom")
	wrapped := Wrap(CodeSocketError, underlying)
	require.ErrorIs(t, wrapped, underlying)
}
