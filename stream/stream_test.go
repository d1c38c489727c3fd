package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendStateReadyToSendToDataSentToDataRecvd(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	require.Equal(t, SendReady, s.SendState())

	require.NoError(t, s.Write([]byte("hello")))
	require.Equal(t, SendSend, s.SendState())

	require.NoError(t, s.Close())
	require.Equal(t, SendDataSent, s.SendState())

	chunk, ok := s.NextSendChunk(100, 1000)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), chunk.Data)
	require.True(t, chunk.Fin)

	s.OnFrameAcked(chunk.Offset, uint64(len(chunk.Data)))
	require.Equal(t, SendDataRecvd, s.SendState())
}

func TestNextSendChunkRespectsFlowControlWindow(t *testing.T) {
	s := New(NewID(0, true, true), 3, 1000, true, true)
	require.NoError(t, s.Write([]byte("hello world")))
	chunk, ok := s.NextSendChunk(100, 1000)
	require.True(t, ok)
	require.Equal(t, []byte("hel"), chunk.Data)
	require.False(t, chunk.Fin)

	_, ok = s.NextSendChunk(100, 1000)
	require.False(t, ok, "window exhausted, nothing more sendable")
}

func TestResetFromSendTransitionsToResetSentThenRecvd(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	require.NoError(t, s.Write([]byte("abc")))

	f, err := s.Reset(42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), f.ErrorCode)
	require.Equal(t, SendResetSent, s.SendState())

	s.OnResetAcked()
	require.Equal(t, SendResetRecvd, s.SendState())
}

func TestResetOnTerminalStateFails(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	s.Write(nil)
	s.Close()
	chunk, _ := s.NextSendChunk(100, 1000)
	s.OnFrameAcked(chunk.Offset, uint64(len(chunk.Data)))
	require.Equal(t, SendDataRecvd, s.SendState())

	_, err := s.Reset(1)
	require.Error(t, err)
}

func TestRecvSideBuffersOutOfOrderAndReleasesContiguousPrefix(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	require.NoError(t, s.OnStreamFrame(5, []byte("world"), true))
	require.Equal(t, RecvSizeKnown, s.RecvState())
	require.Zero(t, s.recv.ReadableLen())

	require.NoError(t, s.OnStreamFrame(0, []byte("hello"), false))
	require.Equal(t, RecvDataRecvd, s.RecvState())

	buf := make([]byte, 10)
	n := s.Read(buf)
	require.Equal(t, 10, n)
	require.Equal(t, "helloworld", string(buf))
	require.Equal(t, RecvDataRead, s.RecvState())
}

func TestOnStreamFrameRejectsDataPastFinalSize(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	require.NoError(t, s.OnStreamFrame(0, []byte("hi"), true)) // final_size = 2
	err := s.OnStreamFrame(5, []byte("x"), false)
	require.Error(t, err)
}

func TestResetStreamFrameAbandonsRecvSide(t *testing.T) {
	s := New(NewID(0, true, true), 1000, 1000, true, true)
	s.OnResetStreamFrame(7)
	require.Equal(t, RecvResetRecvd, s.RecvState())
	require.Equal(t, uint64(7), s.PeerResetCode())
	s.AckResetNotified()
	require.Equal(t, RecvResetRead, s.RecvState())
}
