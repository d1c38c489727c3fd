package frame

import (
	"testing"

	"github.com/caozhiyi/quicx-go/varint"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	buf := make([]byte, 0, 256)
	c := varint.NewWriteCursor(buf)
	require.NoError(t, f.Encode(c))
	require.Equal(t, f.EncodedLen(), len(c.Bytes()))

	rc := varint.NewCursor(c.Bytes())
	got, err := Decode(rc)
	require.NoError(t, err)
	require.Equal(t, rc.Pos(), len(c.Bytes()), "decoder should consume exactly what was written")
	return got
}

func TestRoundTripEveryFrameType(t *testing.T) {
	frames := []Frame{
		Padding{},
		Ping{},
		&Ack{LargestAcked: 100, AckDelay: 5, FirstRange: 10},
		&Ack{LargestAcked: 100, AckDelay: 5, FirstRange: 10, Ranges: []AckRange{{Gap: 2, RangeLen: 3}}},
		&Ack{LargestAcked: 100, AckDelay: 5, FirstRange: 10, ECN: &ECNCounts{ECT0: 1, ECT1: 2, CE: 3}},
		ResetStream{StreamID: 4, ErrorCode: 1, FinalSize: 1000},
		StopSending{StreamID: 4, ErrorCode: 2},
		Crypto{Offset: 0, Data: []byte("client hello")},
		NewToken{Token: []byte{1, 2, 3, 4}},
		&Stream{StreamID: 8, Offset: 5, OffsetPresent: true, LengthPresent: true, Fin: true, Data: []byte("World!")},
		&Stream{StreamID: 8, LengthPresent: false, Data: []byte("to-end-of-packet")},
		MaxData{Maximum: 20000},
		MaxStreamData{StreamID: 8, Maximum: 5000},
		MaxStreams{Bidi: true, Maximum: 100},
		MaxStreams{Bidi: false, Maximum: 50},
		DataBlocked{Limit: 20000},
		StreamDataBlocked{StreamID: 8, Limit: 5000},
		StreamsBlocked{Bidi: true, Limit: 100},
		NewConnectionID{SequenceNumber: 1, RetirePriorTo: 0, ConnectionID: []byte{1, 2, 3, 4}},
		RetireConnectionID{SequenceNumber: 1},
		PathChallenge{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		PathResponse{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		ConnectionClose{IsApplication: false, ErrorCode: 7, FrameType: 0x08, Reason: "bad frame"},
		ConnectionClose{IsApplication: true, ErrorCode: 0, Reason: ""},
		HandshakeDone{},
	}

	for _, f := range frames {
		got := roundTrip(t, f)
		require.Equal(t, f, got, "round trip of %T", f)
	}
}

func TestStreamFrameWithoutLengthExtendsToEndOfPacket(t *testing.T) {
	s := &Stream{StreamID: 1, LengthPresent: false, Data: []byte("rest-of-packet")}
	buf := make([]byte, 0, 64)
	c := varint.NewWriteCursor(buf)
	require.NoError(t, s.Encode(c))

	rc := varint.NewCursor(c.Bytes())
	got, err := Decode(rc)
	require.NoError(t, err)
	require.Equal(t, s.Data, got.(*Stream).Data)
}

func TestStreamOffsetPlusLengthOverflowRejected(t *testing.T) {
	buf := make([]byte, 0, 64)
	c := varint.NewWriteCursor(buf)
	c.WriteVarint(uint64(TypeStream | 0x04 | 0x02)) // offset+length present
	c.WriteVarint(1)                                // stream id
	c.WriteVarint(varint.MaxValue)                  // offset
	c.WriteVarint(10)                               // length -> overflow

	rc := varint.NewCursor(c.Bytes())
	_, err := Decode(rc)
	require.Error(t, err)
}

func TestAckWithEmptyRangeListIsSinglePacketAck(t *testing.T) {
	a := &Ack{LargestAcked: 42, AckDelay: 0, FirstRange: 0}
	smallest, ok := a.SmallestAcked()
	require.True(t, ok)
	require.Equal(t, uint64(42), smallest)
}

func TestAckImpliedNegativeSmallestRejected(t *testing.T) {
	buf := make([]byte, 0, 64)
	c := varint.NewWriteCursor(buf)
	a := &Ack{LargestAcked: 5, AckDelay: 0, FirstRange: 10} // consumes more than LargestAcked
	require.NoError(t, a.Encode(c))

	rc := varint.NewCursor(c.Bytes())
	_, err := Decode(rc)
	require.Error(t, err)
}

func TestUnknownFrameTagIsFatal(t *testing.T) {
	buf := make([]byte, 0, 8)
	c := varint.NewWriteCursor(buf)
	c.WriteVarint(0x3f) // not a defined tag
	rc := varint.NewCursor(c.Bytes())
	_, err := Decode(rc)
	require.Error(t, err)
}

func TestClassificationMatchesSpecTable(t *testing.T) {
	require.Zero(t, (&Ack{}).Class())
	require.Equal(t, PathProbing, Padding{}.Class())
	require.Zero(t, ConnectionClose{}.Class())

	require.NotZero(t, Ping{}.Class()&AckEliciting)
	require.NotZero(t, (&Stream{}).Class()&AckEliciting)

	require.NotZero(t, PathChallenge{}.Class()&PathProbing)
	require.NotZero(t, PathResponse{}.Class()&PathProbing)
	require.NotZero(t, NewConnectionID{}.Class()&PathProbing)
}
