package events

import (
	"net"
	"sync"
	"testing"

	goevents "github.com/docker/go-events"
	"github.com/stretchr/testify/require"

	"github.com/caozhiyi/quicx-go/stream"
)

func collectingQueue() (*Queue, func() []Event) {
	var mu sync.Mutex
	var got []Event
	q := NewQueue(sinkFn(func(e goevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(Event))
		return nil
	}))
	return q, func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}
}

func TestBridgeOnNewStreamWritesEvent(t *testing.T) {
	q, collected := collectingQueue()
	b := NewBridge(q, []byte{0xde, 0xad}, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4242})

	b.OnNewStream(stream.ID(7))
	require.NoError(t, q.Close())

	events := collected()
	require.Len(t, events, 1)
	require.Equal(t, ActionStreamOpened, events[0].Action)
	require.Equal(t, uint64(7), events[0].StreamID)
	require.Equal(t, "dead", events[0].Conn.LocalCID)
	require.Equal(t, "127.0.0.1:4242", events[0].Conn.Remote)
}

func TestBridgeOnConnectionCloseWritesEvent(t *testing.T) {
	q, collected := collectingQueue()
	b := NewBridge(q, []byte{1}, nil)

	b.OnConnectionClose(42, true, "bye")
	require.NoError(t, q.Close())

	events := collected()
	require.Len(t, events, 1)
	require.Equal(t, ActionConnectionClosed, events[0].Action)
	require.Equal(t, uint64(42), events[0].CloseCode)
	require.True(t, events[0].CloseByApp)
	require.Equal(t, "bye", events[0].CloseReason)
	require.Empty(t, events[0].Conn.Remote)
}

func TestBridgeOnKeyUpdateWritesEvent(t *testing.T) {
	q, collected := collectingQueue()
	b := NewBridge(q, []byte{1}, nil)

	b.OnKeyUpdate(true)
	require.NoError(t, q.Close())

	events := collected()
	require.Len(t, events, 1)
	require.Equal(t, ActionKeyUpdate, events[0].Action)
	require.True(t, events[0].KeyPhase)
}

func TestFactoryBuildsDistinctBridgesPerConnection(t *testing.T) {
	q, _ := collectingQueue()
	factory := Factory(q)

	a := factory(nil, []byte{1})
	b := factory(nil, []byte{2})
	require.NotSame(t, a, b)
	q.Close()
}
