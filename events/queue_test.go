package events

import (
	"sync"
	"testing"
	"time"

	goevents "github.com/docker/go-events"
	"github.com/stretchr/testify/require"
)

type testSink struct {
	mu     sync.Mutex
	count  int
	closed bool
}

func (ts *testSink) Write(goevents.Event) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.count++
	return nil
}

func (ts *testSink) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.closed = true
	return nil
}

func TestQueueDeliversAllWrittenEvents(t *testing.T) {
	const n = 200
	ts := &testSink{}
	q := NewQueue(ts)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, q.Write(Event{Action: ActionStreamOpened}))
		}()
	}
	wg.Wait()

	require.NoError(t, q.Close())

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Equal(t, n, ts.count)
	require.True(t, ts.closed)
}

func TestQueueWriteAfterCloseFails(t *testing.T) {
	q := NewQueue(&testSink{})
	require.NoError(t, q.Close())
	require.ErrorIs(t, q.Write(Event{}), ErrQueueClosed)
}

func TestQueueCloseTwiceErrors(t *testing.T) {
	q := NewQueue(&testSink{})
	require.NoError(t, q.Close())
	require.Error(t, q.Close())
}

func TestQueueOrdersEventsFIFO(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64
	sink := sinkFn(func(e goevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.(Event).StreamID)
		return nil
	})
	q := NewQueue(sink)
	for i := uint64(0); i < 50; i++ {
		require.NoError(t, q.Write(Event{Action: ActionStreamOpened, StreamID: i}))
	}
	require.NoError(t, q.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 50)
	for i, v := range seen {
		require.Equal(t, uint64(i), v)
	}
}

type sinkFn func(goevents.Event) error

func (f sinkFn) Write(e goevents.Event) error { return f(e) }
func (f sinkFn) Close() error                 { return nil }

func TestDiscardSinkDropsEverything(t *testing.T) {
	s := NewDiscardSink()
	require.NoError(t, s.Write(Event{}))
	require.NoError(t, s.Close())
}

func TestQueueFlushesBeforeClose(t *testing.T) {
	ts := &testSink{}
	q := NewQueue(ts)
	require.NoError(t, q.Write(Event{}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Equal(t, 1, ts.count)
}
