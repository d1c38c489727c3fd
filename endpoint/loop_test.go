package endpoint

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/caozhiyi/quicx-go/netdrv"
	"github.com/caozhiyi/quicx-go/packet"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a minimal netdrv.Driver double: Wait blocks until Wake is
// called or the timeout elapses, and the double records the tokens passed
// to AddFD and whether Close ran, so tests can assert on loop behavior
// without real sockets.
type fakeDriver struct {
	mu      sync.Mutex
	woken   chan struct{}
	closed  bool
	added   []netdrv.Token
	removed []netdrv.Token
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{woken: make(chan struct{}, 8)}
}

func (f *fakeDriver) Init() error { return nil }

func (f *fakeDriver) AddFD(sock net.PacketConn, events netdrv.EventType, token netdrv.Token) error {
	f.mu.Lock()
	f.added = append(f.added, token)
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) ModifyFD(sock net.PacketConn, events netdrv.EventType, token netdrv.Token) error {
	return nil
}

func (f *fakeDriver) RemoveFD(sock net.PacketConn) error { return nil }

func (f *fakeDriver) Wait(timeoutMS int) ([]netdrv.Event, error) {
	var timeout <-chan time.Time
	if timeoutMS >= 0 {
		t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-f.woken:
		return nil, nil
	case <-timeout:
		return nil, nil
	}
}

func (f *fakeDriver) Wake() {
	select {
	case f.woken <- struct{}{}:
	default:
	}
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func testLoop(t *testing.T) (*Loop, *fakeDriver) {
	t.Helper()
	cfg := DefaultConfig()
	d := newFakeDriver()
	l := newLoop(context.Background(), 0, cfg, d, [32]byte{1, 2, 3})
	return l, d
}

func TestEnqueueTaskRunsOnDrainAndWakesDriver(t *testing.T) {
	l, d := testLoop(t)

	ran := make(chan struct{})
	l.EnqueueTask(func() { close(ran) })

	select {
	case <-d.woken:
	default:
		t.Fatal("EnqueueTask did not wake the driver")
	}

	l.drainTasks()
	select {
	case <-ran:
	default:
		t.Fatal("drainTasks did not run the enqueued function")
	}
}

func TestEnqueueTaskAfterStopIsANoop(t *testing.T) {
	l, _ := testLoop(t)
	l.stop()

	ran := false
	l.EnqueueTask(func() { ran = true })
	l.drainTasks()
	require.False(t, ran)
}

func TestOwnerForRoutesByCIDHashAcrossShards(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumLoops = 3
	loops := make([]*Loop, cfg.NumLoops)
	for i := range loops {
		loops[i] = newLoop(context.Background(), i, cfg, newFakeDriver(), [32]byte{byte(i)})
	}
	for _, l := range loops {
		l.shards = loops
	}

	cid := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	datagram := append([]byte{0x40}, cid...) // short header, high bit clear

	want := loops[shardIndex(cid, len(loops))]
	for _, l := range loops {
		got := l.ownerFor(datagram)
		require.Same(t, want, got)
	}
}

func TestOwnerForFallsBackToSelfOnMalformedDatagram(t *testing.T) {
	l, _ := testLoop(t)
	l.shards = []*Loop{l}
	require.Same(t, l, l.ownerFor(nil))
	require.Same(t, l, l.ownerFor([]byte{0x80})) // long header claiming more bytes than present
}

func TestOwnerForLongHeaderUsesExplicitDCIDLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumLoops = 2
	loops := []*Loop{
		newLoop(context.Background(), 0, cfg, newFakeDriver(), [32]byte{0}),
		newLoop(context.Background(), 1, cfg, newFakeDriver(), [32]byte{1}),
	}
	for _, l := range loops {
		l.shards = loops
	}

	dcid := []byte{1, 1, 1, 1}
	var datagram []byte
	datagram = append(datagram, 0xc0)          // long header, type Initial
	datagram = append(datagram, 0, 0, 0, 1)    // version 1
	datagram = append(datagram, byte(len(dcid)))
	datagram = append(datagram, dcid...)
	datagram = append(datagram, 0) // zero-length SCID
	datagram = append(datagram, 0) // zero-length token
	datagram = append(datagram, 0) // zero Length varint

	require.True(t, packet.IsLongHeader(datagram[0]))
	want := loops[shardIndex(dcid, len(loops))]
	got := loops[0].ownerFor(datagram)
	require.Same(t, want, got)
}
