package netdrv

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPortableReportsReadableOnIncomingDatagram(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer clientConn.Close()

	d := NewPortable()
	require.NoError(t, d.Init())
	require.NoError(t, d.AddFD(serverConn, EventReadable, Token(1)))
	defer d.Close()

	_, err = clientConn.WriteTo([]byte("hello"), serverConn.LocalAddr())
	require.NoError(t, err)

	events, err := d.Wait(2000)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, Token(1), events[0].Token)
	require.Equal(t, EventReadable, events[0].Events)

	buf := make([]byte, 16)
	n, _, err := serverConn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestPortableWakeInterruptsBlockedWait(t *testing.T) {
	d := NewPortable()
	require.NoError(t, d.Init())
	defer d.Close()

	done := make(chan struct{})
	go func() {
		d.Wait(5000)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	d.Wake()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not unblock Wait")
	}
}

func TestPortableWaitTimesOutWithoutEvents(t *testing.T) {
	d := NewPortable()
	require.NoError(t, d.Init())
	defer d.Close()

	start := time.Now()
	events, err := d.Wait(30)
	require.NoError(t, err)
	require.Empty(t, events)
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestPortableRemoveFDStopsReadLoop(t *testing.T) {
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer serverConn.Close()

	d := NewPortable()
	require.NoError(t, d.Init())
	require.NoError(t, d.AddFD(serverConn, EventReadable, Token(1)))
	require.NoError(t, d.RemoveFD(serverConn))
	defer d.Close()

	_, ok := d.entries[Token(1)]
	require.False(t, ok)
}
