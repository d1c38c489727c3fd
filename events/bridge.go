package events

import (
	"encoding/hex"
	"net"

	goevents "github.com/docker/go-events"

	"github.com/caozhiyi/quicx-go/conn"
	"github.com/caozhiyi/quicx-go/stream"
)

var _ conn.EventSink = (*Bridge)(nil)

// Bridge adapts one connection's callbacks to the Event stream, the way
// a notification bridge adapts internal actions into webhook events. One
// Bridge is created per connection by Factory.
type Bridge struct {
	conn  ConnRecord
	queue *Queue
}

// NewBridge returns a conn.EventSink writing to queue, tagged with conn's
// identity so every Event it produces can be correlated back to one
// connection.
func NewBridge(queue *Queue, localCID []byte, remote net.Addr) *Bridge {
	rec := ConnRecord{LocalCID: hex.EncodeToString(localCID)}
	if remote != nil {
		rec.Remote = remote.String()
	}
	return &Bridge{conn: rec, queue: queue}
}

func (b *Bridge) OnNewStream(id stream.ID) {
	b.queue.Write(Event{
		Action:   ActionStreamOpened,
		Conn:     b.conn,
		StreamID: uint64(id),
	})
}

func (b *Bridge) OnConnectionClose(code uint64, appErr bool, reason string) {
	b.queue.Write(Event{
		Action:      ActionConnectionClosed,
		Conn:        b.conn,
		CloseCode:   code,
		CloseByApp:  appErr,
		CloseReason: reason,
	})
}

func (b *Bridge) OnKeyUpdate(phase bool) {
	b.queue.Write(Event{
		Action:   ActionKeyUpdate,
		Conn:     b.conn,
		KeyPhase: phase,
	})
}

// Factory returns the per-connection sink factory endpoint.Endpoint.Listen
// expects, binding every accepted connection's events to queue.
func Factory(queue *Queue) func(remote net.Addr, localCID []byte) conn.EventSink {
	return func(remote net.Addr, localCID []byte) conn.EventSink {
		return NewBridge(queue, localCID, remote)
	}
}

var _ goevents.Sink = (*discardSink)(nil)

// discardSink is a goevents.Sink that drops everything; useful as a
// default when no operator-facing event destination is configured.
type discardSink struct{}

// NewDiscardSink returns a Sink that discards every Event, for endpoints
// that run without an events destination configured.
func NewDiscardSink() goevents.Sink { return discardSink{} }

func (discardSink) Write(goevents.Event) error { return nil }
func (discardSink) Close() error               { return nil }
