// Package events turns the callbacks a conn.Conn fires (new stream,
// connection close, key update) into a stream of typed records an
// operator-facing sink can consume, the way a notifications package
// turns internal actions into webhook events.
package events

import "time"

// Action names the kind of thing that happened on a connection.
type Action string

const (
	ActionStreamOpened     Action = "stream.opened"
	ActionConnectionClosed Action = "connection.closed"
	ActionKeyUpdate        Action = "key.update"
)

// ConnRecord identifies the connection an Event is about. LocalCID is the
// one piece of state every layer (endpoint, cidreg, conn) agrees on, so it
// doubles as the correlation key across logs, metrics, and events.
type ConnRecord struct {
	LocalCID string `json:"local_cid"`
	Remote   string `json:"remote,omitempty"`
}

// Event is one record in the connection event stream. Only the fields
// relevant to Action are populated; the rest are zero.
type Event struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    Action     `json:"action"`
	Conn      ConnRecord `json:"conn"`

	StreamID uint64 `json:"stream_id,omitempty"`

	CloseCode   uint64 `json:"close_code,omitempty"`
	CloseByApp  bool   `json:"close_by_app,omitempty"`
	CloseReason string `json:"close_reason,omitempty"`

	KeyPhase bool `json:"key_phase,omitempty"`
}
