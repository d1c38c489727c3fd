package metrics

import "github.com/docker/go-metrics"

var (
	datagramsCounter = EndpointNamespace.NewLabeledCounter("datagrams", "The number of UDP datagrams processed", "direction")
	droppedCounter   = EndpointNamespace.NewLabeledCounter("dropped", "The number of inbound datagrams dropped before reaching a connection", "reason")
	connectionsGauge = EndpointNamespace.NewLabeledGauge("connections", "The number of connections currently tracked", metrics.Total, "role")
)

// DatagramReceived increments the inbound datagram counter.
func DatagramReceived() { datagramsCounter.WithValues("in").Inc(1) }

// DatagramSent increments the outbound datagram counter.
func DatagramSent() { datagramsCounter.WithValues("out").Inc(1) }

// DatagramDropped records a datagram that never reached a connection,
// tagged with why (a stateless-reset match, an unroutable DCID, or a
// rejected new-connection candidate).
func DatagramDropped(reason string) { droppedCounter.WithValues(reason).Inc(1) }

// ConnectionOpened increments the live-connection gauge for role
// ("client" or "server").
func ConnectionOpened(role string) { connectionsGauge.WithValues(role).Inc(1) }

// ConnectionClosed decrements the live-connection gauge for role.
func ConnectionClosed(role string) { connectionsGauge.WithValues(role).Dec(1) }
