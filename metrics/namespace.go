// Package metrics exports endpoint and connection counters through
// github.com/docker/go-metrics, namespaced per subsystem the way a
// Prometheus-backed service typically separates its exporters.
package metrics

import "github.com/docker/go-metrics"

const namespacePrefix = "quicx"

var (
	// EndpointNamespace covers accept/dial/datagram-level counters owned
	// by the endpoint runtime (endpoint package).
	EndpointNamespace = metrics.NewNamespace(namespacePrefix, "endpoint", nil)
	// ConnectionNamespace covers per-connection gauges sampled from
	// conn.Conn.Stats() (conn package).
	ConnectionNamespace = metrics.NewNamespace(namespacePrefix, "connection", nil)
)

func init() {
	metrics.Register(EndpointNamespace)
	metrics.Register(ConnectionNamespace)
}
