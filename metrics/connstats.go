package metrics

import "github.com/docker/go-metrics"

var (
	rttGauge           = ConnectionNamespace.NewLabeledGauge("smoothed_rtt_ms", "The smoothed round-trip time estimate", metrics.Total, "conn")
	cwndGauge          = ConnectionNamespace.NewLabeledGauge("cwnd_bytes", "The current congestion window", metrics.Total, "conn")
	bytesInFlightGauge = ConnectionNamespace.NewLabeledGauge("bytes_in_flight", "Bytes sent but not yet acknowledged or declared lost", metrics.Total, "conn")
)

// ConnStats is the subset of conn.Conn.Stats() this package samples,
// kept independent of the conn package so metrics has no import on it.
type ConnStats struct {
	SmoothedRTTMillis float64
	Cwnd              uint64
	BytesInFlight     uint64
}

// SampleConn records one connection's stats snapshot under label, which
// callers typically set to the connection's local CID in hex.
func SampleConn(label string, s ConnStats) {
	rttGauge.WithValues(label).Set(s.SmoothedRTTMillis)
	cwndGauge.WithValues(label).Set(float64(s.Cwnd))
	bytesInFlightGauge.WithValues(label).Set(float64(s.BytesInFlight))
}

// ForgetConn zeroes a closed connection's gauges so they stop
// reporting stale values under a CID that will never update again; the
// label itself stays registered.
func ForgetConn(label string) {
	rttGauge.WithValues(label).Set(0)
	cwndGauge.WithValues(label).Set(0)
	bytesInFlightGauge.WithValues(label).Set(0)
}
