// Package metrics exposes process-wide counters for the framing/codec
// failure paths and connection lifecycle transitions, backed by
// github.com/VictoriaMetrics/metrics instead of hand-rolled atomics.
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	checksumMismatches = metrics.NewCounter("fastnet_checksum_mismatch_total")
	decodeFailures     = metrics.NewCounter("fastnet_decode_failure_total")
	datagramsTooShort  = metrics.NewCounter("fastnet_datagram_too_short_total")

	connectionsEstablished = metrics.NewCounter("fastnet_connections_established_total")
	connectionsTimedOut    = metrics.NewCounter("fastnet_connections_timed_out_total")
	connectionsAborted     = metrics.NewCounter("fastnet_connections_aborted_total")
	connectionsActive      = metrics.NewCounter("fastnet_connections_active")

	handshakeFailures = metrics.NewCounter("fastnet_handshake_failures_total")
)

// ChecksumMismatch records a datagram dropped for a bad checksum.
func ChecksumMismatch() { checksumMismatches.Inc() }

// DecodeFailure records a datagram dropped for a malformed packet.
func DecodeFailure() { decodeFailures.Inc() }

// DatagramTooShort records a datagram dropped for being shorter than the
// checksum prefix.
func DatagramTooShort() { datagramsTooShort.Inc() }

// ConnectionEstablished records a connection reaching the Established state.
func ConnectionEstablished() {
	connectionsEstablished.Inc()
	connectionsActive.Inc()
}

// ConnectionClosed records a connection leaving the registry, whether by
// liveness timeout or explicit disconnect.
func ConnectionClosed() {
	connectionsActive.Dec()
}

// ConnectionTimedOut records a liveness-sweep removal.
func ConnectionTimedOut() {
	connectionsTimedOut.Inc()
	ConnectionClosed()
}

// ConnectionAborted records a peer-initiated Aborted during handshake.
func ConnectionAborted() {
	connectionsAborted.Inc()
}

// HandshakeFailure records any client-side handshake failure
// (NotListening, IncompatibleVersions, ConnectionAborted, TimedOut).
func HandshakeFailure() {
	handshakeFailures.Inc()
}

// WritePrometheus writes every registered counter in Prometheus text
// exposition format, mirroring R2Northstar-Atlas's WritePrometheus helper.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
