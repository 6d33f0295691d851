// Package protocol implements the Fastnet connection state machine: the
// handshake, established-phase packet handling, fast/slow tick maintenance,
// the ack manager, the roundtrip estimator, and the status translator.
package protocol

import "errors"

// Error is a connection-level failure surfaced to the embedder via
// Handler.RequestFailed.
type Error int

const (
	// ErrNotListening is surfaced when the peer replies
	// StatusResponse(FastnetResponse(false)).
	ErrNotListening Error = iota
	// ErrIncompatibleVersions is surfaced when the peer's version string
	// does not match ours.
	ErrIncompatibleVersions
	// ErrConnectionAborted is surfaced when the peer sends Aborted during
	// the handshake.
	ErrConnectionAborted
	// ErrTimedOut is surfaced when a handshake step exceeds its retry cap.
	// An established connection that misses its liveness window is reported
	// through Handler.Disconnected, not with this error.
	ErrTimedOut
)

func (e Error) Error() string {
	switch e {
	case ErrNotListening:
		return "protocol: peer is not listening"
	case ErrIncompatibleVersions:
		return "protocol: incompatible protocol versions"
	case ErrConnectionAborted:
		return "protocol: connection aborted by peer"
	case ErrTimedOut:
		return "protocol: timed out"
	default:
		return "protocol: unknown error"
	}
}

// ErrNotEstablishing reports that a handshake was requested on a connection
// that is not in the Closed state. Establish does not return it: outside
// Closed, Establish is a silent no-op.
var ErrNotEstablishing = errors.New("protocol: connection is not closed")

// ErrWrongState is returned when an operation is attempted from a state that
// does not support it.
var ErrWrongState = errors.New("protocol: operation invalid in current state")
