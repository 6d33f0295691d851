// Package server hosts the runnable Fastnet engine: the connection
// registry and the event loop that owns the socket, the two timer wheels,
// and the command queue.
package server

import "github.com/camlorn/fastnet-go/source/protocol"

// Handler is the callback surface implemented by the embedder, invoked
// inline on the engine goroutine. It is the same interface
// protocol.Connection calls into; aliased here so embedders only need to
// import this package.
type Handler = protocol.Handler

// Error is the set of request-failure reasons surfaced to
// Handler.RequestFailed, re-exported from protocol for the same reason.
type Error = protocol.Error

const (
	ErrNotListening         = protocol.ErrNotListening
	ErrIncompatibleVersions = protocol.ErrIncompatibleVersions
	ErrConnectionAborted    = protocol.ErrConnectionAborted
	ErrTimedOut             = protocol.ErrTimedOut
)
