package server

import (
	"net"
	"time"

	"github.com/camlorn/fastnet-go/pkg/metrics"
	"github.com/camlorn/fastnet-go/source/protocol"
)

// DefaultConnectionTimeout is the default liveness window: a connection is
// reaped if the registry hasn't seen a packet from it in this long.
const DefaultConnectionTimeout = 10 * time.Second

// Registry maps peer address to Connection: exactly one Connection per
// address while open.
type Registry struct {
	byAddress map[string]*protocol.Connection

	// removalScratch is reused across sweeps instead of allocated fresh,
	// to collect keys to remove without mutating the map mid-range.
	removalScratch []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byAddress: make(map[string]*protocol.Connection)}
}

func key(addr net.Addr) string {
	return addr.String()
}

// Get looks up the connection for addr, if any.
func (r *Registry) Get(addr net.Addr) (*protocol.Connection, bool) {
	c, ok := r.byAddress[key(addr)]
	return c, ok
}

// Put registers c under its own address. Callers must ensure no existing
// connection occupies that address first; the server-side passive-open
// path in Engine enforces this.
func (r *Registry) Put(c *protocol.Connection) {
	r.byAddress[key(c.Address)] = c
	metrics.ConnectionEstablished()
}

// Remove drops the connection for addr, if any.
func (r *Registry) Remove(addr net.Addr) {
	if _, ok := r.byAddress[key(addr)]; ok {
		delete(r.byAddress, key(addr))
		metrics.ConnectionClosed()
	}
}

// Each calls fn once per registered connection. fn must not mutate the
// registry (see Sweep for the map-safe removal pattern).
func (r *Registry) Each(fn func(*protocol.Connection)) {
	for _, c := range r.byAddress {
		fn(c)
	}
}

// Sweep removes every connection whose LastReceivedPacketTime is older
// than timeout as of now, invoking onTimeout(c) for each one before it is
// removed. Two-pass scan-then-remove: collecting keys into removalScratch
// first avoids mutating the map while ranging over it. onTimeout is
// responsible for any metrics accounting of the removal.
func (r *Registry) Sweep(now time.Time, timeout time.Duration, onTimeout func(*protocol.Connection)) {
	r.removalScratch = r.removalScratch[:0]
	for addrKey, c := range r.byAddress {
		if now.Sub(c.LastReceivedPacketTime) > timeout {
			r.removalScratch = append(r.removalScratch, addrKey)
			onTimeout(c)
		}
	}
	for _, addrKey := range r.removalScratch {
		delete(r.byAddress, addrKey)
	}
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	return len(r.byAddress)
}
