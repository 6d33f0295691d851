package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/camlorn/fastnet-go/pkg/logging"
	"github.com/camlorn/fastnet-go/pkg/metrics"
	"github.com/camlorn/fastnet-go/pkg/wire"
	"github.com/camlorn/fastnet-go/source/protocol"
)

// FastTickInterval is the 200ms timer wheel driving handshake retransmits,
// ack flushing, and RTT probing.
const FastTickInterval = 200 * time.Millisecond

// SlowTickInterval is the 1000ms timer wheel driving heartbeats and the
// liveness sweep.
const SlowTickInterval = 1000 * time.Millisecond

// datagram is one received UDP packet, handed from the reader goroutine to
// the engine goroutine over a channel.
type datagram struct {
	data []byte
	addr net.Addr
}

// Engine owns the UDP socket, the connection registry, the two timer
// wheels, and the command queue. All connection state is touched only from
// the single goroutine Engine.loop runs on: one thread owns the socket, the
// two tickers, and a command channel, with a dedicated reader goroutine
// feeding ingress datagrams over a channel since net.UDPConn exposes no
// non-blocking readiness primitive in the standard library.
type Engine struct {
	conn    *net.UDPConn
	handler Handler

	registry *Registry
	timeout  time.Duration

	commands chan func(*Engine)
	ingress  chan datagram
	stopped  chan struct{}
}

// NewEngine binds addr and starts the engine goroutine, blocking until the
// bind (and therefore construction) either succeeds or fails.
func NewEngine(bindAddr string, handler Handler) (*Engine, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind UDP socket: %w", err)
	}

	e := &Engine{
		conn:     conn,
		handler:  handler,
		registry: NewRegistry(),
		timeout:  DefaultConnectionTimeout,
		commands: make(chan func(*Engine), 64),
		ingress:  make(chan datagram, 64),
		stopped:  make(chan struct{}),
	}

	go e.readLoop()
	go e.loop()

	return e, nil
}

func (e *Engine) readLoop() {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case e.ingress <- datagram{data: cp, addr: addr}:
		case <-e.stopped:
			return
		}
	}
}

func (e *Engine) loop() {
	fastTicker := time.NewTicker(FastTickInterval)
	slowTicker := time.NewTicker(SlowTickInterval)
	defer fastTicker.Stop()
	defer slowTicker.Stop()
	defer e.conn.Close()

	for {
		select {
		case dg := <-e.ingress:
			e.handleDatagram(dg)
		case <-fastTicker.C:
			e.tickFast()
		case <-slowTicker.C:
			e.tickSlow()
		case cmd, ok := <-e.commands:
			if !ok {
				close(e.stopped)
				return
			}
			cmd(e)
		}
	}
}

// Stop closes the command queue, letting the loop drain any already-queued
// commands before it exits and releases the socket and timers.
func (e *Engine) Stop() {
	close(e.commands)
}

func (e *Engine) handleDatagram(dg datagram) {
	packetBytes, err := wire.Unwrap(dg.data)
	if err != nil {
		if errors.Is(err, wire.ErrTooShort) {
			metrics.DatagramTooShort()
		} else {
			metrics.ChecksumMismatch()
		}
		logging.Debug("dropping datagram from %s: %v", dg.addr, err)
		return
	}
	p, err := wire.Decode(wire.NewReader(packetBytes))
	if err != nil {
		metrics.DecodeFailure()
		logging.Debug("dropping malformed packet from %s: %v", dg.addr, err)
		return
	}

	now := time.Now()
	if conn, ok := e.registry.Get(dg.addr); ok {
		if conn.HandleIncomingPacket(p, now, e, e.handler) {
			return
		}
	}

	switch p.Kind {
	case wire.KindConnect:
		e.handleConnect(p.UUID, dg.addr)
	case wire.KindStatusRequest:
		resp := protocol.Translate(p.StatusRequest)
		e.SendPacket(dg.addr, wire.StatusResponsePacket(resp))
	default:
		logging.Debug("unhandled connectionless packet %v from %s", p.Kind, dg.addr)
	}
}

// handleConnect implements the server-side passive open path: a Connect(id)
// from an address with no existing connection creates one in Established
// state; a Connect from an already-registered address replies with the
// existing connection's id and does not replace it.
func (e *Engine) handleConnect(id uuid.UUID, addr net.Addr) {
	if existing, ok := e.registry.Get(addr); ok {
		e.SendPacket(addr, wire.ConnectedPacket(existing.ID))
		return
	}
	conn := protocol.NewEstablishedConnection(addr, id)
	conn.LastReceivedPacketTime = time.Now()
	e.registry.Put(conn)
	e.SendPacket(addr, wire.ConnectedPacket(id))
	e.handler.Connected(id, nil)
}

func (e *Engine) tickFast() {
	e.registry.Each(func(c *protocol.Connection) {
		c.Tick200(e, e.handler)
	})
}

func (e *Engine) tickSlow() {
	e.registry.Each(func(c *protocol.Connection) {
		c.Tick1000(e)
	})
	now := time.Now()
	e.registry.Sweep(now, e.timeout, func(c *protocol.Connection) {
		metrics.ConnectionTimedOut()
		e.handler.Disconnected(c.ID, nil)
	})
}

// SendPacket implements protocol.Sender: encodes p, wraps it with a
// checksum, and writes the resulting datagram to addr. Failures are logged
// and otherwise swallowed: there is no blocking I/O and no per-packet retry
// in the core.
func (e *Engine) SendPacket(addr net.Addr, p wire.Packet) {
	w := wire.NewWriter(wire.MaxEncodedPacketSize)
	if err := wire.Encode(p, w); err != nil {
		logging.Debug("failed to encode %v for %s: %v", p.Kind, addr, err)
		return
	}
	datagram, err := wire.Wrap(w.Bytes())
	if err != nil {
		logging.Debug("failed to frame %v for %s: %v", p.Kind, addr, err)
		return
	}
	if _, err := e.conn.WriteTo(datagram, addr); err != nil {
		logging.Debug("failed to send %v to %s: %v", p.Kind, addr, err)
	}
}

// Enqueue marshals an arbitrary mutation onto the engine goroutine's command
// queue. fn runs inline on the engine goroutine; like Handler callbacks, it
// must return promptly.
func (e *Engine) Enqueue(fn func(*Engine)) {
	e.commands <- fn
}

// Connect begins a client-side handshake to address.
func (e *Engine) Connect(address net.Addr, requestID uint64) {
	e.Enqueue(func(e *Engine) {
		id := uuid.New()
		conn := protocol.NewConnection(address, id)
		conn.LastReceivedPacketTime = time.Now()
		e.registry.Put(conn)
		conn.Establish(&requestID, e)
	})
}

// Disconnect gracefully closes a connection: immediate local transition to
// Closed plus a synchronous Disconnected callback, no wire signaling.
func (e *Engine) Disconnect(connectionID uuid.UUID, requestID *uint64) {
	e.Enqueue(func(e *Engine) {
		var found *protocol.Connection
		e.registry.Each(func(c *protocol.Connection) {
			if c.ID == connectionID {
				found = c
			}
		})
		if found == nil {
			return
		}
		found.Disconnect(requestID, e.handler)
		e.registry.Remove(found.Address)
	})
}

// ConfigureTimeout sets the liveness timeout used by the next slow-tick
// sweep.
func (e *Engine) ConfigureTimeout(ms uint64) {
	e.Enqueue(func(e *Engine) {
		e.timeout = time.Duration(ms) * time.Millisecond
	})
}

// SendData enqueues an outbound Data packet on channel for connectionID.
func (e *Engine) SendData(connectionID uuid.UUID, channel uint16, flags byte, payload []byte) {
	e.Enqueue(func(e *Engine) {
		var found *protocol.Connection
		e.registry.Each(func(c *protocol.Connection) {
			if c.ID == connectionID {
				found = c
			}
		})
		if found == nil {
			return
		}
		found.SendData(channel, flags, payload, nil, e)
	})
}
