package protocol

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/camlorn/fastnet-go/pkg/wire"
)

// MaxStatusAttempts caps retries of StatusRequest(FastnetQuery/VersionQuery)
// during the handshake before the attempt times out.
const MaxStatusAttempts = 10

// MaxConnectionAttempts caps retries of Connect before the handshake times
// out (~5s at 200ms fast ticks).
const MaxConnectionAttempts = 25

// StateKind discriminates ConnectionState.
type StateKind int

const (
	StateClosed StateKind = iota
	StateEstablishing
	StateEstablished
	StateClosing
)

// EstablishingState holds the handshake progress fields, valid only when
// State.Kind == StateEstablishing.
type EstablishingState struct {
	Listening         bool
	CompatibleVersion bool
	Attempts          uint32
	RequestID         *uint64
}

// ClosingState holds the teardown request id, valid only when
// State.Kind == StateClosing.
type ClosingState struct {
	RequestID *uint64
}

// State is the tagged union over a connection's lifecycle phases.
type State struct {
	Kind         StateKind
	Establishing EstablishingState
	Closing      ClosingState
}

// Sender is the outbound surface a Connection uses to actually put a packet
// on the wire. The engine implements this; framing/checksumming happens
// below this interface, not inside the state machine.
type Sender interface {
	SendPacket(addr net.Addr, p wire.Packet)
}

// Handler is the callback surface invoked by the engine thread.
// Implementations must return promptly: they run inline on the single
// engine goroutine.
type Handler interface {
	// Connected is invoked when a handshake completes (client side,
	// requestID carries the id passed to Establish) or when a peer opens a
	// passive connection (server side, requestID is nil).
	Connected(id uuid.UUID, requestID *uint64)
	// Disconnected is invoked when a connection is torn down, whether by
	// explicit disconnect or liveness timeout. A handshake that fails
	// (including an abort) is reported through RequestFailed instead.
	Disconnected(id uuid.UUID, requestID *uint64)
	// RequestFailed is invoked when a client-side handshake fails.
	RequestFailed(requestID uint64, err Error)
	// Deliver surfaces a Data packet's payload to the embedder.
	Deliver(id uuid.UUID, channel uint16, payload []byte, flags byte, header *wire.FrameHeader)
}

// Connection is a single peer's Fastnet session: its state machine, ack
// manager, and RTT estimator.
type Connection struct {
	State   State
	ID      uuid.UUID
	Address net.Addr

	SentPackets     uint64
	ReceivedPackets uint64
	HeartbeatCounter uint64

	// EndpointID distinguishes our own echo probes returning to us from
	// probes sent to us by the peer.
	EndpointID uuid.UUID

	Roundtrip *RoundtripEstimator
	AckMgr    *AckManager

	LastReceivedPacketTime time.Time

	nextSeq map[uint16]uint64
}

// NewConnection builds a Closed connection for address with the given
// connection id. Use Establish to begin a client-side handshake, or
// NewEstablishedConnection for the server's passive-open path.
func NewConnection(address net.Addr, id uuid.UUID) *Connection {
	return &Connection{
		State:      State{Kind: StateClosed},
		ID:         id,
		Address:    address,
		EndpointID: uuid.New(),
		Roundtrip:  NewRoundtripEstimator(DefaultWindowSize),
		AckMgr:     NewAckManager(),
		nextSeq:    make(map[uint16]uint64),
	}
}

// NewEstablishedConnection builds a connection already in the Established
// state, for the server-side passive-open path.
func NewEstablishedConnection(address net.Addr, id uuid.UUID) *Connection {
	c := NewConnection(address, id)
	c.State = State{Kind: StateEstablished}
	return c
}

func (c *Connection) send(p wire.Packet, sender Sender) {
	c.SentPackets++
	sender.SendPacket(c.Address, p)
}

// Establish begins a client-side handshake. Only valid from Closed; a
// no-op otherwise.
func (c *Connection) Establish(requestID *uint64, sender Sender) {
	if c.State.Kind != StateClosed {
		return
	}
	c.State = State{Kind: StateEstablishing, Establishing: EstablishingState{RequestID: requestID}}
	c.send(wire.StatusRequestPacket(wire.StatusRequest{Kind: wire.FastnetQuery}), sender)
}

// HandleIncomingPacket processes one accepted packet for this connection.
// It reports whether the packet was handled here; a false return means the
// caller (the registry/engine) should fall through to connectionless
// dispatch.
func (c *Connection) HandleIncomingPacket(p wire.Packet, now time.Time, sender Sender, h Handler) bool {
	c.ReceivedPackets++
	c.LastReceivedPacketTime = now

	switch p.Kind {
	case wire.KindStatusResponse:
		// Meaningful only while Establishing; handleStatusResponse no-ops
		// otherwise, so this is unconditionally treated as handled.
		c.handleStatusResponse(p.StatusResponse, sender, h)
		return true
	case wire.KindConnected:
		c.handleConnected(p.UUID, h)
		return true
	case wire.KindAborted:
		c.handleAborted(p.AbortedMessage, h)
		return true
	case wire.KindEcho, wire.KindHeartbeat, wire.KindAck, wire.KindData:
		// Only meaningful in Established; while Establishing these fall
		// through to connectionless dispatch instead.
		if c.State.Kind != StateEstablished {
			return false
		}
		c.handleEstablished(p, now, sender, h)
		return true
	default:
		return false
	}
}

func (c *Connection) handleEstablished(p wire.Packet, now time.Time, sender Sender, h Handler) {
	switch p.Kind {
	case wire.KindEcho:
		if p.Echo.Endpoint != c.EndpointID {
			c.send(p, sender)
		} else {
			c.Roundtrip.HandleEcho(p.Echo.UUID, now)
		}
	case wire.KindHeartbeat:
		// Counters are parsed but otherwise unused.
	case wire.KindAck:
		c.AckMgr.SubmitAck(p.Ack.Channel, p.Ack.SequenceNumber)
	case wire.KindData:
		if p.Data.Packet.Reliable() {
			c.AckMgr.SubmitData(p.Data.Channel, p.Data.Packet.SequenceNumber)
		}
		h.Deliver(c.ID, p.Data.Channel, p.Data.Packet.Payload, p.Data.Packet.Flags, p.Data.Packet.Header)
	}
}

func (c *Connection) handleConnected(id uuid.UUID, h Handler) {
	if id != c.ID {
		return
	}
	if c.State.Kind != StateEstablishing {
		return
	}
	est := c.State.Establishing
	if est.Listening && est.CompatibleVersion {
		c.SentPackets = 0
		c.ReceivedPackets = 0
		c.State = State{Kind: StateEstablished}
		h.Connected(c.ID, est.RequestID)
	}
}

func (c *Connection) handleAborted(message string, h Handler) {
	if c.State.Kind != StateEstablishing {
		// A no-op once Established; see DESIGN.md for the open-question
		// decision behind this.
		return
	}
	est := c.State.Establishing
	if est.Listening && est.CompatibleVersion {
		c.State = State{Kind: StateClosed}
		if est.RequestID != nil {
			h.RequestFailed(*est.RequestID, ErrConnectionAborted)
		}
	}
}

func (c *Connection) handleStatusResponse(resp wire.StatusResponse, sender Sender, h Handler) {
	if c.State.Kind != StateEstablishing {
		return
	}
	est := c.State.Establishing

	switch {
	case resp.Kind == wire.FastnetResponse && !est.Listening:
		if !resp.Listening {
			if est.RequestID != nil {
				h.RequestFailed(*est.RequestID, ErrNotListening)
			}
			c.State = State{Kind: StateClosed}
			return
		}
		est.Listening = true
		c.send(wire.StatusRequestPacket(wire.StatusRequest{Kind: wire.VersionQuery}), sender)
	case resp.Kind == wire.VersionResponse && !est.CompatibleVersion:
		if resp.Version != ProtocolVersion {
			if est.RequestID != nil {
				h.RequestFailed(*est.RequestID, ErrIncompatibleVersions)
			}
			c.State = State{Kind: StateClosed}
			return
		}
		est.CompatibleVersion = true
	}

	if est.Listening && est.CompatibleVersion {
		c.send(wire.ConnectPacket(c.ID), sender)
	}
	est.Attempts = 0
	c.State = State{Kind: StateEstablishing, Establishing: est}
}

// Tick200 runs the fast-tick maintenance step: handshake retransmits/
// timeouts while Establishing, RTT probing and ack flushing while
// Established.
func (c *Connection) Tick200(sender Sender, h Handler) {
	switch c.State.Kind {
	case StateEstablishing:
		est := c.State.Establishing
		est.Attempts++
		switch {
		case !est.Listening:
			if est.Attempts > MaxStatusAttempts {
				c.failHandshake(est, h, ErrTimedOut)
				return
			}
			c.send(wire.StatusRequestPacket(wire.StatusRequest{Kind: wire.FastnetQuery}), sender)
		case !est.CompatibleVersion:
			if est.Attempts > MaxStatusAttempts {
				c.failHandshake(est, h, ErrTimedOut)
				return
			}
			c.send(wire.StatusRequestPacket(wire.StatusRequest{Kind: wire.VersionQuery}), sender)
		default:
			if est.Attempts > MaxConnectionAttempts {
				c.failHandshake(est, h, ErrTimedOut)
				return
			}
			c.send(wire.ConnectPacket(c.ID), sender)
		}
		c.State = State{Kind: StateEstablishing, Establishing: est}
	case StateEstablished:
		probe := c.Roundtrip.Tick(time.Now())
		c.send(wire.EchoPacket(wire.Echo{Endpoint: c.EndpointID, UUID: probe.UUID}), sender)
		for _, ack := range c.AckMgr.IterNeedsAck() {
			c.send(wire.AckPacket(ack.Channel, ack.SequenceNumber), sender)
		}
	}
}

func (c *Connection) failHandshake(est EstablishingState, h Handler, err Error) {
	c.State = State{Kind: StateClosed}
	if est.RequestID != nil {
		h.RequestFailed(*est.RequestID, err)
	}
}

// Tick1000 runs the slow-tick maintenance step: heartbeat emission while
// Established. The caller (registry) performs the liveness sweep across all
// connections after ticking each one.
func (c *Connection) Tick1000(sender Sender) {
	if c.State.Kind != StateEstablished {
		return
	}
	hb := wire.Heartbeat{Counter: c.HeartbeatCounter, Sent: c.SentPackets, Received: c.ReceivedPackets}
	c.HeartbeatCounter++
	c.send(wire.HeartbeatPacket(hb), sender)
}

// SendData emits an outbound Data packet on channel, assigning the next
// sequence number for that channel and registering it with the ack manager
// if reliable.
func (c *Connection) SendData(channel uint16, flags byte, payload []byte, header *wire.FrameHeader, sender Sender) {
	seq := c.nextSeq[channel]
	c.nextSeq[channel] = seq + 1
	dp := wire.DataPacket{SequenceNumber: seq, Flags: flags, Header: header, Payload: payload}
	if dp.Reliable() {
		c.AckMgr.MarkSent(channel, seq)
	}
	c.send(wire.DataPacketOn(channel, dp), sender)
}

// Disconnect transitions immediately to Closed and fires Disconnected, with
// no wire signaling: disconnection is local-only.
func (c *Connection) Disconnect(requestID *uint64, h Handler) {
	c.State = State{Kind: StateClosed}
	h.Disconnected(c.ID, requestID)
}
