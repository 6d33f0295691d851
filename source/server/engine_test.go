package server

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/camlorn/fastnet-go/pkg/wire"
	"github.com/camlorn/fastnet-go/source/protocol"
)

type recordingHandler struct {
	connected     chan uuid.UUID
	disconnected  chan uuid.UUID
	requestFailed chan protocol.Error
	delivered     chan []byte
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connected:     make(chan uuid.UUID, 8),
		disconnected:  make(chan uuid.UUID, 8),
		requestFailed: make(chan protocol.Error, 8),
		delivered:     make(chan []byte, 8),
	}
}

func (h *recordingHandler) Connected(id uuid.UUID, requestID *uint64)    { h.connected <- id }
func (h *recordingHandler) Disconnected(id uuid.UUID, requestID *uint64) { h.disconnected <- id }
func (h *recordingHandler) RequestFailed(requestID uint64, err protocol.Error) {
	h.requestFailed <- err
}
func (h *recordingHandler) Deliver(id uuid.UUID, channel uint16, payload []byte, flags byte, header *wire.FrameHeader) {
	h.delivered <- payload
}

func newTestClient(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP (client): %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendPacket(t *testing.T, conn *net.UDPConn, dst net.Addr, p wire.Packet) {
	t.Helper()
	w := wire.NewWriter(wire.MaxEncodedPacketSize)
	if err := wire.Encode(p, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	datagram, err := wire.Wrap(w.Bytes())
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, err := conn.WriteTo(datagram, dst); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
}

func readPacket(t *testing.T, conn *net.UDPConn) wire.Packet {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, wire.MaxDatagramSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	packetBytes, err := wire.Unwrap(buf[:n])
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	p, err := wire.Decode(wire.NewReader(packetBytes))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return p
}

func startTestEngine(t *testing.T, h Handler) (*Engine, net.Addr) {
	t.Helper()
	e, err := NewEngine("127.0.0.1:0", h)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Stop)
	return e, e.conn.LocalAddr()
}

func TestEngineStatusQuery(t *testing.T) {
	h := newRecordingHandler()
	_, serverAddr := startTestEngine(t, h)
	client := newTestClient(t)

	sendPacket(t, client, serverAddr, wire.StatusRequestPacket(wire.StatusRequest{Kind: wire.FastnetQuery}))
	resp := readPacket(t, client)
	if resp.Kind != wire.KindStatusResponse || resp.StatusResponse.Kind != wire.FastnetResponse || !resp.StatusResponse.Listening {
		t.Fatalf("got %+v, want FastnetResponse(true)", resp)
	}
}

func TestEnginePassiveOpen(t *testing.T) {
	h := newRecordingHandler()
	_, serverAddr := startTestEngine(t, h)
	client := newTestClient(t)

	id := uuid.New()
	sendPacket(t, client, serverAddr, wire.ConnectPacket(id))
	resp := readPacket(t, client)
	if resp.Kind != wire.KindConnected || resp.UUID != id {
		t.Fatalf("got %+v, want Connected(%v)", resp, id)
	}

	select {
	case got := <-h.connected:
		if got != id {
			t.Fatalf("Connected callback id = %v, want %v", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connected callback never fired")
	}
}

func TestEngineSecondConnectFromSameAddressDoesNotReplace(t *testing.T) {
	h := newRecordingHandler()
	_, serverAddr := startTestEngine(t, h)
	client := newTestClient(t)

	first := uuid.New()
	sendPacket(t, client, serverAddr, wire.ConnectPacket(first))
	readPacket(t, client)
	<-h.connected

	second := uuid.New()
	sendPacket(t, client, serverAddr, wire.ConnectPacket(second))
	resp := readPacket(t, client)
	if resp.Kind != wire.KindConnected || resp.UUID != first {
		t.Fatalf("got %+v, want Connected(%v) (existing id, unreplaced)", resp, first)
	}

	select {
	case <-h.connected:
		t.Fatal("Connected fired a second time for the same address")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineClientHandshakeAndDataDelivery(t *testing.T) {
	h := newRecordingHandler()
	e, serverAddr := startTestEngine(t, h)

	// Drive a full client-side handshake manually over a second UDP peer
	// acting as the "server" the engine is connecting out to.
	peer := newTestClient(t)
	peerAddr := peer.LocalAddr()

	e.Connect(peerAddr, 7)

	req := readPacket(t, peer)
	if req.Kind != wire.KindStatusRequest || req.StatusRequest.Kind != wire.FastnetQuery {
		t.Fatalf("got %+v, want StatusRequest(FastnetQuery)", req)
	}
	sendPacket(t, peer, serverAddr, wire.StatusResponsePacket(wire.StatusResponse{Kind: wire.FastnetResponse, Listening: true}))

	req = readPacket(t, peer)
	if req.Kind != wire.KindStatusRequest || req.StatusRequest.Kind != wire.VersionQuery {
		t.Fatalf("got %+v, want StatusRequest(VersionQuery)", req)
	}
	sendPacket(t, peer, serverAddr, wire.StatusResponsePacket(wire.StatusResponse{Kind: wire.VersionResponse, Version: protocol.ProtocolVersion}))

	req = readPacket(t, peer)
	if req.Kind != wire.KindConnect {
		t.Fatalf("got %+v, want Connect", req)
	}
	sendPacket(t, peer, serverAddr, wire.ConnectedPacket(req.UUID))

	select {
	case got := <-h.connected:
		if got != req.UUID {
			t.Fatalf("Connected id = %v, want %v", got, req.UUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connected callback never fired")
	}

	e.SendData(req.UUID, 3, 0, []byte("hello"))
	dataPkt := readPacket(t, peer)
	if dataPkt.Kind != wire.KindData || string(dataPkt.Data.Packet.Payload) != "hello" {
		t.Fatalf("got %+v, want Data payload 'hello'", dataPkt)
	}
}
