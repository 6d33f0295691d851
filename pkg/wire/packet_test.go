package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func encodeBytes(t *testing.T, p Packet) []byte {
	t.Helper()
	w := NewWriter(MaxEncodedPacketSize)
	if err := Encode(p, w); err != nil {
		t.Fatalf("Encode(%v): %v", p.Kind, err)
	}
	return w.Bytes()
}

func TestConnectWireVector(t *testing.T) {
	id := uuid.MustParse("2d83369c-c226-4a37-9797-3206f5b9502f")
	got := encodeBytes(t, ConnectPacket(id))
	want := append([]byte{0xFF, 0xFF, 0x02}, id[:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("Connect encoding = % x, want % x", got, want)
	}
}

func TestHeartbeatWireVector(t *testing.T) {
	got := encodeBytes(t, HeartbeatPacket(Heartbeat{Counter: 5, Sent: 10, Received: 15}))
	want := []byte{
		0xFF, 0xFE,
		0, 0, 0, 0, 0, 0, 0, 5,
		0, 0, 0, 0, 0, 0, 0, 10,
		0, 0, 0, 0, 0, 0, 0, 15,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Heartbeat encoding = % x, want % x", got, want)
	}
}

func TestDataWireVectorNoHeader(t *testing.T) {
	p := DataPacketOn(5, DataPacket{SequenceNumber: 1, Flags: 6, Payload: []byte{5, 10}})
	got := encodeBytes(t, p)
	want := []byte{
		0, 5, 0,
		0, 0, 0, 0, 0, 0, 0, 1,
		6,
		5, 10,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Data encoding = % x, want % x", got, want)
	}
}

func TestDataWireVectorWithHeader(t *testing.T) {
	p := DataPacketOn(5, DataPacket{
		SequenceNumber: 1,
		Flags:          7,
		Header:         &FrameHeader{LastReliableFrame: 5, Length: 5},
		Payload:        []byte{5, 10},
	})
	got := encodeBytes(t, p)
	want := []byte{
		0, 5, 0,
		0, 0, 0, 0, 0, 0, 0, 1,
		7,
		0, 0, 0, 0, 0, 0, 0, 5,
		0, 0, 0, 5,
		5, 10,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Data encoding = % x, want % x", got, want)
	}
}

func TestAckWireVector(t *testing.T) {
	got := encodeBytes(t, AckPacket(5, 1))
	want := []byte{
		0, 5, 1,
		0, 0, 0, 0, 0, 0, 0, 1,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Ack encoding = % x, want % x", got, want)
	}
}

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	b := encodeBytes(t, p)
	r := NewReader(b)
	got, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Kind != KindData && r.Available() != 0 {
		t.Fatalf("decode left %d trailing bytes", r.Available())
	}
	return got
}

func TestRoundTripAllVariants(t *testing.T) {
	id := uuid.New()
	endpoint := uuid.New()
	probe := uuid.New()

	cases := []Packet{
		StatusRequestPacket(StatusRequest{Kind: FastnetQuery}),
		StatusRequestPacket(StatusRequest{Kind: VersionQuery}),
		StatusRequestPacket(StatusRequest{Kind: ExtensionQuery, ExtensionName: "voice"}),
		StatusResponsePacket(StatusResponse{Kind: FastnetResponse, Listening: true}),
		StatusResponsePacket(StatusResponse{Kind: VersionResponse, Version: "1.0"}),
		StatusResponsePacket(StatusResponse{Kind: ExtensionResponse, ExtensionName: "voice", ExtensionSupported: false}),
		ConnectPacket(id),
		ConnectedPacket(id),
		AbortedPacket("server shutting down"),
		HeartbeatPacket(Heartbeat{Counter: 1, Sent: 2, Received: 3}),
		EchoPacket(Echo{Endpoint: endpoint, UUID: probe}),
		DataPacketOn(5, DataPacket{SequenceNumber: 1, Flags: 6, Payload: []byte{5, 10}}),
		DataPacketOn(5, DataPacket{SequenceNumber: 1, Flags: 7, Header: &FrameHeader{LastReliableFrame: 5, Length: 5}, Payload: []byte{5, 10}}),
		DataPacketOn(0, DataPacket{SequenceNumber: 0, Flags: 0, Payload: nil}),
		AckPacket(5, 1),
	}

	for _, p := range cases {
		got := roundTrip(t, p)
		if got.Kind != p.Kind {
			t.Errorf("kind mismatch: got %v want %v", got.Kind, p.Kind)
		}
	}
}

func TestDecodeRejectsUnknownControlSubtype(t *testing.T) {
	b := []byte{0xFF, 0xFF, 0x7F}
	_, err := Decode(NewReader(b))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Decode() = %v, want ErrInvalid", err)
	}
}

func TestDecodeRejectsReservedFlagBits(t *testing.T) {
	b := []byte{0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0xF8}
	_, err := Decode(NewReader(b))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Decode() = %v, want ErrInvalid", err)
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	b := []byte{0xFF, 0xFE, 0, 0}
	_, err := Decode(NewReader(b))
	if !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("Decode() = %v, want ErrUnexpectedEnd", err)
	}
}

func TestEncodeRejectsChannelAtEchoDiscriminator(t *testing.T) {
	p := DataPacketOn(0xFFFD, DataPacket{Payload: []byte("x")})
	w := NewWriter(MaxEncodedPacketSize)
	err := Encode(p, w)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Encode() = %v, want ErrInvalid", err)
	}
}

func TestEncodeRejectsOverlongPayload(t *testing.T) {
	p := DataPacketOn(0, DataPacket{Payload: make([]byte, MaxEncodedPacketSize)})
	w := NewWriter(MaxEncodedPacketSize)
	if err := Encode(p, w); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Encode() = %v, want ErrOverflow", err)
	}
}
