package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind discriminates the Packet tagged union: a single switch dispatches
// the fixed set of variants rather than per-variant dynamic dispatch, so
// Packet is one flat struct with a Kind tag instead of an interface
// implemented nine different ways.
type Kind uint8

const (
	KindStatusRequest Kind = iota
	KindStatusResponse
	KindConnect
	KindConnected
	KindAborted
	KindHeartbeat
	KindEcho
	KindData
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindStatusRequest:
		return "StatusRequest"
	case KindStatusResponse:
		return "StatusResponse"
	case KindConnect:
		return "Connect"
	case KindConnected:
		return "Connected"
	case KindAborted:
		return "Aborted"
	case KindHeartbeat:
		return "Heartbeat"
	case KindEcho:
		return "Echo"
	case KindData:
		return "Data"
	case KindAck:
		return "Ack"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Control packet discriminator: two bytes 0xFF 0xFF followed by a subtype
// byte.
const controlDiscriminator = 0xFFFF

// Two-byte discriminators sharing the 0xFF high byte with Control.
const (
	heartbeatDiscriminator = 0xFFFE
	echoDiscriminator      = 0xFFFD
)

// MaxChannel is the highest channel number usable for Data/Ack packets.
// 0xFFFE and 0xFFFF are reserved for Heartbeat/Control; 0xFFFD is
// additionally unusable in practice because it is also the Echo
// discriminator once read as the same big-endian uint16 prefix — see
// DESIGN.md's "Data/Ack channel range" decision.
const MaxChannel = 0xFFFC

// Control packet subtypes.
const (
	subtypeStatusRequest  = 0x00
	subtypeStatusResponse = 0x01
	subtypeConnect        = 0x02
	subtypeConnected      = 0x03
	subtypeAborted        = 0x04
)

// Data/Ack specifier byte, following the u16 channel.
const (
	specifierData = 0x00
	specifierAck  = 0x01
)

// StatusRequestKind discriminates the StatusRequest variants.
type StatusRequestKind uint8

const (
	FastnetQuery StatusRequestKind = iota
	VersionQuery
	ExtensionQuery
)

// StatusRequest is one of {FastnetQuery, VersionQuery, ExtensionQuery(name)}.
type StatusRequest struct {
	Kind          StatusRequestKind
	ExtensionName string // valid iff Kind == ExtensionQuery
}

// StatusResponseKind discriminates the StatusResponse variants.
type StatusResponseKind uint8

const (
	FastnetResponse StatusResponseKind = iota
	VersionResponse
	ExtensionResponse
)

// StatusResponse is one of {FastnetResponse(bool), VersionResponse(string),
// ExtensionResponse(name, bool)}.
type StatusResponse struct {
	Kind               StatusResponseKind
	Listening          bool   // valid iff Kind == FastnetResponse
	Version            string // valid iff Kind == VersionResponse
	ExtensionName      string // valid iff Kind == ExtensionResponse
	ExtensionSupported bool   // valid iff Kind == ExtensionResponse
}

// Heartbeat is the periodic keepalive payload.
type Heartbeat struct {
	Counter  uint64
	Sent     uint64
	Received uint64
}

// Echo is the RTT probe payload.
type Echo struct {
	Endpoint uuid.UUID
	UUID     uuid.UUID
}

// FrameHeader is present on a Data packet iff its flags bit 2 is set.
type FrameHeader struct {
	LastReliableFrame uint64
	Length            uint32
}

// Data flag bits.
const (
	FlagReliable       byte = 1 << 0
	FlagStartOfFrame   byte = 1 << 1
	FlagHasFrameHeader byte = 1 << 2
	flagReservedMask   byte = ^(FlagReliable | FlagStartOfFrame | FlagHasFrameHeader)
)

// DataPacket is the payload carried on a channel.
type DataPacket struct {
	SequenceNumber uint64
	Flags          byte
	Header         *FrameHeader // non-nil iff Flags&FlagHasFrameHeader != 0
	Payload        []byte
}

// Reliable reports whether this Data packet requires an Ack.
func (d DataPacket) Reliable() bool {
	return d.Flags&FlagReliable != 0
}

// Data is payload on a channel; Channel must be <= MaxChannel.
type Data struct {
	Channel uint16
	Packet  DataPacket
}

// Ack acknowledges a reliable Data packet.
type Ack struct {
	Channel        uint16
	SequenceNumber uint64
}

// Packet is the full tagged union of every value that crosses the wire.
// Only the field matching Kind is meaningful.
type Packet struct {
	Kind Kind

	StatusRequest  StatusRequest
	StatusResponse StatusResponse
	UUID           uuid.UUID // Connect / Connected
	AbortedMessage string
	Heartbeat      Heartbeat
	Echo           Echo
	Data           Data
	Ack            Ack
}

// StatusRequestPacket builds a StatusRequest Packet.
func StatusRequestPacket(req StatusRequest) Packet {
	return Packet{Kind: KindStatusRequest, StatusRequest: req}
}

// StatusResponsePacket builds a StatusResponse Packet.
func StatusResponsePacket(resp StatusResponse) Packet {
	return Packet{Kind: KindStatusResponse, StatusResponse: resp}
}

// ConnectPacket builds a Connect(id) Packet.
func ConnectPacket(id uuid.UUID) Packet {
	return Packet{Kind: KindConnect, UUID: id}
}

// ConnectedPacket builds a Connected(id) Packet.
func ConnectedPacket(id uuid.UUID) Packet {
	return Packet{Kind: KindConnected, UUID: id}
}

// AbortedPacket builds an Aborted(message) Packet.
func AbortedPacket(message string) Packet {
	return Packet{Kind: KindAborted, AbortedMessage: message}
}

// HeartbeatPacket builds a Heartbeat Packet.
func HeartbeatPacket(h Heartbeat) Packet {
	return Packet{Kind: KindHeartbeat, Heartbeat: h}
}

// EchoPacket builds an Echo Packet.
func EchoPacket(e Echo) Packet {
	return Packet{Kind: KindEcho, Echo: e}
}

// DataPacketOn builds a Data Packet on the given channel.
func DataPacketOn(channel uint16, p DataPacket) Packet {
	return Packet{Kind: KindData, Data: Data{Channel: channel, Packet: p}}
}

// AckPacket builds an Ack Packet.
func AckPacket(channel uint16, seq uint64) Packet {
	return Packet{Kind: KindAck, Ack: Ack{Channel: channel, SequenceNumber: seq}}
}

// Encode writes p's wire representation into w.
func Encode(p Packet, w *Writer) error {
	switch p.Kind {
	case KindStatusRequest:
		if err := w.WriteU16(controlDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU8(subtypeStatusRequest); err != nil {
			return err
		}
		return encodeStatusRequest(p.StatusRequest, w)
	case KindStatusResponse:
		if err := w.WriteU16(controlDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU8(subtypeStatusResponse); err != nil {
			return err
		}
		return encodeStatusResponse(p.StatusResponse, w)
	case KindConnect:
		if err := w.WriteU16(controlDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU8(subtypeConnect); err != nil {
			return err
		}
		return w.WriteUUID(p.UUID)
	case KindConnected:
		if err := w.WriteU16(controlDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU8(subtypeConnected); err != nil {
			return err
		}
		return w.WriteUUID(p.UUID)
	case KindAborted:
		if err := w.WriteU16(controlDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU8(subtypeAborted); err != nil {
			return err
		}
		return w.WriteString(p.AbortedMessage)
	case KindHeartbeat:
		if err := w.WriteU16(heartbeatDiscriminator); err != nil {
			return err
		}
		if err := w.WriteU64(p.Heartbeat.Counter); err != nil {
			return err
		}
		if err := w.WriteU64(p.Heartbeat.Sent); err != nil {
			return err
		}
		return w.WriteU64(p.Heartbeat.Received)
	case KindEcho:
		if err := w.WriteU16(echoDiscriminator); err != nil {
			return err
		}
		if err := w.WriteUUID(p.Echo.Endpoint); err != nil {
			return err
		}
		return w.WriteUUID(p.Echo.UUID)
	case KindData:
		return encodeData(p.Data, w)
	case KindAck:
		return encodeAck(p.Ack, w)
	default:
		return fmt.Errorf("%w: unknown packet kind %d", ErrInvalid, p.Kind)
	}
}

func encodeStatusRequest(req StatusRequest, w *Writer) error {
	switch req.Kind {
	case FastnetQuery:
		return w.WriteU8(0)
	case VersionQuery:
		return w.WriteU8(1)
	case ExtensionQuery:
		if err := w.WriteU8(2); err != nil {
			return err
		}
		return w.WriteString(req.ExtensionName)
	default:
		return fmt.Errorf("%w: unknown status request kind %d", ErrInvalid, req.Kind)
	}
}

func encodeStatusResponse(resp StatusResponse, w *Writer) error {
	switch resp.Kind {
	case FastnetResponse:
		if err := w.WriteU8(0); err != nil {
			return err
		}
		return w.WriteBool(resp.Listening)
	case VersionResponse:
		if err := w.WriteU8(1); err != nil {
			return err
		}
		return w.WriteString(resp.Version)
	case ExtensionResponse:
		if err := w.WriteU8(2); err != nil {
			return err
		}
		if err := w.WriteString(resp.ExtensionName); err != nil {
			return err
		}
		return w.WriteBool(resp.ExtensionSupported)
	default:
		return fmt.Errorf("%w: unknown status response kind %d", ErrInvalid, resp.Kind)
	}
}

func encodeData(d Data, w *Writer) error {
	if d.Channel > MaxChannel {
		return fmt.Errorf("%w: channel %d exceeds MaxChannel", ErrInvalid, d.Channel)
	}
	if d.Packet.Flags&flagReservedMask != 0 {
		return fmt.Errorf("%w: reserved flag bits set", ErrInvalid)
	}
	hasHeader := d.Packet.Flags&FlagHasFrameHeader != 0
	if hasHeader != (d.Packet.Header != nil) {
		return fmt.Errorf("%w: FlagHasFrameHeader does not match Header presence", ErrInvalid)
	}
	if err := w.WriteU16(d.Channel); err != nil {
		return err
	}
	if err := w.WriteU8(specifierData); err != nil {
		return err
	}
	if err := w.WriteU64(d.Packet.SequenceNumber); err != nil {
		return err
	}
	if err := w.WriteU8(d.Packet.Flags); err != nil {
		return err
	}
	if hasHeader {
		if err := w.WriteU64(d.Packet.Header.LastReliableFrame); err != nil {
			return err
		}
		if err := w.WriteU32(d.Packet.Header.Length); err != nil {
			return err
		}
	}
	return w.WriteBytes(d.Packet.Payload)
}

func encodeAck(a Ack, w *Writer) error {
	if a.Channel > MaxChannel {
		return fmt.Errorf("%w: channel %d exceeds MaxChannel", ErrInvalid, a.Channel)
	}
	if err := w.WriteU16(a.Channel); err != nil {
		return err
	}
	if err := w.WriteU8(specifierAck); err != nil {
		return err
	}
	return w.WriteU64(a.SequenceNumber)
}

// Decode reads a Packet from r. A successful decode consumes exactly the
// bytes Encode produced for that value — callers that expect a single
// Packet per buffer should check r.Available() == 0 afterward (Data
// packets are the exception: they consume everything remaining by design).
func Decode(r *Reader) (Packet, error) {
	prefix, err := r.ReadU16()
	if err != nil {
		return Packet{}, err
	}
	switch prefix {
	case controlDiscriminator:
		return decodeControl(r)
	case heartbeatDiscriminator:
		return decodeHeartbeat(r)
	case echoDiscriminator:
		return decodeEcho(r)
	default:
		return decodeChannelPacket(prefix, r)
	}
}

func decodeControl(r *Reader) (Packet, error) {
	subtype, err := r.ReadU8()
	if err != nil {
		return Packet{}, err
	}
	switch subtype {
	case subtypeStatusRequest:
		req, err := decodeStatusRequest(r)
		if err != nil {
			return Packet{}, err
		}
		return StatusRequestPacket(req), nil
	case subtypeStatusResponse:
		resp, err := decodeStatusResponse(r)
		if err != nil {
			return Packet{}, err
		}
		return StatusResponsePacket(resp), nil
	case subtypeConnect:
		id, err := r.ReadUUID()
		if err != nil {
			return Packet{}, err
		}
		return ConnectPacket(id), nil
	case subtypeConnected:
		id, err := r.ReadUUID()
		if err != nil {
			return Packet{}, err
		}
		return ConnectedPacket(id), nil
	case subtypeAborted:
		msg, err := r.ReadString()
		if err != nil {
			return Packet{}, err
		}
		return AbortedPacket(msg), nil
	default:
		return Packet{}, fmt.Errorf("%w: unknown control subtype 0x%02x", ErrInvalid, subtype)
	}
}

func decodeStatusRequest(r *Reader) (StatusRequest, error) {
	kind, err := r.ReadU8()
	if err != nil {
		return StatusRequest{}, err
	}
	switch kind {
	case 0:
		return StatusRequest{Kind: FastnetQuery}, nil
	case 1:
		return StatusRequest{Kind: VersionQuery}, nil
	case 2:
		name, err := r.ReadString()
		if err != nil {
			return StatusRequest{}, err
		}
		return StatusRequest{Kind: ExtensionQuery, ExtensionName: name}, nil
	default:
		return StatusRequest{}, fmt.Errorf("%w: unknown status request subtype 0x%02x", ErrInvalid, kind)
	}
}

func decodeStatusResponse(r *Reader) (StatusResponse, error) {
	kind, err := r.ReadU8()
	if err != nil {
		return StatusResponse{}, err
	}
	switch kind {
	case 0:
		listening, err := r.ReadBool()
		if err != nil {
			return StatusResponse{}, err
		}
		return StatusResponse{Kind: FastnetResponse, Listening: listening}, nil
	case 1:
		v, err := r.ReadString()
		if err != nil {
			return StatusResponse{}, err
		}
		return StatusResponse{Kind: VersionResponse, Version: v}, nil
	case 2:
		name, err := r.ReadString()
		if err != nil {
			return StatusResponse{}, err
		}
		supported, err := r.ReadBool()
		if err != nil {
			return StatusResponse{}, err
		}
		return StatusResponse{Kind: ExtensionResponse, ExtensionName: name, ExtensionSupported: supported}, nil
	default:
		return StatusResponse{}, fmt.Errorf("%w: unknown status response subtype 0x%02x", ErrInvalid, kind)
	}
}

func decodeHeartbeat(r *Reader) (Packet, error) {
	counter, err := r.ReadU64()
	if err != nil {
		return Packet{}, err
	}
	sent, err := r.ReadU64()
	if err != nil {
		return Packet{}, err
	}
	received, err := r.ReadU64()
	if err != nil {
		return Packet{}, err
	}
	return HeartbeatPacket(Heartbeat{Counter: counter, Sent: sent, Received: received}), nil
}

func decodeEcho(r *Reader) (Packet, error) {
	endpoint, err := r.ReadUUID()
	if err != nil {
		return Packet{}, err
	}
	id, err := r.ReadUUID()
	if err != nil {
		return Packet{}, err
	}
	return EchoPacket(Echo{Endpoint: endpoint, UUID: id}), nil
}

func decodeChannelPacket(channel uint16, r *Reader) (Packet, error) {
	specifier, err := r.ReadU8()
	if err != nil {
		return Packet{}, err
	}
	switch specifier {
	case specifierData:
		seq, err := r.ReadU64()
		if err != nil {
			return Packet{}, err
		}
		flags, err := r.ReadU8()
		if err != nil {
			return Packet{}, err
		}
		if flags&flagReservedMask != 0 {
			return Packet{}, fmt.Errorf("%w: reserved flag bits set", ErrInvalid)
		}
		var header *FrameHeader
		if flags&FlagHasFrameHeader != 0 {
			last, err := r.ReadU64()
			if err != nil {
				return Packet{}, err
			}
			length, err := r.ReadU32()
			if err != nil {
				return Packet{}, err
			}
			header = &FrameHeader{LastReliableFrame: last, Length: length}
		}
		payload := r.ReadRemaining()
		return DataPacketOn(channel, DataPacket{
			SequenceNumber: seq,
			Flags:          flags,
			Header:         header,
			Payload:        payload,
		}), nil
	case specifierAck:
		seq, err := r.ReadU64()
		if err != nil {
			return Packet{}, err
		}
		return AckPacket(channel, seq), nil
	default:
		return Packet{}, fmt.Errorf("%w: unknown channel packet specifier 0x%02x", ErrInvalid, specifier)
	}
}
