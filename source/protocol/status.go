package protocol

import "github.com/camlorn/fastnet-go/pkg/wire"

// ProtocolVersion is the compile-time protocol version string exchanged
// during the handshake's VersionQuery/VersionResponse step.
const ProtocolVersion = "0.1"

// Translate answers a status query. It is a pure function: no connection
// state, no side effects.
func Translate(req wire.StatusRequest) wire.StatusResponse {
	switch req.Kind {
	case wire.FastnetQuery:
		return wire.StatusResponse{Kind: wire.FastnetResponse, Listening: true}
	case wire.VersionQuery:
		return wire.StatusResponse{Kind: wire.VersionResponse, Version: ProtocolVersion}
	case wire.ExtensionQuery:
		return wire.StatusResponse{
			Kind:               wire.ExtensionResponse,
			ExtensionName:      req.ExtensionName,
			ExtensionSupported: false,
		}
	default:
		// Unreachable for any StatusRequest produced by wire.Decode, which
		// only ever constructs one of the three known kinds.
		return wire.StatusResponse{Kind: wire.FastnetResponse, Listening: true}
	}
}
