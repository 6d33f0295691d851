package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/camlorn/fastnet-go/pkg/logging"
	"github.com/camlorn/fastnet-go/pkg/wire"
	"github.com/camlorn/fastnet-go/source/protocol"
	"github.com/camlorn/fastnet-go/source/server"
)

const version = "0.1.0"

func main() {
	logging.Banner("fastnet demo engine", version)

	bindAddr := flag.StringP("bind", "b", "0.0.0.0:7777", "local address to bind")
	dialAddr := flag.StringP("dial", "d", "", "optional peer address to connect to on startup")
	timeoutMS := flag.Uint64P("timeout", "t", uint64(server.DefaultConnectionTimeout/time.Millisecond), "liveness timeout in milliseconds")
	flag.Parse()

	logging.Section("Configuration")
	logging.Info("bind address: %s", *bindAddr)
	logging.Info("liveness timeout: %dms", *timeoutMS)
	if *dialAddr != "" {
		logging.Info("dialing peer on startup: %s", *dialAddr)
	}

	handler := &demoHandler{}
	engine, err := server.NewEngine(*bindAddr, handler)
	if err != nil {
		logging.Fatal("failed to start engine: %v", err)
	}
	engine.ConfigureTimeout(*timeoutMS)
	logging.Success("engine listening on %s", *bindAddr)

	if *dialAddr != "" {
		peer, err := net.ResolveUDPAddr("udp", *dialAddr)
		if err != nil {
			logging.Fatal("failed to resolve dial address: %v", err)
		}
		engine.Connect(peer, 1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logging.Warn("received signal: %v", sig)
	logging.Info("shutting down gracefully...")
	engine.Stop()
	time.Sleep(100 * time.Millisecond)
	logging.Success("engine stopped")
}

// demoHandler logs every callback the engine invokes; a real embedder would
// plug its own application logic in here instead.
type demoHandler struct{}

func (demoHandler) Connected(id uuid.UUID, requestID *uint64) {
	logging.Success("connected: %s", id)
}

func (demoHandler) Disconnected(id uuid.UUID, requestID *uint64) {
	logging.Warn("disconnected: %s", id)
}

func (demoHandler) RequestFailed(requestID uint64, err protocol.Error) {
	logging.Error("request %d failed: %v", requestID, err)
}

func (demoHandler) Deliver(id uuid.UUID, channel uint16, payload []byte, flags byte, header *wire.FrameHeader) {
	logging.Debug("deliver: conn=%s chan=%d bytes=%d flags=0x%02x", id, channel, len(payload), flags)
}
