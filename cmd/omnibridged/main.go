// Command omnibridged wires the configured sessions, the reactor, and the
// gRPC Session API into one running engine process (spec §4.10, §6).
//
// Grounded on the teacher's cmd/server/main.go and cmd/probe/main.go:
// numbered construct-and-wire steps logged via slog, a background
// goroutine serving the gRPC listener, log.Fatalf on unrecoverable
// startup failure.
package main

import (
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/omnibridge/engine/internal/config"
	"github.com/omnibridge/engine/internal/engine"
	"github.com/omnibridge/engine/internal/sessionapi"
	"github.com/omnibridge/engine/pb"
)

func main() {
	slog.Info("omnibridged: starting")

	masterPath := envOr("OMNIBRIDGE_CONFIG", "config.yaml")
	overridesPath := envOr("OMNIBRIDGE_OVERRIDES", "overrides.yaml")

	// 1. Load configuration.
	cfg, err := config.LoadConfig(masterPath)
	if err != nil {
		log.Fatalf("omnibridged: load config: %v", err)
	}
	cfgMgr, err := config.NewManager(masterPath, overridesPath)
	if err != nil {
		log.Fatalf("omnibridged: load config manager: %v", err)
	}

	// 2. Construct the engine (reactor, journal store, HA arbiter, session
	// store, metrics collectors) and every configured session.
	eng, err := engine.New(cfgMgr, cfg)
	if err != nil {
		log.Fatalf("omnibridged: construct engine: %v", err)
	}
	if err := eng.Initialize(); err != nil {
		log.Fatalf("omnibridged: initialize engine: %v", err)
	}
	slog.Info("omnibridged: engine initialized", "sessions", len(cfgMgr.Sessions()))

	// 3. Bring sessions up, connecting those marked enabled.
	if err := eng.StartActive(); err != nil {
		log.Fatalf("omnibridged: start engine: %v", err)
	}

	// 4. Stand up the Session API (spec §6 external interface). sessionapi.New
	// wraps the running engine in pb.SessionServiceServer's shape; pb has no
	// generated service descriptor yet (same unwired-mock-service state as
	// the teacher's own pb/mock.go), so the listener is opened and served
	// exactly as the teacher's cmd/probe/main.go does before registering a
	// service, ready for a .proto pipeline to bind sessionAPI to it.
	sessionAPI := sessionapi.New(eng)
	_ = sessionAPI
	grpcAddr := envOr("OMNIBRIDGE_GRPC_LISTEN", ":7777")
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("omnibridged: listen on %s: %v", grpcAddr, err)
	}
	grpcServer := grpc.NewServer()
	go func() {
		slog.Info("omnibridged: session API listening", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Warn("omnibridged: session API server stopped", "error", err)
		}
	}()

	// 5. Block until terminated, then drain.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("omnibridged: shutting down")
	grpcServer.GracefulStop()
	if err := eng.Stop(); err != nil {
		slog.Error("omnibridged: engine stop error", "error", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
