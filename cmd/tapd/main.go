// Command tapd runs a single TAP agent as a long-lived HTTP/WebSocket
// node. Its startup sequence and graceful-shutdown shape follow the
// teacher's main.go: load configuration, initialize a signer, open the
// store, build the RPC/node server, start a separate metrics listener,
// then block on an interrupt/SIGTERM signal and shut both servers down
// with a bounded timeout.
package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tap-rsvp/tap-go/pkg/agent"
	"github.com/tap-rsvp/tap-go/pkg/config"
	"github.com/tap-rsvp/tap-go/pkg/event"
	"github.com/tap-rsvp/tap-go/pkg/keys"
	"github.com/tap-rsvp/tap-go/pkg/node"
	"github.com/tap-rsvp/tap-go/pkg/store"
	"github.com/tap-rsvp/tap-go/pkg/tlog"
)

func main() {
	logger := tlog.New()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	seed, err := loadOrCreateSeed(cfg.StorageRoot)
	if err != nil {
		logger.Error("failed to load identity seed", "error", err)
		os.Exit(1)
	}

	// self's own Sender is left nil: the node pipeline delivers every
	// outbound message itself (node.HTTPSender, below), never through
	// Agent.SendMessage, so self never needs its own transport.
	self, err := agent.NewFromSeed(seed, nil)
	if err != nil {
		logger.Error("failed to initialize agent identity", "error", err)
		os.Exit(1)
	}
	logger.Info("agent identity initialized", "did", self.DID)

	st, err := store.Open(cfg.DB, cfg.StorageRoot, self.DID)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bus := event.NewBus()
	self.Bus = bus

	registry := node.NewAgentRegistry(0)
	metrics := node.NewMetrics()

	incoming := &node.Composite{Stages: []node.Processor{
		&node.Logging{Log: logger},
		&node.Validation{Bus: bus, AgentDID: self.DID},
		&node.TrustPing{AgentDID: self.DID},
	}}
	outgoing := &node.Composite{Stages: []node.Processor{&node.Logging{Log: logger}}}
	router := &node.CompositeRouter{Routers: []node.Router{
		&node.Default{Registry: registry},
		&node.Http{Registry: registry, DIDs: self.Packer.DIDs},
	}}
	sender := node.NewHTTPSender(time.Duration(cfg.HTTPTimeout) * time.Second)

	n := node.New(registry, incoming, outgoing, router, sender, st, bus, logger)
	n.Metrics = metrics
	if err := n.RegisterAgent(self); err != nil {
		logger.Error("failed to register agent", "error", err)
		os.Exit(1)
	}

	ingressAddr := ":8000"
	ingressMux := http.NewServeMux()
	ingressMux.HandleFunc("/", n.ServeHTTP)
	ingressMux.HandleFunc("/ws", n.ServeWS)
	ingressServer := &http.Server{Addr: ingressAddr, Handler: ingressMux}

	metricsAddr := ":4242"
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	go func() {
		logger.Info("metrics listening", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("node listening", "addr", ingressAddr, "did", self.DID)
		if err := ingressServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("node server failure", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ingressServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down node server", "error", err)
	}

	logger.Info("shutdown complete")
}

// loadOrCreateSeed reads a persisted 32-byte Ed25519 seed from
// storageRoot, generating and saving one on first run so an agent's DID
// stays stable across restarts.
func loadOrCreateSeed(storageRoot string) ([]byte, error) {
	path := filepath.Join(storageRoot, "identity.seed")

	if data, err := os.ReadFile(path); err == nil {
		return hex.DecodeString(string(data))
	}

	signer, err := keys.NewEd25519Signer()
	if err != nil {
		return nil, err
	}
	seed := signer.Seed()

	if err := os.MkdirAll(storageRoot, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, err
	}
	return seed, nil
}
