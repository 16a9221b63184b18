package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/uwbtools/dwmctl/internal/config"
	"github.com/uwbtools/dwmctl/internal/logging"
	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// mDNS service type the gateway announces itself under
const ServiceType = "_dwmctl._tcp"

// Config holds the gateway configuration
type Config struct {
	Listen   string        // listen address, default ":8734"
	Interval time.Duration // tag polling period, default 1s
	Announce bool          // register the service over mDNS
	Instance string        // mDNS instance name, default "dwmctl"
	LogLevel string
}

// Tag is one module the gateway polls for location data
type Tag struct {
	Address transport.Address
	Label   string
}

// LocationSource reads a position fix from a module. *deviceconfig.Client
// implements it; tests substitute a fake.
type LocationSource interface {
	Location(ctx context.Context, addr transport.Address) (*protocol.LocationData, error)
}

// Update is one position fix as published to subscribers
type Update struct {
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Quality   uint8     `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// Server polls tags over BLE and streams their positions to WebSocket
// subscribers. Polling is sequential: the BLE radio serves one connection at
// a time, so concurrent polls would only fight each other.
type Server struct {
	config *Config
	source LocationSource
	tags   []Tag
	hub    *Hub

	mu     sync.Mutex
	latest map[string]Update

	httpServer *http.Server
	listener   net.Listener
	mdns       *zeroconf.Server
}

// New creates a gateway serving position fixes for the given tags
func New(cfg *Config, source LocationSource, tags []Tag) (*Server, error) {
	if cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("no tags to poll")
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8734"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Instance == "" {
		cfg.Instance = "dwmctl"
	}

	return &Server{
		config: cfg,
		source: source,
		tags:   tags,
		hub:    NewHub(),
		latest: make(map[string]Update),
	}, nil
}

// TagsFromPlan extracts the pollable tags from a network plan
func TagsFromPlan(plan *config.Plan) ([]Tag, error) {
	var tags []Tag
	for _, network := range plan.Networks {
		for _, node := range network.Nodes {
			if node.Type != "tag" {
				continue
			}
			addr, err := transport.ParseAddress(node.Address)
			if err != nil {
				return nil, fmt.Errorf("tag %q: %w", node.Address, err)
			}
			tags = append(tags, Tag{Address: addr, Label: node.Label})
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("plan defines no tags")
	}
	return tags, nil
}

// Start starts the gateway and blocks until a shutdown signal or error
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = listener

	logging.Info("Starting location gateway",
		zap.String("addr", listener.Addr().String()),
		zap.Int("tags", len(s.tags)),
		zap.Duration("interval", s.config.Interval),
	)

	if s.config.Announce {
		if err := s.announce(); err != nil {
			// The gateway is still reachable by address, so keep going.
			logging.Warn("mDNS registration failed", zap.Error(err))
		}
	}

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()
	go s.pollLoop(pollCtx)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping gateway...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler returns the gateway's HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/positions", s.handlePositions)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// announce registers the gateway on mDNS so dashboards can find it without
// knowing the address
func (s *Server) announce() error {
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	txt := []string{fmt.Sprintf("tags=%d", len(s.tags))}
	mdns, err := zeroconf.Register(s.config.Instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return err
	}
	s.mdns = mdns

	logging.Info("Registered mDNS service",
		zap.String("instance", s.config.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return nil
}

// pollLoop reads every tag's position once per interval and publishes the
// fixes. A tag that cannot be reached is skipped until the next round.
func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce polls every tag sequentially
func (s *Server) pollOnce(ctx context.Context) {
	for _, tag := range s.tags {
		if ctx.Err() != nil {
			return
		}

		pollCtx, cancel := context.WithTimeout(ctx, transport.DefaultConnectTimeout)
		loc, err := s.source.Location(pollCtx, tag.Address)
		cancel()
		if err != nil {
			logging.Warn("Tag poll failed",
				zap.String("address", tag.Address.String()),
				zap.Error(err),
			)
			continue
		}

		s.publish(tag, loc)
	}
}

// publish stores a fix as the tag's latest position and broadcasts it
func (s *Server) publish(tag Tag, loc *protocol.LocationData) {
	update := Update{
		Address:   tag.Address.String(),
		Label:     tag.Label,
		X:         loc.X,
		Y:         loc.Y,
		Z:         loc.Z,
		Quality:   loc.Quality,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	s.latest[update.Address] = update
	s.mu.Unlock()

	data, err := marshalUpdate(update)
	if err != nil {
		logging.Error("Failed to marshal position update", zap.Error(err))
		return
	}
	s.hub.Broadcast(data)
}

func marshalUpdate(u Update) ([]byte, error) {
	return json.Marshal(u)
}

// Snapshot returns the latest known position of every tag, ordered by address
func (s *Server) Snapshot() []Update {
	s.mu.Lock()
	out := make([]Update, 0, len(s.latest))
	for _, u := range s.latest {
		out = append(out, u)
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Address < out[b].Address })
	return out
}

// handlePositions serves the latest positions as a JSON array
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Snapshot()); err != nil {
		logging.Error("Failed to encode positions", zap.Error(err))
	}
}

// Shutdown gracefully shuts down the gateway
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down gateway...")

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	s.hub.Close()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	logging.Sync()
	return nil
}
