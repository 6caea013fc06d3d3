package opstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config controls the status server. Enabled gates the whole surface off;
// operators who don't want it running pass Enabled: false.
type Config struct {
	Enabled      bool
	Port         int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// Server runs the HTTP status surface: /health, /api/snapshot, /events (SSE).
type Server struct {
	cfg      Config
	provider Provider
	hub      *hub
	server   *http.Server
	logger   *slog.Logger

	done chan struct{}
}

// New builds a status server for provider. Call Start to begin serving.
func New(cfg Config, provider Provider, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "opstatus")

	h := newHub(logger)

	s := &Server{
		cfg:      cfg,
		provider: provider,
		hub:      h,
		logger:   logger,
		done:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/events", s.handleEvents)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start runs the hub, the lifecycle-event and periodic-poll consumers, and
// blocks serving HTTP until Stop is called. Returns nil on a clean shutdown.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	go s.hub.run()
	go s.consumeLifecycleEvents()
	go s.pollStatus()

	s.logger.Info("status server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("opstatus server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	close(s.done)
	if !s.cfg.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// consumeLifecycleEvents republishes every orchestrator lifecycle event
// (started, stopped, emergency, disconnect) as an SSE frame.
func (s *Server) consumeLifecycleEvents() {
	for {
		select {
		case <-s.done:
			return
		case evt, ok := <-s.provider.Events():
			if !ok {
				return
			}
			s.hub.broadcastEvent(StreamEvent{
				Type:      evt.Type,
				Timestamp: evt.At,
				Reason:    evt.Reason,
			})
		}
	}
}

// pollStatus periodically pushes a status snapshot, the SSE analog of the
// orchestrator's own periodic P&L summary log line.
func (s *Server) pollStatus() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			snap := BuildSnapshot(s.provider.GetStatus())
			s.hub.broadcastEvent(StreamEvent{Type: "status", Timestamp: time.Now(), Data: snap})
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := BuildSnapshot(s.provider.GetStatus())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
