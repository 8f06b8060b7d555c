package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the telemetry server's listen address and CORS policy.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server runs the HTTP surface: health check, Prometheus scrape endpoint,
// and the telemetry WebSocket feed.
type Server struct {
	cfg    Config
	hub    *Hub
	http   *http.Server
	logger *slog.Logger
}

// NewServer builds a telemetry server bound to cfg.Port.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	s := &Server{cfg: cfg, hub: hub, logger: logger.With("component", "telemetry-server")}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Hub exposes the broadcast hub so the coordinator can publish its global
// snapshots.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub loop and blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("telemetry server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("telemetry server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), s.cfg.AllowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	NewClient(s.hub, conn)
}

func isOriginAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}
