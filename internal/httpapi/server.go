// Package httpapi exposes the health and stats endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"flatwatch/internal/dedup"
	"flatwatch/internal/scheduler"
)

const version = "1.0.0"

// StatusReporter yields the scheduler's per-source state.
type StatusReporter interface {
	Snapshot() []scheduler.SourceStatus
}

// Server serves /health and /stats.
type Server struct {
	store    dedup.Store
	reporter StatusReporter
	srv      *http.Server
}

// New builds the server listening on addr.
func New(addr string, store dedup.Store, reporter StatusReporter) *Server {
	s := &Server{store: store, reporter: reporter}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("[httpapi] Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[httpapi] Serve error: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "flatwatch",
		"version": version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		log.Printf("[httpapi] Stats query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"store":   stats,
		"sources": s.reporter.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] Encode error: %v", err)
	}
}
