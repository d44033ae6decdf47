package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/observer"
	"github.com/exoforge/exo-orchestrator/internal/orchestrator"
)

// Journal reads recorded activity
type Journal interface {
	Recent(limit int) ([]journal.Event, error)
	RecentExecutions(limit int) ([]journal.ExecutionRecord, error)
}

// Leases lists lease state
type Leases interface {
	Active() ([]lease.Lease, error)
}

// Live provides a subscription to events as they are recorded
type Live interface {
	Subscribe() chan journal.Event
	Unsubscribe(ch chan journal.Event)
}

// Runs reports in-flight executions
type Runs interface {
	InFlight() []orchestrator.Running
}

// Server is the HTTP API server
type Server struct {
	journal Journal
	leases  Leases
	live    Live
	runs    Runs
	metrics *observer.Observer
	addr    string
	mux     *http.ServeMux
	srv     *http.Server
	sseHub  *SSEHub
	feed    *Feed
}

// NewServer creates a new API server
func NewServer(j Journal, leases Leases, live Live, runs Runs, metrics *observer.Observer, addr string) *Server {
	s := &Server{
		journal: j,
		leases:  leases,
		live:    live,
		runs:    runs,
		metrics: metrics,
		addr:    addr,
		mux:     http.NewServeMux(),
		sseHub:  NewSSEHub(),
		feed:    NewFeed(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/executions", s.listExecutionsHandler())
	s.mux.HandleFunc("/api/events", s.listEventsHandler())
	s.mux.HandleFunc("/api/leases", s.listLeasesHandler())
	s.mux.HandleFunc("/api/running", s.listRunningHandler())
	s.mux.HandleFunc("/api/events/stream", s.sseHandler())
	s.mux.HandleFunc("/ws", s.feed.Handle)
}

// Start starts the HTTP server and the live event fan-out. It blocks
// until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	go s.pump()
	s.srv = &http.Server{Addr: s.addr, Handler: s.mux}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler exposes the route mux, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// pump forwards recorded events to SSE and websocket clients
func (s *Server) pump() {
	if s.live == nil {
		return
	}
	ch := s.live.Subscribe()
	defer s.live.Unsubscribe(ch)

	for e := range ch {
		s.sseHub.Broadcast(SSEEvent{Type: e.Type, Data: e})
		s.feed.Broadcast(e)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
