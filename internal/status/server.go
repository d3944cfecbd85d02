// Package status serves health and diagnostics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oddsbridge/engine/internal/metrics"
)

// Server exposes /health, /status and /unmapped.
type Server struct {
	tracker *metrics.MetricsTracker
	teams   *metrics.FirstSeen
	markets *metrics.FirstSeen
	router  chi.Router
	httpSrv *http.Server
}

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
}

// NewServer builds the router. teams and markets are the first-seen
// recorders for unknown team names and unmapped market codes.
func NewServer(opts Options, tracker *metrics.MetricsTracker, teams, markets *metrics.FirstSeen) *Server {
	s := &Server{
		tracker: tracker,
		teams:   teams,
		markets: markets,
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/unmapped", s.handleUnmapped)

	s.router = r
	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("status_server_started", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("status_server_shutdown_error", "error", err)
		return err
	}
	slog.Info("status_server_stopped")
	return nil
}

type healthResponse struct {
	Status        string `json:"status"`
	EventsCache   int    `json:"eventsCache"`
	WriteQueue    int    `json:"writeQueue"`
	UnmappedTeams int    `json:"unmappedTeams"`
	Feed          string `json:"feed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	events, _ := s.tracker.Gauge(metrics.GaugeEventsCache)
	queue, _ := s.tracker.Gauge(metrics.GaugeWriteQueue)

	unmapped := 0
	if s.teams != nil {
		unmapped = s.teams.Len()
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		EventsCache:   events,
		WriteQueue:    queue,
		UnmappedTeams: unmapped,
		Feed:          s.tracker.FeedStatus(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": int64(snap.Uptime.Seconds()),
		"metrics":        snap,
	})
}

func (s *Server) handleUnmapped(w http.ResponseWriter, r *http.Request) {
	resp := map[string][]metrics.FirstSeenEntry{
		"teams":   {},
		"markets": {},
	}
	if s.teams != nil {
		resp["teams"] = s.teams.Entries()
	}
	if s.markets != nil {
		resp["markets"] = s.markets.Entries()
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("status_encode_error", "error", err)
	}
}
