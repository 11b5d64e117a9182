// Package web serves the caseload JSON API and the schedule calendar feed.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"caseload/internal/config"
	"caseload/internal/dates"
	appLog "caseload/internal/log"
	"caseload/internal/notes"
	"caseload/internal/status"
	"caseload/internal/store"
)

// Pinger reports backend health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers call.
type Deps struct {
	Notes  *notes.Service
	Status *status.Service
	// DB is optional; when set /health fails while it is unreachable.
	DB Pinger
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	loc    *time.Location
	notes  *notes.Service
	status *status.Service
	db     Pinger
	mux    *http.ServeMux
	now    func() time.Time

	// Rendered calendar feeds keyed by school, horizon and first day.
	feedMu    sync.RWMutex
	feedCache map[string]feedCacheEntry
}

type feedCacheEntry struct {
	body      string
	updatedAt time.Time
}

// NewServer constructs a Server with routes registered.
func NewServer(cfg *config.Config, deps Deps) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		loc = time.Local
	}
	s := &Server{
		cfg:       cfg,
		loc:       loc,
		notes:     deps.Notes,
		status:    deps.Status,
		db:        deps.DB,
		mux:       http.NewServeMux(),
		now:       time.Now,
		feedCache: make(map[string]feedCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with basic auth when enabled.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Caseload", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/notes", s.handleNotes)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleScheduleFeed)

	s.mux.HandleFunc("GET /api/due-items", s.handleListDueItems)
	s.mux.HandleFunc("GET /api/due-items/{id}", s.handleGetDueItem)
	s.mux.HandleFunc("POST /api/due-items/{id}/complete", s.handleCompleteDueItem)
	s.mux.HandleFunc("POST /api/due-items/{id}/uncomplete", s.handleUncompleteDueItem)

	s.mux.HandleFunc("GET /api/progress-reports", s.handleListProgressReports)
	s.mux.HandleFunc("GET /api/progress-reports/{id}", s.handleGetProgressReport)
	s.mux.HandleFunc("POST /api/progress-reports/{id}/complete", s.handleCompleteProgressReport)
	s.mux.HandleFunc("POST /api/progress-reports/{id}/uncomplete", s.handleUncompleteProgressReport)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			appLog.Error("health: database unreachable", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current calendar date in the configured zone.
func (s *Server) today() time.Time {
	return dates.StartOfDay(s.now().In(s.loc))
}

// dateParam parses a YYYY-MM-DD query value, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	return dates.ParseLocalDateIn(v, s.loc)
}

// writeServiceError maps domain errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var perr *dates.ParseError
	switch {
	case errors.As(err, &perr):
		writeError(w, http.StatusBadRequest, perr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseBool accepts 1/0/true/false; anything else reports ok=false.
func parseBool(s string) (v, ok bool) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
