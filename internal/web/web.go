package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/observability"
	"eventcal/internal/pipeline"
)

// Server serves the generated calendar files plus health, status and metrics.
type Server struct {
	cfg        *config.Config
	metrics    *observability.Metrics
	mux        *http.ServeMux
	httpServer *http.Server

	// files maps "<file>.ics" to the configured calendar.
	files map[string]config.CalendarConfig

	statusMu sync.RWMutex
	status   *runStatus
}

// runStatus is the last pipeline result as seen by /api/status.
type runStatus struct {
	result   pipeline.Result
	err      error
	finished time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		metrics: metrics,
		mux:     http.NewServeMux(),
		files:   make(map[string]config.CalendarConfig, len(cfg.Calendars)),
	}
	for _, c := range cfg.Calendars {
		s.files[c.File+ics.FileExt] = c
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
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
			w.Header().Set("WWW-Authenticate", `Basic realm="eventcal", charset="UTF-8"`)
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

// Run listens on cfg.Listen until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// RecordRun stores the outcome of a pipeline run for /api/status.
func (s *Server) RecordRun(res pipeline.Result, err error, finished time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = &runStatus{result: res, err: err, finished: finished}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /calendars/{file}", s.handleCalendar)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves one configured calendar file from the output
// directory. Names outside the configuration are 404 so the handler never
// exposes other files in that directory.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if _, ok := s.files[name]; !ok || strings.ContainsAny(name, `/\`) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.cfg.OutputDir, name))
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	OK        bool             `json:"ok"`
	LastRun   *time.Time       `json:"last_run,omitempty"`
	Error     string           `json:"error,omitempty"`
	Fetched   int              `json:"events_fetched"`
	Duration  string           `json:"duration,omitempty"`
	Calendars []calendarStatus `json:"calendars"`
}

type calendarStatus struct {
	File    string `json:"file"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Entries int    `json:"entries"`
	Bytes   int    `json:"bytes"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// handleStatus reports the last run. Before the first run every calendar is
// listed with zero counts and ok=false.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()

	byFile := map[string]pipeline.CalendarResult{}
	resp := statusResponse{Calendars: make([]calendarStatus, 0, len(s.cfg.Calendars))}
	if st != nil {
		finished := st.finished
		resp.LastRun = &finished
		resp.Fetched = st.result.Fetched
		resp.Duration = st.result.Duration.String()
		resp.OK = st.err == nil && st.result.Err() == nil
		if st.err != nil {
			resp.Error = st.err.Error()
		}
		for _, c := range st.result.Calendars {
			byFile[c.File] = c
		}
	}

	for _, c := range s.cfg.Calendars {
		cs := calendarStatus{File: c.File, Name: c.Name, URL: "/calendars/" + c.File + ics.FileExt}
		if r, ok := byFile[c.File]; ok {
			cs.Entries = r.Entries
			cs.Bytes = r.Bytes
			cs.Skipped = r.Skipped
			if r.Err != nil {
				cs.Error = r.Err.Error()
			}
		}
		resp.Calendars = append(resp.Calendars, cs)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
