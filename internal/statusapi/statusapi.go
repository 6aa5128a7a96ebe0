// Package statusapi serves a read-only JSON view of one city's pipeline:
// table counts, the deduplicated projects, the delivery aggregation and the
// progress of the run in flight.
package statusapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/middleware"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/pipeline"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/project"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

const (
	defaultTop          = 10
	defaultProjectLimit = 100
	maxProjectLimit     = 5000
	requestTimeout      = 30 * time.Second
)

// Reader is the read side of a store.
type Reader interface {
	Status(ctx context.Context, topN int) (store.Status, error)
	Projects(ctx context.Context, limit int) ([]project.Project, error)
	Deliveries(ctx context.Context) ([]project.Delivery, error)
}

// ProgressFunc reports the progress of the current or last run.
type ProgressFunc func() pipeline.Progress

type server struct {
	reader   Reader
	progress ProgressFunc
}

// New builds the router. progress may be nil when no orchestrator runs in
// this process.
func New(reader Reader, progress ProgressFunc, origins []string) http.Handler {
	s := &server{reader: reader, progress: progress}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.CORS(origins))

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Get("/projects", s.projects)
	r.Get("/deliveries", s.deliveries)
	r.Get("/runs/current", s.currentRun)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam reads a positive integer query parameter, falling back to def
// when absent. ok is false for malformed or non-positive values.
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	top, ok := intParam(r, "top", defaultTop)
	if !ok {
		writeError(w, http.StatusBadRequest, "top must be a positive integer")
		return
	}
	st, err := s.reader.Status(r.Context(), top)
	if err != nil {
		log.Printf("[statusapi] status: %v", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		store.Status
		MatchRate float64 `json:"match_rate"`
	}{st, st.MatchRate()})
}

func (s *server) projects(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultProjectLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxProjectLimit {
		limit = maxProjectLimit
	}
	rows, err := s.reader.Projects(r.Context(), limit)
	if err != nil {
		log.Printf("[statusapi] projects: %v", err)
		writeError(w, http.StatusInternalServerError, "projects unavailable")
		return
	}
	if rows == nil {
		rows = []project.Project{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *server) deliveries(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reader.Deliveries(r.Context())
	if err != nil {
		log.Printf("[statusapi] deliveries: %v", err)
		writeError(w, http.StatusInternalServerError, "deliveries unavailable")
		return
	}
	if rows == nil {
		rows = []project.Delivery{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *server) currentRun(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotFound, "no orchestrator in this process")
		return
	}
	p := s.progress()
	w.Header().Set("X-Pipeline-State", string(p.State))
	writeJSON(w, http.StatusOK, p)
}
