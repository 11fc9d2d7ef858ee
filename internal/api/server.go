package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/storage"
)

// SecretHeader carries the newsletter secret on admin endpoints.
const SecretHeader = "X-Newsletter-Secret"

const errInvalidJSONBody = "invalid JSON body"

// EventPublisher enqueues inbound events.
type EventPublisher interface {
	Publish(name string, properties map[string]string) (eventbus.Event, error)
}

// JobRunner runs named jobs on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	publisher EventPublisher
	jobs      JobRunner
	outbound  storage.OutboundEventStore
	secret    string
	logger    *slog.Logger
}

// New creates a new API Server. An empty secret locks every admin endpoint.
func New(publisher EventPublisher, jobs JobRunner, outbound storage.OutboundEventStore, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		publisher: publisher,
		jobs:      jobs,
		outbound:  outbound,
		secret:    secret,
		logger:    logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Public ingest
	r.Post("/events", s.handlePostEvent)

	r.Get("/version", s.handleVersion)

	// Admin
	r.Group(func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Post("/jobs/{name}", s.handleRunJob)
		r.Get("/outbound", s.handleListOutbound)
	})
}

// requireSecret rejects requests whose SecretHeader does not match.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			s.logger.Warn("rejected admin request", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
