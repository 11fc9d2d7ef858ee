package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/newsletter/internal/scheduler"
	"github.com/shaharia-lab/newsletter/internal/storage"
)

// handleRunJob runs the named job synchronously.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.jobs.RunNow(r.Context(), name); err != nil {
		var unknown *scheduler.UnknownJobError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("job run failed", "job", name, "error", err)
		writeError(w, http.StatusInternalServerError, "job failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "job": name})
}

// handleListOutbound returns recent outbound events.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListOutbound(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.outbound.ListOutbound(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list outbound events")
		return
	}
	if entries == nil {
		entries = []storage.OutboundEventEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
