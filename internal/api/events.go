package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
)

// maxEventBody caps the size of an ingested event.
const maxEventBody = 1 << 20

type postEventRequest struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// handlePostEvent enqueues one inbound event. Names the registry does not
// route, outbound send_newsletter included, are refused with 400. The
// response only confirms the event was accepted; handling happens
// asynchronously and its outcome is not reported back.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var req postEventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	name := strings.TrimSpace(req.Event)
	if name == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	if !newsletter.IsInboundEvent(name) {
		writeError(w, http.StatusBadRequest, "unsupported event")
		return
	}

	e, err := s.publisher.Publish(name, stringProperties(req.Properties))
	if err != nil {
		if errors.Is(err, eventbus.ErrBufferFull) || errors.Is(err, eventbus.ErrClosed) {
			s.logger.Warn("event not accepted", "event", name, "error", err)
			writeError(w, http.StatusServiceUnavailable, "event bus unavailable, retry later")
			return
		}
		s.logger.Error("publishing event", "event", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": e.ID})
}

// stringProperties keeps only the string-valued properties.
func stringProperties(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
