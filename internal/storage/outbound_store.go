package storage

import (
	"context"
	"time"
)

// Outbound event statuses.
const (
	OutboundStatusCaptured  = "captured"
	OutboundStatusForwarded = "forwarded"
	OutboundStatusFailed    = "failed"
)

// OutboundEventEntry records one outbound event handed to the capture mechanism.
type OutboundEventEntry struct {
	ID         int64             `json:"id"`
	EventID    string            `json:"event_id"`
	EventName  string            `json:"event_name"`
	Properties map[string]string `json:"properties"`
	Status     string            `json:"status"`
	ErrorMsg   string            `json:"error_msg,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// OutboundEventStore defines the interface for persisting captured outbound events.
type OutboundEventStore interface {
	// LogOutbound records an outbound event.
	LogOutbound(ctx context.Context, entry OutboundEventEntry) error
	// ListOutbound returns the most recent outbound events, up to limit.
	ListOutbound(ctx context.Context, limit int) ([]OutboundEventEntry, error)
}
