// Package capture hands outbound send_newsletter events to the external
// capture endpoint and records every hand-off.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/metrics"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
	"github.com/shaharia-lab/newsletter/internal/storage"
)

const defaultTimeout = 10 * time.Second

// Config holds the forwarder's collaborators.
type Config struct {
	// URL receives each event as a JSON POST. Empty records events locally only.
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Store      storage.OutboundEventStore
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Forwarder captures outbound events.
type Forwarder struct {
	url     string
	timeout time.Duration
	client  *http.Client
	store   storage.OutboundEventStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg Config) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		url:     strings.TrimSpace(cfg.URL),
		timeout: timeout,
		client:  client,
		store:   cfg.Store,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Listener returns an eventbus.Listener that captures send_newsletter events
// and ignores everything else.
func (f *Forwarder) Listener(ctx context.Context) eventbus.Listener {
	return func(e eventbus.Event) {
		if e.Name != newsletter.EventSendNewsletter {
			return
		}
		if _, err := f.Capture(ctx, e); err != nil {
			f.logger.Error("capture: failed to record outbound event",
				"event_id", e.ID, "error", err)
		}
	}
}

// Capture forwards e (when a URL is configured) and records the outcome.
// The returned error only reports a failure to record; forwarding failures
// are reflected in the entry's status.
func (f *Forwarder) Capture(ctx context.Context, e eventbus.Event) (storage.OutboundEventEntry, error) {
	entry := storage.OutboundEventEntry{
		EventID:    e.ID,
		EventName:  e.Name,
		Properties: e.Properties,
		Status:     storage.OutboundStatusCaptured,
		CreatedAt:  time.Now().UTC(),
	}

	if f.url != "" {
		if err := f.post(ctx, e); err != nil {
			entry.Status = storage.OutboundStatusFailed
			entry.ErrorMsg = err.Error()
			f.logger.Error("capture: failed to forward event",
				"event", e.Name, "event_id", e.ID, "error", err)
		} else {
			entry.Status = storage.OutboundStatusForwarded
			f.logger.Info("capture: event forwarded", "event", e.Name, "event_id", e.ID)
		}
	} else {
		f.logger.Info("capture: event recorded", "event", e.Name, "event_id", e.ID)
	}
	f.metrics.Outbound(entry.Status)

	if err := f.store.LogOutbound(ctx, entry); err != nil {
		return entry, fmt.Errorf("logging outbound event %s: %w", e.ID, err)
	}
	return entry, nil
}

func (f *Forwarder) post(ctx context.Context, e eventbus.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return fmt.Errorf("capture endpoint returned %s", resp.Status)
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("capture endpoint returned %s: %s", resp.Status, msg)
	}
	return nil
}
