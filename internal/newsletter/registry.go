package newsletter

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/metrics"
	"github.com/shaharia-lab/newsletter/internal/storage"
)

// EventPublisher lets the registry emit the outbound send_newsletter event
// without depending on a concrete event bus.
type EventPublisher interface {
	Publish(name string, properties map[string]string) (eventbus.Event, error)
}

// Config holds the registry's collaborators.
type Config struct {
	Store     storage.KVStore
	Publisher EventPublisher
	// Secret authorizes unsubscribe and trigger. Empty rejects both.
	Secret string
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Registry owns the subscriber list stored under SubscribersKey.
//
// Every read-modify-write of the list is serialized by mu, so a single
// Registry is the only writer a process may have. Two processes sharing one
// database can still lose updates.
type Registry struct {
	store     storage.KVStore
	publisher EventPublisher
	secret    string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	mu        sync.Mutex
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		secret:    cfg.Secret,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// Subscribers returns the current list. An absent key reads as an empty list.
func (r *Registry) Subscribers(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, SubscribersKey, "[]")
	if err != nil {
		return nil, fmt.Errorf("reading subscribers: %w", err)
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding subscribers: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	r.metrics.SetSubscribers(len(list))
	return list, nil
}

// save writes list back under SubscribersKey.
func (r *Registry) save(ctx context.Context, list []string) error {
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding subscribers: %w", err)
	}
	if err := r.store.Set(ctx, SubscribersKey, string(raw)); err != nil {
		return fmt.Errorf("writing subscribers: %w", err)
	}
	r.metrics.SetSubscribers(len(list))
	return nil
}

// Add appends cmd.Email to the list. Duplicates are kept.
func (r *Registry) Add(ctx context.Context, cmd SubscribeCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.Subscribers(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("adding subscriber", "email", cmd.Email)
	list = append(list, cmd.Email)
	if err := r.save(ctx, list); err != nil {
		return err
	}
	r.logger.Info("subscriber added", "email", cmd.Email, "subscribers", len(list))
	return nil
}

// Remove deletes every entry equal to cmd.Email, keeping the order of the
// rest. The list is rewritten even when nothing matched.
func (r *Registry) Remove(ctx context.Context, cmd UnsubscribeCommand) error {
	if err := r.authorize(EventUnsubscribe, cmd.Secret); err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.Subscribers(ctx)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(list))
	for _, email := range list {
		if email != cmd.Email {
			kept = append(kept, email)
		}
	}
	if err := r.save(ctx, kept); err != nil {
		return err
	}
	r.logger.Info("subscriber removed", "email", cmd.Email, "removed", len(list)-len(kept))
	return nil
}

// Trigger publishes one send_newsletter event addressed to the whole list.
func (r *Registry) Trigger(ctx context.Context, cmd TriggerCommand) error {
	if err := r.authorize(cmd.EventName(), cmd.Secret); err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	list, err := r.Subscribers(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("triggering newsletter", "recipients", len(list))
	e, err := r.publisher.Publish(EventSendNewsletter, map[string]string{
		PropEmailAddresses: FormatAddresses(list),
		PropContent:        cmd.Content,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", EventSendNewsletter, err)
	}
	r.logger.Info("newsletter send requested", "event_id", e.ID)
	return nil
}

// authorize compares secret with the configured one in constant time.
func (r *Registry) authorize(operation, secret string) error {
	if r.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(r.secret)) != 1 {
		return &AuthorizationError{Operation: operation}
	}
	return nil
}

// FormatAddresses renders the list as the single comma-joined string
// carried in email_addresses. An empty list renders as "".
func FormatAddresses(list []string) string {
	return strings.Join(list, ",")
}
