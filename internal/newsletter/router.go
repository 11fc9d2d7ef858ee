package newsletter

import (
	"context"
	"errors"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/metrics"
)

// Handle routes one inbound event to its handler.
//
// Unknown names are ignored without logging. Validation and authorization
// failures are logged and swallowed. Only storage and publish faults are
// returned.
func (r *Registry) Handle(ctx context.Context, e eventbus.Event) error {
	err := r.Dispatch(ctx, e)
	if errors.Is(err, ErrUnknownEvent) {
		return nil
	}
	r.metrics.EventReceived(e.Name)
	if err == nil {
		return nil
	}
	if isSoft(err) {
		r.reject(e, err)
		return nil
	}
	return err
}

// Dispatch parses and applies e, returning every failure to the caller,
// ErrUnknownEvent and soft errors included.
func (r *Registry) Dispatch(ctx context.Context, e eventbus.Event) error {
	cmd, err := ParseCommand(e)
	if err != nil {
		return err
	}
	return r.apply(ctx, cmd)
}

// Listener adapts Handle to an eventbus.Listener. Hard failures are logged
// because the bus has nobody to return them to.
func (r *Registry) Listener(ctx context.Context) eventbus.Listener {
	return func(e eventbus.Event) {
		if err := r.Handle(ctx, e); err != nil {
			r.logger.Error("event handling failed",
				"event", e.Name, "event_id", e.ID, "error", err)
		}
	}
}

func (r *Registry) apply(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case SubscribeCommand:
		return r.Add(ctx, c)
	case UnsubscribeCommand:
		return r.Remove(ctx, c)
	case TriggerCommand:
		return r.Trigger(ctx, c)
	}
	return nil
}

func (r *Registry) reject(e eventbus.Event, err error) {
	reason := metrics.ReasonValidation
	var aerr *AuthorizationError
	if errors.As(err, &aerr) {
		reason = metrics.ReasonUnauthorized
	}
	r.metrics.EventRejected(e.Name, reason)
	r.logger.Warn("skipping event", "event", e.Name, "event_id", e.ID, "reason", reason, "error", err)
}
