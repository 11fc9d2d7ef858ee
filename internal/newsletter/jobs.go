package newsletter

import (
	"context"
	"strings"
)

// ListSubscribersJobName is the name the subscriber listing job is registered under.
const ListSubscribersJobName = "List all subscribers"

// ListSubscribersJob logs the current list. It never mutates storage.
func (r *Registry) ListSubscribersJob(ctx context.Context) error {
	list, err := r.Subscribers(ctx)
	if err != nil {
		return err
	}
	r.logger.Info(FormatSubscriberListing(list), "count", len(list))
	return nil
}

// FormatSubscriberListing renders list for humans, comma-and-space separated.
func FormatSubscriberListing(list []string) string {
	return "Current newsletter subscribers: " + strings.Join(list, ", ")
}
