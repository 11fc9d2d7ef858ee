package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Event is a named occurrence carrying string properties. Inbound events
// (subscribe, unsubscribe, trigger) and outbound events (send_newsletter)
// share this shape.
type Event struct {
	ID         string            `json:"uuid"`
	Name       string            `json:"event"`
	Timestamp  time.Time         `json:"timestamp"`
	Properties map[string]string `json:"properties"`
}

// NewEvent stamps a new event with a random ID and the current UTC time.
func NewEvent(name string, properties map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Timestamp:  time.Now().UTC(),
		Properties: properties,
	}
}

// Property returns the named property, or "" when absent.
func (e Event) Property(key string) string {
	return e.Properties[key]
}

// Listener is a function that handles an event.
type Listener func(Event)
