// Package newsletter maintains the subscriber list and routes the inbound
// subscribe, unsubscribe and trigger events to their handlers.
package newsletter

import (
	"fmt"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
)

// Inbound event names.
const (
	EventSubscribe   = "newsletter_subscribe"
	EventUnsubscribe = "newsletter_unsubscribe"
	EventTrigger     = "trigger_newsletter"
	// EventTriggerAlias is accepted as an exact equivalent of EventTrigger.
	EventTriggerAlias = "newsletter_trigger"
)

// EventSendNewsletter is the outbound event requesting newsletter delivery.
const EventSendNewsletter = "send_newsletter"

// SubscribersKey is the storage key holding the JSON-encoded subscriber list.
const SubscribersKey = "newsletter_subscribers"

// Inbound property keys.
const (
	PropNewSubscriberEmail = "new_subscriber_email"
	PropUnsubscribeEmail   = "unsubscribe_request_email"
	PropSecret             = "newsletter_secret"
	PropContent            = "content"
)

// Outbound property keys.
const (
	PropEmailAddresses = "email_addresses"
)

// Command is one parsed inbound event. The concrete type is one of
// SubscribeCommand, UnsubscribeCommand or TriggerCommand.
type Command interface {
	// EventName returns the inbound event name the command was parsed from.
	EventName() string
	// Validate checks that required fields are present.
	Validate() error
}

// SubscribeCommand adds an address to the list.
type SubscribeCommand struct {
	Email string
}

// UnsubscribeCommand removes every occurrence of an address. Privileged.
type UnsubscribeCommand struct {
	Email  string
	Secret string
}

// TriggerCommand requests a send of Content to every subscriber. Privileged.
type TriggerCommand struct {
	Content string
	Secret  string
	// Name records which of the two trigger event names was received.
	Name string
}

func (SubscribeCommand) EventName() string   { return EventSubscribe }
func (UnsubscribeCommand) EventName() string { return EventUnsubscribe }

func (c TriggerCommand) EventName() string {
	if c.Name == "" {
		return EventTrigger
	}
	return c.Name
}

func (c SubscribeCommand) Validate() error {
	if c.Email == "" {
		return &ValidationError{Field: PropNewSubscriberEmail, Message: "no email found to add to the subscribers list"}
	}
	return nil
}

func (c UnsubscribeCommand) Validate() error {
	if c.Email == "" {
		return &ValidationError{Field: PropUnsubscribeEmail, Message: "no email found to remove from the subscribers list"}
	}
	return nil
}

func (c TriggerCommand) Validate() error {
	if c.Content == "" {
		return &ValidationError{Field: PropContent, Message: "no content found to send"}
	}
	return nil
}

// IsInboundEvent reports whether name is one the registry routes.
func IsInboundEvent(name string) bool {
	switch name {
	case EventSubscribe, EventUnsubscribe, EventTrigger, EventTriggerAlias:
		return true
	}
	return false
}

// ParseCommand converts a raw event into a typed Command. It returns
// ErrUnknownEvent for names it does not route and a *ValidationError when
// a required property is missing. Secrets are not checked here.
func ParseCommand(e eventbus.Event) (Command, error) {
	var cmd Command
	switch e.Name {
	case EventSubscribe:
		cmd = SubscribeCommand{Email: e.Property(PropNewSubscriberEmail)}
	case EventUnsubscribe:
		cmd = UnsubscribeCommand{
			Email:  e.Property(PropUnsubscribeEmail),
			Secret: e.Property(PropSecret),
		}
	case EventTrigger, EventTriggerAlias:
		cmd = TriggerCommand{
			Content: e.Property(PropContent),
			Secret:  e.Property(PropSecret),
			Name:    e.Name,
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Name)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
