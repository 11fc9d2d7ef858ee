package newsletter

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by ParseCommand for event names the registry
// does not route. Handle ignores such events silently.
var ErrUnknownEvent = errors.New("unknown event")

// ValidationError is returned when a required event property is missing or empty.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// AuthorizationError is returned when a privileged event carries a secret
// that does not match the configured one.
type AuthorizationError struct {
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: incorrect or missing secret", e.Operation)
}

// isSoft reports whether err is a validation or authorization failure.
// Soft failures are logged and never propagated to the event source.
func isSoft(err error) bool {
	var verr *ValidationError
	var aerr *AuthorizationError
	return errors.As(err, &verr) || errors.As(err, &aerr)
}
