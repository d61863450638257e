package domain

import "errors"

var (
	// ErrNotFound is returned when a ticket does not exist.
	ErrNotFound = errors.New("ticket not found")

	// ErrValidation marks malformed input. Wrapped with a field-specific message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned for moves absent from the adjacency table.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrArchived is returned when mutating an archived ticket.
	ErrArchived = errors.New("ticket is archived")

	// ErrAlreadyArchived is returned when archiving twice.
	ErrAlreadyArchived = errors.New("ticket is already archived")

	// ErrGatewayDisabled is returned by the gateway client when no token is configured.
	ErrGatewayDisabled = errors.New("gateway is disabled: OPENCLAW_TOKEN is not configured")

	// ErrGatewayUnavailable wraps gateway failures surfaced to API callers.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// IsClientError reports whether err should be surfaced as a 4xx response.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrArchived)
}
