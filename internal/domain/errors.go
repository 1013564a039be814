package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict: idempotency key already exists")
	ErrInvalidKind          = errors.New("unknown notification kind")
	ErrEmptyRecipient       = errors.New("recipient identity must not be empty")
	ErrEmptyPayload         = errors.New("payload must not be empty")
	ErrBadPayloadField      = errors.New("payload field missing or invalid")
	ErrContentTooLong       = errors.New("rendered message exceeds the transport limit")
	ErrRecipientNotOperator = errors.New("recipient is not a whitelisted operator")
	ErrNoOperators          = errors.New("operator whitelist is empty")
	ErrQueueFull            = errors.New("dispatch queue is at capacity, try again later")
)
