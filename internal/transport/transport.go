package transport

import (
	"context"
)

// Transport abstracts delivery of rendered message text to a recipient.
// Mocking this interface in tests gives full control over delivery behaviour
// without touching a real chat API.
type Transport interface {
	// Send delivers text to recipient and returns the transport-side
	// message id. Implementations classify failures: permanent ones are
	// wrapped with Permanent, rate-limit responses carry a RetryAfter
	// hint, and anything else is considered retryable.
	Send(ctx context.Context, recipient, text string) (msgID string, err error)
}
