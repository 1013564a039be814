package transport

import (
	"errors"
	"fmt"
	"time"
)

// Permanent marks an error as non-retryable.
//
// Transports wrap rejections that no retry can fix (bad recipient,
// blocked bot, deleted chat) with Permanent so the worker fails the
// job instead of burning attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err is wrapped with Permanent.
func IsPermanent(err error) bool {
	var e permanentError
	return errors.As(err, &e)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e permanentError) Unwrap() error { return e.err }

// RetryAfter attaches a transport-suggested delay to an error.
//
// Useful when the downstream API returns an explicit wait (e.g. HTTP 429
// with retry_after). The worker respects the hint, bounded by the
// configured max delay, and still applies jitter.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	if after < 0 {
		after = 0
	}
	return retryAfterError{err: err, after: after}
}

// RetryDelayHint extracts a transport-suggested retry delay, if any.
func RetryDelayHint(err error) (time.Duration, bool) {
	var e retryAfterError
	if errors.As(err, &e) {
		return e.after, true
	}
	return 0, false
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string {
	return fmt.Sprintf("retry-after(%s): %v", e.after, e.err)
}
func (e retryAfterError) Unwrap() error { return e.err }
