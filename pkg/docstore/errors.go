package docstore

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrUnavailable      = errors.New("document store unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// IsTransient reports whether err is worth retrying later: connectivity loss,
// timeouts or an open circuit breaker.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}
