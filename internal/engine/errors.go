package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
)

// ErrMissingAPIKey is returned by New when a hosted provider has no credential.
var ErrMissingAPIKey = errors.New("LLM API key is not configured")

// StatusError is returned when the backend answers with a non-200 status.
type StatusError struct {
	Engine     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Engine, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Engine, e.StatusCode, e.Body)
}

// Transient reports whether retrying the same request may succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type transient interface {
	Transient() bool
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors, network failures and per-attempt timeouts. Authentication and
// bad-request failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
