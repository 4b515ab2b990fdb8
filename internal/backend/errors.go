package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTimeout means the call exceeded its bound
	ErrTimeout = errors.New("backend: request timed out")
	// ErrRejected means the backend answered with an error
	ErrRejected = errors.New("backend: request rejected")
)

// Error is a non-2xx (or error-bearing) backend reply
type Error struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("backend %s: status %d: %s", e.Op, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("backend %s: status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error { return ErrRejected }

// Unauthorized reports whether the backend refused the credential
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether err is a 401/403 backend reply
func IsUnauthorized(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Unauthorized()
}

// ReasonOf returns the server-provided reason of a rejection, if any
func ReasonOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}

// StatusOf returns the backend status code of a rejection, or 0
func StatusOf(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.StatusCode
	}
	return 0
}

// classifyTransport maps transport failures onto ErrTimeout where they are
// deadline related. Everything else is returned as-is.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("backend %s: %w: %w", op, ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("backend %s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("backend %s: %w", op, err)
}
