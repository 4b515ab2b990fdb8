package domain

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the session lifecycle
var (
	ErrConnectionTimeout    = errors.New("connection timeout")
	ErrBackendRejected      = errors.New("backend rejected request")
	ErrUnknownAuth          = errors.New("unknown authentication error")
	ErrInvalidSession       = errors.New("invalid session")
	ErrTransientRefresh     = errors.New("transient refresh failure")
	ErrAuthorizationRevoked = errors.New("authorization revoked")
	ErrSwitchInProgress     = errors.New("role switch already in progress")
	ErrUnknownRole          = errors.New("unknown role")
	ErrRoleNotGranted       = errors.New("role not granted")

	// ErrRejectToken is the terminal signal of a token pipeline step.
	// A rejected pipeline yields the empty token.
	ErrRejectToken = errors.New("token rejected")
)

// AuthError pairs a failure kind with a user-presentable reason
type AuthError struct {
	Kind   error
	Reason string
	Err    error
}

// NewAuthError builds an AuthError
func NewAuthError(kind error, reason string, cause error) *AuthError {
	return &AuthError{Kind: kind, Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ReasonOf extracts the user-presentable reason from err, or fallback
func ReasonOf(err error, fallback string) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Reason != "" {
		return ae.Reason
	}
	return fallback
}
