package repository

import (
	"context"
	"time"

	"github.com/soulmechanik/forems-portal/internal/domain"
)

// SessionRepository defines the interface for the session audit trail
type SessionRepository interface {
	// Create records a new signed-in session
	Create(ctx context.Context, record *domain.SessionRecord) error
	// Touch records a successful refresh
	Touch(ctx context.Context, id string, activeRole *domain.Role, at time.Time) error
	// Revoke closes a session; revoking twice keeps the first reason
	Revoke(ctx context.Context, id string, reason domain.RevokeReason, at time.Time) error
	// GetByID retrieves a session record, nil when absent
	GetByID(ctx context.Context, id string) (*domain.SessionRecord, error)
}

// MarkerStore holds the one-time role-switch marker per session
type MarkerStore interface {
	// Put records the newly active role
	Put(ctx context.Context, sessionID string, role domain.Role) error
	// Take reads and deletes the marker in one step
	Take(ctx context.Context, sessionID string) (domain.Role, bool, error)
	// Drop deletes the marker without reading it
	Drop(ctx context.Context, sessionID string) error
}

// Release frees a held lock. It is safe to call after the lock expired.
type Release func(ctx context.Context) error

// SwitchLock guards against concurrent role switches within one session
type SwitchLock interface {
	// Acquire returns domain.ErrSwitchInProgress when the lock is held
	Acquire(ctx context.Context, sessionID string) (Release, error)
}
