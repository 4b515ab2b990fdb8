package domain

import "time"

// SessionView is the client-visible projection of a Token.
// The backend credential is never part of it.
type SessionView struct {
	UserID           string `json:"userId"`
	Roles            []Role `json:"roles"`
	ActiveRole       *Role  `json:"activeRole"`
	Onboarded        bool   `json:"onboarded"`
	Verified         bool   `json:"verified"`
	HasActiveTenancy bool   `json:"hasActiveTenancy"`
}

// SessionPatch is a partial session supplied alongside an update trigger.
// Nil fields are left untouched.
type SessionPatch struct {
	ActiveRole       *Role `json:"activeRole,omitempty"`
	Onboarded        *bool `json:"onboarded,omitempty"`
	Verified         *bool `json:"verified,omitempty"`
	HasActiveTenancy *bool `json:"hasActiveTenancy,omitempty"`
}

// IsZero reports whether the patch changes nothing
func (p *SessionPatch) IsZero() bool {
	return p == nil || (p.ActiveRole == nil && p.Onboarded == nil && p.Verified == nil && p.HasActiveTenancy == nil)
}

// UpdateTrigger names what caused a token refresh
type UpdateTrigger string

const (
	// TriggerUpdate is an explicit client request to re-read the session
	TriggerUpdate UpdateTrigger = "update"
	// TriggerRoleSwitch follows a backend-confirmed role switch
	TriggerRoleSwitch UpdateTrigger = "role_switch"
)

// UpdateEvent is the single message that drives a token refresh
type UpdateEvent struct {
	Trigger  UpdateTrigger
	Override *SessionPatch
}

// RevokeReason explains why a session record was closed
type RevokeReason string

const (
	RevokeSignOut      RevokeReason = "sign_out"
	RevokeUnauthorized RevokeReason = "backend_unauthorized"
)

// SessionRecord is the audit row kept for every signed-in browser session
type SessionRecord struct {
	ID           string
	UserID       string
	Email        string
	ActiveRole   *Role
	UserAgent    string
	IP           string
	CreatedAt    time.Time
	RefreshedAt  time.Time
	RevokedAt    *time.Time
	RevokeReason *RevokeReason
}
