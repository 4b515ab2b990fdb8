package domain

import "time"

// AuthEventType names an entry on the auth event stream
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "auth.signed_in"
	AuthEventRoleSwitched   AuthEventType = "auth.role_switched"
	AuthEventSessionRevoked AuthEventType = "auth.session_revoked"
)

// AuthEvent is the payload published for session lifecycle changes
type AuthEvent struct {
	ID         string        `json:"id"`
	Type       AuthEventType `json:"type"`
	SessionID  string        `json:"session_id"`
	UserID     string        `json:"user_id"`
	ActiveRole *Role         `json:"active_role,omitempty"`
	FromRole   *Role         `json:"from_role,omitempty"`
	Reason     RevokeReason  `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewAuthEvent builds an event from the token it describes
func NewAuthEvent(eventType AuthEventType, token Token, eventID string) *AuthEvent {
	ev := &AuthEvent{
		ID:         eventID,
		Type:       eventType,
		SessionID:  token.SessionID,
		UserID:     token.UserID,
		OccurredAt: time.Now().UTC(),
	}
	if token.ActiveRole != nil {
		ev.ActiveRole = RolePtr(*token.ActiveRole)
	}
	return ev
}

// Key partitions events by user so one user's history stays ordered
func (e *AuthEvent) Key() string {
	return e.UserID
}
