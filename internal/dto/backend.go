package dto

import "encoding/json"

// GoogleAuthRequest is sent to POST /api/auth/googleAuth
type GoogleAuthRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId"`
}

// BackendUser is the identity record as returned by the rental backend.
// Every field is optional so refreshes can merge by presence.
type BackendUser struct {
	ID               Optional[string]   `json:"_id"`
	Email            Optional[string]   `json:"email"`
	Name             Optional[string]   `json:"name"`
	Roles            Optional[[]string] `json:"roles"`
	LastActiveRole   Optional[*string]  `json:"lastActiveRole"`
	Onboarded        Optional[bool]     `json:"onboarded"`
	Verified         Optional[bool]     `json:"verified"`
	HasActiveTenancy Optional[bool]     `json:"hasActiveTenancy"`
}

// GoogleAuthResponse is the googleAuth reply; Error is set on rejection
type GoogleAuthResponse struct {
	User  *BackendUser `json:"user"`
	Token string       `json:"token"`
	Error string       `json:"error"`
}

// MeResponse is the GET /api/auth/me reply
type MeResponse struct {
	User *BackendUser `json:"user"`
}

// SwitchRoleRequest is sent to POST /api/auth/switch-role
type SwitchRoleRequest struct {
	Role string `json:"role"`
}

// SwitchRoleResponse is the switch-role reply
type SwitchRoleResponse struct {
	User    *BackendUser `json:"user"`
	Message string       `json:"message"`
}

// JoinableProperty is one entry of GET /api/property/joinable.
// Landlord and manager are forwarded untouched.
type JoinableProperty struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	Landlord json.RawMessage `json:"landlord,omitempty"`
	Manager  json.RawMessage `json:"manager,omitempty"`
	State    string          `json:"state"`
}

// ErrorBody is the error shape of any backend reply
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Reason returns the most specific server-provided reason
func (b ErrorBody) Reason() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// MessageResponse is the reply of the password and verification endpoints
type MessageResponse struct {
	Message string `json:"message"`
}
