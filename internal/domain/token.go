package domain

import (
	"slices"
	"time"
)

// Token is the authoritative server-side session state. It is handled as an
// immutable value: the With* helpers return modified copies and never share
// the Roles backing array with the receiver.
type Token struct {
	SessionID         string
	UserID            string
	Email             string
	Name              string
	Roles             []Role
	ActiveRole        *Role
	Onboarded         bool
	Verified          bool
	HasActiveTenancy  bool
	BackendCredential string
	IssuedAt          time.Time
	RefreshedAt       time.Time
}

// IsEmpty reports whether the token carries no identity
func (t Token) IsEmpty() bool {
	return t.UserID == ""
}

// HasRole reports whether r is one of the granted roles
func (t Token) HasRole(r Role) bool {
	return slices.Contains(t.Roles, r)
}

// ActiveRoleIs reports whether the active role equals r
func (t Token) ActiveRoleIs(r Role) bool {
	return t.ActiveRole != nil && *t.ActiveRole == r
}

// Clone returns a deep copy
func (t Token) Clone() Token {
	c := t
	c.Roles = slices.Clone(t.Roles)
	if t.ActiveRole != nil {
		c.ActiveRole = RolePtr(*t.ActiveRole)
	}
	return c
}

// WithRoles returns a copy with the granted roles replaced
func (t Token) WithRoles(roles []Role) Token {
	c := t.Clone()
	c.Roles = slices.Clone(roles)
	return c
}

// WithActiveRole returns a copy with the active role replaced; nil clears it
func (t Token) WithActiveRole(r *Role) Token {
	c := t.Clone()
	c.ActiveRole = nil
	if r != nil {
		c.ActiveRole = RolePtr(*r)
	}
	return c
}

// Equal reports field-wise equality
func (t Token) Equal(o Token) bool {
	if (t.ActiveRole == nil) != (o.ActiveRole == nil) {
		return false
	}
	if t.ActiveRole != nil && *t.ActiveRole != *o.ActiveRole {
		return false
	}
	return t.SessionID == o.SessionID &&
		t.UserID == o.UserID &&
		t.Email == o.Email &&
		t.Name == o.Name &&
		slices.Equal(t.Roles, o.Roles) &&
		t.Onboarded == o.Onboarded &&
		t.Verified == o.Verified &&
		t.HasActiveTenancy == o.HasActiveTenancy &&
		t.BackendCredential == o.BackendCredential &&
		t.IssuedAt.Equal(o.IssuedAt) &&
		t.RefreshedAt.Equal(o.RefreshedAt)
}
