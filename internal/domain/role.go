package domain

import (
	"fmt"
	"slices"
)

// Role is one of the portal's closed set of user roles
type Role string

const (
	RoleLandlord        Role = "landlord"
	RoleTenant          Role = "tenant"
	RoleAgent           Role = "agent"
	RolePropertyManager Role = "propertyManager"
)

var allRoles = []Role{RoleLandlord, RoleTenant, RoleAgent, RolePropertyManager}

// Roles returns every known role
func Roles() []Role {
	return slices.Clone(allRoles)
}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return slices.Contains(allRoles, r)
}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// RolePtr returns a pointer to r
func RolePtr(r Role) *Role {
	return &r
}

// Descriptor is presentation metadata for a role. It is not part of the
// authoritative session model.
type Descriptor struct {
	Emoji string `json:"emoji"`
	Color string `json:"color"`
	Label string `json:"label"`
}

var descriptors = map[Role]Descriptor{
	RoleLandlord:        {Emoji: "🏠", Color: "#2563eb", Label: "Landlord"},
	RoleTenant:          {Emoji: "🔑", Color: "#16a34a", Label: "Tenant"},
	RoleAgent:           {Emoji: "🤝", Color: "#d97706", Label: "Agent"},
	RolePropertyManager: {Emoji: "🏢", Color: "#7c3aed", Label: "Property Manager"},
}

// Describe returns the role's presentation descriptor
func (r Role) Describe() Descriptor {
	if d, ok := descriptors[r]; ok {
		return d
	}
	return Descriptor{Emoji: "👤", Color: "#6b7280", Label: string(r)}
}
