package session

import (
	"slices"

	"github.com/soulmechanik/forems-portal/internal/domain"
)

// Resolve projects a token onto the client-visible session view.
// It returns nil when the token carries no user id. Resolve is pure.
func Resolve(t domain.Token) *domain.SessionView {
	if t.UserID == "" {
		return nil
	}

	view := &domain.SessionView{
		UserID:           t.UserID,
		Roles:            slices.Clone(t.Roles),
		Onboarded:        t.Onboarded,
		Verified:         t.Verified,
		HasActiveTenancy: t.HasActiveTenancy,
	}
	if view.Roles == nil {
		view.Roles = []domain.Role{}
	}
	if t.ActiveRole != nil {
		view.ActiveRole = domain.RolePtr(*t.ActiveRole)
	}
	return view
}
