package redirect

import "github.com/soulmechanik/forems-portal/internal/domain"

// Routes the portal navigates to
const (
	EntryPath         = "/auth/redirect"
	LoginPath         = "/login"
	LandlordDashboard = "/dashboard/landlord"
	TenantDashboard   = "/dashboard/tenant"
	TenantStart       = "/dashboard/tenant/start"
	ManagerDashboard  = "/dashboard/manager"
	AgentDashboard    = "/dashboard/agent"
	OnboardingPath    = "/onboarding"
)

// Destination maps the active role onto its dashboard root.
// An unset or unrecognised role falls back to onboarding.
func Destination(role *domain.Role, hasActiveTenancy bool) string {
	if role == nil {
		return OnboardingPath
	}
	switch *role {
	case domain.RoleLandlord:
		return LandlordDashboard
	case domain.RoleTenant:
		if hasActiveTenancy {
			return TenantDashboard
		}
		return TenantStart
	case domain.RolePropertyManager:
		return ManagerDashboard
	case domain.RoleAgent:
		return AgentDashboard
	default:
		return OnboardingPath
	}
}
