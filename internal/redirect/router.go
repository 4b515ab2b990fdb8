package redirect

import (
	"context"
	"fmt"
	"time"

	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/internal/repository"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Status is the resolution state of the session at evaluation time
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// NoticeKind classifies a transient user notification
type NoticeKind string

const (
	NoticeSignInRequired NoticeKind = "sign_in_required"
	NoticeRoleSwitched   NoticeKind = "role_switched"
)

// Notice is a transient message shown alongside navigation
type Notice struct {
	Kind    NoticeKind
	Message string
	Role    *domain.Role
	Style   *domain.Descriptor
}

// State is the input of one evaluation
type State struct {
	Status    Status
	Session   *domain.SessionView
	SessionID string
}

// Decision is the outcome of one evaluation. Ready is false while the
// session is still loading; no other field is meaningful then.
type Decision struct {
	Ready    bool
	Target   string
	Navigate bool
	Delay    time.Duration
	Notice   *Notice
}

// RouterConfig holds router configuration
type RouterConfig struct {
	// NavigationDelay is the cosmetic pause before navigating
	NavigationDelay time.Duration
}

// Router decides where a freshly loaded session goes
type Router struct {
	markers repository.MarkerStore
	delay   time.Duration
	log     *logger.Logger
}

// NewRouter creates a new Router
func NewRouter(markers repository.MarkerStore, cfg *RouterConfig, log *logger.Logger) *Router {
	delay := 1500 * time.Millisecond
	if cfg != nil && cfg.NavigationDelay >= 0 {
		delay = cfg.NavigationDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Router{markers: markers, delay: delay, log: log}
}

// Evaluate computes the navigation decision for state at currentPath.
// Marker failures only cost the notice; the decision itself never fails.
func (r *Router) Evaluate(ctx context.Context, state State, currentPath string) Decision {
	if state.Status == StatusLoading {
		return Decision{}
	}

	ctx, span := telemetry.StartSpan(ctx, "redirect.evaluate")
	defer span.End()

	var decision Decision
	if state.Session == nil || state.Session.UserID == "" {
		decision = Decision{Ready: true, Target: LoginPath}
		if state.Status == StatusUnauthenticated {
			decision.Notice = &Notice{
				Kind:    NoticeSignInRequired,
				Message: "You must sign in to continue.",
			}
		}
	} else {
		decision = Decision{
			Ready:  true,
			Target: Destination(state.Session.ActiveRole, state.Session.HasActiveTenancy),
			Notice: r.takeSwitchNotice(ctx, state.SessionID),
		}
	}

	decision.Navigate = currentPath != decision.Target
	if decision.Navigate {
		decision.Delay = r.delay
	}

	span.SetAttributes(
		attribute.String("redirect.target", decision.Target),
		attribute.Bool("redirect.navigate", decision.Navigate),
	)
	metrics.RecordRedirect(ctx, decision.Target, decision.Navigate)
	return decision
}

func (r *Router) takeSwitchNotice(ctx context.Context, sessionID string) *Notice {
	if r.markers == nil || sessionID == "" {
		return nil
	}

	role, ok, err := r.markers.Take(ctx, sessionID)
	if err != nil {
		r.log.Warn("Failed to read role switch marker",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}

	style := role.Describe()
	return &Notice{
		Kind:    NoticeRoleSwitched,
		Message: fmt.Sprintf("%s You are now signed in as %s", style.Emoji, style.Label),
		Role:    domain.RolePtr(role),
		Style:   &style,
	}
}
