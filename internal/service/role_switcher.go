package service

import (
	"context"
	"errors"
	"time"

	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/internal/redirect"
	"github.com/soulmechanik/forems-portal/internal/repository"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// ReasonSwitchFailed is shown when the backend gives no reason
	ReasonSwitchFailed = "Failed to switch role. Please try again."
	// ReasonRoleNotGranted is shown for a role the account does not hold
	ReasonRoleNotGranted = "Your account does not have this role."
)

// SwitchResult is the outcome of a role switch request
type SwitchResult struct {
	// Switched is false for a same-role no-op
	Switched   bool
	Token      domain.Token
	ActiveRole *domain.Role
	// Redirect is the page the client must load with a full navigation
	Redirect string
}

// RoleSwitcher changes the active role of a session
type RoleSwitcher interface {
	// SwitchRole asks the backend to activate target. On failure the
	// session is left unchanged.
	SwitchRole(ctx context.Context, token domain.Token, target string) (*SwitchResult, error)
}

// RoleSwitcherConfig contains configuration for the role switcher
type RoleSwitcherConfig struct {
	Timeout time.Duration
}

type roleSwitcher struct {
	backend   IdentityBackend
	sessions  SessionService
	markers   repository.MarkerStore
	lock      repository.SwitchLock
	publisher EventPublisher
	timeout   time.Duration
	log       *logger.Logger
}

// NewRoleSwitcher creates a new role switcher
func NewRoleSwitcher(
	backend IdentityBackend,
	sessions SessionService,
	markers repository.MarkerStore,
	lock repository.SwitchLock,
	publisher EventPublisher,
	cfg *RoleSwitcherConfig,
	log *logger.Logger,
) RoleSwitcher {
	timeout := 10 * time.Second
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &roleSwitcher{
		backend:   backend,
		sessions:  sessions,
		markers:   markers,
		lock:      lock,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

// SwitchRole asks the backend to activate target
func (r *roleSwitcher) SwitchRole(ctx context.Context, token domain.Token, target string) (*SwitchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.role_switcher.switch_role")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", token.SessionID),
		attribute.String("role.target", target),
	)

	role, err := domain.ParseRole(target)
	if err != nil {
		span.SetStatus(codes.Error, "unknown role")
		metrics.RecordRoleSwitch(ctx, "unknown", "invalid")
		return nil, err
	}
	if token.IsEmpty() {
		span.SetStatus(codes.Error, "no session")
		return nil, domain.ErrInvalidSession
	}

	if token.ActiveRoleIs(role) {
		metrics.RecordRoleSwitch(ctx, string(role), "noop")
		return &SwitchResult{Token: token, ActiveRole: domain.RolePtr(role)}, nil
	}
	if !token.HasRole(role) {
		span.SetStatus(codes.Error, "role not granted")
		metrics.RecordRoleSwitch(ctx, string(role), "invalid")
		return nil, domain.NewAuthError(domain.ErrRoleNotGranted, ReasonRoleNotGranted, nil)
	}

	release, err := r.lock.Acquire(ctx, token.SessionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrSwitchInProgress) {
			metrics.RecordRoleSwitch(ctx, string(role), "busy")
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("Failed to release role switch lock",
				zap.String("session_id", token.SessionID),
				zap.Error(err),
			)
		}
	}()

	confirmed, err := r.callBackend(ctx, token, role)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRoleSwitch(ctx, string(role), "failed")
		r.log.Warn("Role switch rejected",
			zap.String("session_id", token.SessionID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := r.sessions.Update(ctx, token, domain.UpdateEvent{
		Trigger:  domain.TriggerRoleSwitch,
		Override: &domain.SessionPatch{ActiveRole: domain.RolePtr(confirmed)},
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRoleSwitch(ctx, string(role), "failed")
		return nil, err
	}

	// the refreshed session must carry the role the backend activated
	if !result.Token.ActiveRoleIs(confirmed) {
		span.SetStatus(codes.Error, "confirmed role not granted")
		metrics.RecordRoleSwitch(ctx, string(confirmed), "failed")
		r.log.Error("Backend activated a role the session does not hold",
			zap.String("session_id", token.SessionID),
			zap.String("requested", string(role)),
			zap.String("confirmed", string(confirmed)),
		)
		return nil, domain.NewAuthError(domain.ErrRoleNotGranted, ReasonRoleNotGranted, nil)
	}

	if err := r.markers.Put(ctx, token.SessionID, confirmed); err != nil {
		r.log.Warn("Failed to record role switch marker",
			zap.String("session_id", token.SessionID),
			zap.Error(err),
		)
	}

	if err := r.publisher.PublishRoleSwitched(ctx, result.Token, token.ActiveRole); err != nil {
		r.log.Warn("Failed to publish role switch event",
			zap.String("session_id", token.SessionID),
			zap.Error(err),
		)
	}

	metrics.RecordRoleSwitch(ctx, string(confirmed), "success")
	return &SwitchResult{
		Switched:   true,
		Token:      result.Token,
		ActiveRole: result.Token.ActiveRole,
		Redirect:   redirect.EntryPath,
	}, nil
}

// callBackend performs the bounded switch call and returns the role the
// backend confirmed, falling back to the requested one.
func (r *roleSwitcher) callBackend(ctx context.Context, token domain.Token, role domain.Role) (domain.Role, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.backend.SwitchRole(callCtx, token.BackendCredential, role)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return "", domain.NewAuthError(domain.ErrConnectionTimeout, "Role switch timed out. Please try again.", err)
		case errors.Is(err, backend.ErrRejected):
			reason := backend.ReasonOf(err)
			if reason == "" {
				reason = ReasonSwitchFailed
			}
			return "", domain.NewAuthError(domain.ErrBackendRejected, reason, err)
		default:
			return "", domain.NewAuthError(domain.ErrUnknownAuth, ReasonSwitchFailed, err)
		}
	}

	if resp != nil && resp.User != nil && resp.User.LastActiveRole.Set && resp.User.LastActiveRole.Value != nil {
		if confirmed, err := domain.ParseRole(*resp.User.LastActiveRole.Value); err == nil {
			return confirmed, nil
		}
	}
	return role, nil
}
