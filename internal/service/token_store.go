package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// RefreshOutcome is how a refresh ended
type RefreshOutcome string

const (
	RefreshOK        RefreshOutcome = "ok"
	RefreshTransient RefreshOutcome = "transient"
	RefreshRevoked   RefreshOutcome = "revoked"
	RefreshInvalid   RefreshOutcome = "invalid"
)

// RefreshResult is the token after a refresh and how it got there
type RefreshResult struct {
	Token   domain.Token
	Outcome RefreshOutcome
}

// IdentityResult is a successful identity exchange
type IdentityResult struct {
	User       *dto.BackendUser
	Credential string
}

// TokenStore defines the session token lifecycle
type TokenStore interface {
	// Initialize builds the first token of a browser session
	Initialize(ctx context.Context, identity *IdentityResult) (domain.Token, error)

	// Refresh handles one update event. On revocation the returned token is
	// empty and the error wraps domain.ErrAuthorizationRevoked.
	Refresh(ctx context.Context, token domain.Token, event domain.UpdateEvent) (*RefreshResult, error)
}

// TokenStoreConfig contains configuration for the token store
type TokenStoreConfig struct {
	WhoAmITimeout time.Duration
}

type tokenStore struct {
	backend       IdentityBackend
	whoamiTimeout time.Duration
	log           *logger.Logger
	now           func() time.Time
}

// NewTokenStore creates a new token store
func NewTokenStore(backend IdentityBackend, cfg *TokenStoreConfig, log *logger.Logger) TokenStore {
	timeout := 5 * time.Second
	if cfg != nil && cfg.WhoAmITimeout > 0 {
		timeout = cfg.WhoAmITimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &tokenStore{
		backend:       backend,
		whoamiTimeout: timeout,
		log:           log,
		now:           time.Now,
	}
}

// Initialize runs [populate, normalize]
func (s *tokenStore) Initialize(ctx context.Context, identity *IdentityResult) (domain.Token, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token_store.initialize")
	defer span.End()

	if identity == nil || identity.User == nil {
		span.SetStatus(codes.Error, "missing identity")
		return domain.Token{}, domain.ErrInvalidSession
	}

	token, err := Pipeline{s.populateStep(identity), s.normalizeStep}.Run(ctx, domain.Token{})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Token{}, err
	}

	span.SetAttributes(attribute.String("session.id", token.SessionID))
	return token, nil
}

// Refresh runs [whoami-merge, override, normalize]
func (s *tokenStore) Refresh(ctx context.Context, token domain.Token, event domain.UpdateEvent) (*RefreshResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token_store.refresh")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", token.SessionID),
		attribute.String("refresh.trigger", string(event.Trigger)),
	)

	if token.IsEmpty() {
		metrics.RecordRefresh(ctx, string(event.Trigger), string(RefreshInvalid))
		return &RefreshResult{Outcome: RefreshInvalid}, domain.ErrInvalidSession
	}

	outcome := RefreshOK
	steps := Pipeline{
		s.whoamiStep(&outcome),
		overrideStep(event.Override),
		s.normalizeStep,
	}

	next, err := steps.Run(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthorizationRevoked):
			outcome = RefreshRevoked
		case errors.Is(err, domain.ErrInvalidSession):
			outcome = RefreshInvalid
		}
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("refresh.outcome", string(outcome)))
		metrics.RecordRefresh(ctx, string(event.Trigger), string(outcome))
		return &RefreshResult{Token: next, Outcome: outcome}, err
	}

	span.SetAttributes(attribute.String("refresh.outcome", string(outcome)))
	metrics.RecordRefresh(ctx, string(event.Trigger), string(outcome))
	return &RefreshResult{Token: next, Outcome: outcome}, nil
}

func (s *tokenStore) populateStep(identity *IdentityResult) TokenStep {
	return func(ctx context.Context, _ domain.Token) (domain.Token, error) {
		now := s.now().UTC()
		t := domain.Token{
			SessionID:         uuid.New().String(),
			Roles:             []domain.Role{},
			BackendCredential: identity.Credential,
			IssuedAt:          now,
			RefreshedAt:       now,
		}
		if identity.User.ID.Set {
			t.UserID = identity.User.ID.Value
		}
		return mergeUser(t, identity.User), nil
	}
}

// whoamiStep merges the backend's current identity record into the token.
// 401/403 rejects; any other failure keeps the token and records a transient outcome.
func (s *tokenStore) whoamiStep(outcome *RefreshOutcome) TokenStep {
	return func(ctx context.Context, t domain.Token) (domain.Token, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.whoamiTimeout)
		defer cancel()

		resp, err := s.backend.Me(callCtx, t.BackendCredential)
		if err != nil {
			if backend.IsUnauthorized(err) {
				s.log.Info("Backend revoked session credential",
					zap.String("session_id", t.SessionID),
					zap.Int("status", backend.StatusOf(err)),
				)
				return domain.Token{}, reject(fmt.Errorf("%w: %w", domain.ErrAuthorizationRevoked, err))
			}
			*outcome = RefreshTransient
			s.log.Warn("Session refresh failed, keeping current token",
				zap.String("session_id", t.SessionID),
				zap.Error(err),
			)
			return t, nil
		}
		if resp == nil || resp.User == nil {
			*outcome = RefreshTransient
			s.log.Warn("Session refresh returned no user, keeping current token",
				zap.String("session_id", t.SessionID),
			)
			return t, nil
		}

		merged := mergeUser(t, resp.User)
		merged.RefreshedAt = s.now().UTC()
		return merged, nil
	}
}

// overrideStep applies a client-supplied partial session after the merge
func overrideStep(patch *domain.SessionPatch) TokenStep {
	return func(ctx context.Context, t domain.Token) (domain.Token, error) {
		if patch.IsZero() {
			return t, nil
		}
		next := t.Clone()
		if patch.ActiveRole != nil {
			next = next.WithActiveRole(patch.ActiveRole)
		}
		if patch.Onboarded != nil {
			next.Onboarded = *patch.Onboarded
		}
		if patch.Verified != nil {
			next.Verified = *patch.Verified
		}
		if patch.HasActiveTenancy != nil {
			next.HasActiveTenancy = *patch.HasActiveTenancy
		}
		return next, nil
	}
}

// normalizeStep enforces the token invariants: a user id is present, roles
// are known and unique, and the active role is one of them.
func (s *tokenStore) normalizeStep(ctx context.Context, t domain.Token) (domain.Token, error) {
	if t.UserID == "" {
		return domain.Token{}, reject(domain.ErrInvalidSession)
	}

	roles := make([]domain.Role, 0, len(t.Roles))
	for _, r := range t.Roles {
		if !r.IsValid() {
			s.log.Debug("Dropping unknown role", zap.String("role", string(r)))
			continue
		}
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	next := t.WithRoles(roles)

	if next.ActiveRole != nil && !next.HasRole(*next.ActiveRole) {
		s.log.Warn("Active role is not granted, resetting to onboarding",
			zap.String("session_id", t.SessionID),
			zap.String("active_role", string(*next.ActiveRole)),
		)
		next = next.WithActiveRole(nil)
	}
	return next, nil
}

// mergeUser overwrites the token fields present in u. Absent fields keep
// their current value; an explicit null active role clears it.
func mergeUser(t domain.Token, u *dto.BackendUser) domain.Token {
	next := t.Clone()
	if u.Email.Set {
		next.Email = u.Email.Value
	}
	if u.Name.Set {
		next.Name = u.Name.Value
	}
	if u.Roles.Set {
		roles := make([]domain.Role, 0, len(u.Roles.Value))
		for _, r := range u.Roles.Value {
			roles = append(roles, domain.Role(r))
		}
		next.Roles = roles
	}
	if u.LastActiveRole.Set {
		next.ActiveRole = nil
		if u.LastActiveRole.Value != nil && *u.LastActiveRole.Value != "" {
			next.ActiveRole = domain.RolePtr(domain.Role(*u.LastActiveRole.Value))
		}
	}
	if u.Onboarded.Set {
		next.Onboarded = u.Onboarded.Value
	}
	if u.Verified.Set {
		next.Verified = u.Verified.Value
	}
	if u.HasActiveTenancy.Set {
		next.HasActiveTenancy = u.HasActiveTenancy.Value
	}
	return next
}
