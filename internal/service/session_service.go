package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/internal/repository"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ClientMeta describes the browser a session was opened from
type ClientMeta struct {
	UserAgent string
	IP        string
}

// SessionService defines the browser session lifecycle
type SessionService interface {
	// SignIn exchanges a provider identity and opens a session
	SignIn(ctx context.Context, identity GoogleIdentity, meta ClientMeta) (domain.Token, error)

	// Update handles an explicit update event
	Update(ctx context.Context, token domain.Token, event domain.UpdateEvent) (*RefreshResult, error)

	// SignOut tears the session down. The caller clears the cookie regardless
	// of the returned error.
	SignOut(ctx context.Context, token domain.Token, reason domain.RevokeReason) error
}

type sessionService struct {
	bridge    IdentityBridge
	store     TokenStore
	repo      repository.SessionRepository
	markers   repository.MarkerStore
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	bridge IdentityBridge,
	store TokenStore,
	repo repository.SessionRepository,
	markers repository.MarkerStore,
	publisher EventPublisher,
	log *logger.Logger,
) SessionService {
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &sessionService{
		bridge:    bridge,
		store:     store,
		repo:      repo,
		markers:   markers,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// SignIn exchanges a provider identity and opens a session
func (s *sessionService) SignIn(ctx context.Context, identity GoogleIdentity, meta ClientMeta) (domain.Token, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.sign_in")
	defer span.End()

	result, err := s.bridge.Exchange(ctx, identity)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordSignIn(ctx, signInOutcome(err))
		s.log.Warn("Identity exchange failed", zap.Error(err))
		return domain.Token{}, err
	}

	token, err := s.store.Initialize(ctx, result)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordSignIn(ctx, "invalid")
		return domain.Token{}, domain.NewAuthError(domain.ErrBackendRejected, ReasonInvalidResponse, err)
	}

	span.SetAttributes(
		attribute.String("session.id", token.SessionID),
		attribute.String("user.id", token.UserID),
	)

	if s.repo != nil {
		record := &domain.SessionRecord{
			ID:         token.SessionID,
			UserID:     token.UserID,
			Email:      token.Email,
			ActiveRole: token.ActiveRole,
			UserAgent:  meta.UserAgent,
			IP:         meta.IP,
			CreatedAt:  token.IssuedAt,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			s.log.Error("Failed to record session", zap.String("session_id", token.SessionID), zap.Error(err))
		}
	}

	if err := s.publisher.PublishSignedIn(ctx, token); err != nil {
		s.log.Warn("Failed to publish sign-in event", zap.String("session_id", token.SessionID), zap.Error(err))
	}

	metrics.RecordSignIn(ctx, "success")
	s.log.Info(fmt.Sprintf("Session %s opened for user %s", token.SessionID, token.UserID))
	return token, nil
}

// Update refreshes the token and keeps the session record in step
func (s *sessionService) Update(ctx context.Context, token domain.Token, event domain.UpdateEvent) (*RefreshResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.session.update")
	defer span.End()

	result, err := s.store.Refresh(ctx, token, event)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrAuthorizationRevoked) {
			_ = s.teardown(ctx, token, domain.RevokeUnauthorized)
		}
		return result, err
	}

	if result.Outcome == RefreshOK && s.repo != nil {
		if err := s.repo.Touch(ctx, token.SessionID, result.Token.ActiveRole, s.now().UTC()); err != nil {
			s.log.Warn("Failed to touch session record", zap.String("session_id", token.SessionID), zap.Error(err))
		}
	}
	return result, nil
}

// SignOut tears the session down
func (s *sessionService) SignOut(ctx context.Context, token domain.Token, reason domain.RevokeReason) error {
	ctx, span := telemetry.StartSpan(ctx, "service.session.sign_out")
	defer span.End()

	if token.IsEmpty() {
		return nil
	}
	if err := s.teardown(ctx, token, reason); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// teardown revokes the record, drops the marker and announces the revocation.
// Every step runs even when an earlier one fails.
func (s *sessionService) teardown(ctx context.Context, token domain.Token, reason domain.RevokeReason) error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Revoke(ctx, token.SessionID, reason, s.now().UTC()); err != nil {
			errs = append(errs, err)
		}
	}
	if s.markers != nil {
		if err := s.markers.Drop(ctx, token.SessionID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.publisher.PublishSessionRevoked(ctx, token, reason); err != nil {
		s.log.Warn("Failed to publish revocation event", zap.String("session_id", token.SessionID), zap.Error(err))
	}

	metrics.RecordSignOut(ctx, string(reason))
	s.log.Info(fmt.Sprintf("Session %s closed: %s", token.SessionID, reason))

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("Session teardown incomplete", zap.String("session_id", token.SessionID), zap.Error(err))
	}
	return err
}

func signInOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrConnectionTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrBackendRejected):
		return "rejected"
	default:
		return "error"
	}
}
