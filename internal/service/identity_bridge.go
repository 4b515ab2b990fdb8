package service

import (
	"context"
	"errors"
	"time"

	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// User-facing reasons for sign-in failures
const (
	ReasonTimeout         = "Connection to the authentication server timed out. Please try again."
	ReasonRejected        = "Authentication failed"
	ReasonInvalidResponse = "Invalid response from authentication server"
	ReasonUnavailable     = "Authentication is unavailable right now. Please try again."
)

// GoogleIdentity is a provider-verified identity
type GoogleIdentity struct {
	Email   string
	Name    string
	Subject string
}

// IdentityBridge exchanges a provider identity for an application identity
type IdentityBridge interface {
	// Exchange makes exactly one bounded backend call. Failures are
	// *domain.AuthError values carrying a user-presentable reason.
	Exchange(ctx context.Context, identity GoogleIdentity) (*IdentityResult, error)
}

// IdentityBridgeConfig contains configuration for the identity bridge
type IdentityBridgeConfig struct {
	Timeout time.Duration
}

type identityBridge struct {
	backend IdentityBackend
	timeout time.Duration
}

// NewIdentityBridge creates a new identity bridge
func NewIdentityBridge(backend IdentityBackend, cfg *IdentityBridgeConfig) IdentityBridge {
	timeout := 10 * time.Second
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &identityBridge{backend: backend, timeout: timeout}
}

// Exchange calls the backend's Google auth endpoint once
func (b *identityBridge) Exchange(ctx context.Context, identity GoogleIdentity) (*IdentityResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.identity_bridge.exchange")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.backend.GoogleAuth(callCtx, dto.GoogleAuthRequest{
		Email:    identity.Email,
		Name:     identity.Name,
		GoogleID: identity.Subject,
	})
	if err != nil {
		authErr := classifyExchangeError(err)
		span.SetStatus(codes.Error, authErr.Error())
		return nil, authErr
	}

	if resp == nil || resp.User == nil || !resp.User.ID.Set || resp.User.ID.Value == "" {
		span.SetStatus(codes.Error, "missing user id")
		return nil, domain.NewAuthError(domain.ErrBackendRejected, ReasonInvalidResponse, nil)
	}

	return &IdentityResult{User: resp.User, Credential: resp.Token}, nil
}

func classifyExchangeError(err error) *domain.AuthError {
	switch {
	case errors.Is(err, backend.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.NewAuthError(domain.ErrConnectionTimeout, ReasonTimeout, err)
	case errors.Is(err, backend.ErrRejected):
		reason := backend.ReasonOf(err)
		if reason == "" {
			reason = ReasonRejected
		}
		return domain.NewAuthError(domain.ErrBackendRejected, reason, err)
	default:
		// err can name internal hosts; it stays in the chain for logs only
		return domain.NewAuthError(domain.ErrUnknownAuth, ReasonUnavailable, err)
	}
}
