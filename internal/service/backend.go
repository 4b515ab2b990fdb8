package service

import (
	"context"

	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
)

// IdentityBackend is the part of the rental backend the session lifecycle calls.
// *backend.Client implements it.
type IdentityBackend interface {
	GoogleAuth(ctx context.Context, req dto.GoogleAuthRequest) (*dto.GoogleAuthResponse, error)
	Me(ctx context.Context, credential string) (*dto.MeResponse, error)
	SwitchRole(ctx context.Context, credential string, role domain.Role) (*dto.SwitchRoleResponse, error)
}
