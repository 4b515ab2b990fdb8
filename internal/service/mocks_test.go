package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/repository"
)

// MockIdentityBackend is a mock implementation of IdentityBackend
type MockIdentityBackend struct {
	mu              sync.Mutex
	GoogleAuthFunc  func(ctx context.Context, req dto.GoogleAuthRequest) (*dto.GoogleAuthResponse, error)
	MeFunc          func(ctx context.Context, credential string) (*dto.MeResponse, error)
	SwitchRoleFunc  func(ctx context.Context, credential string, role domain.Role) (*dto.SwitchRoleResponse, error)
	googleAuthCalls int
	meCalls         int
	switchCalls     int
}

func (m *MockIdentityBackend) GoogleAuth(ctx context.Context, req dto.GoogleAuthRequest) (*dto.GoogleAuthResponse, error) {
	m.mu.Lock()
	m.googleAuthCalls++
	m.mu.Unlock()
	if m.GoogleAuthFunc != nil {
		return m.GoogleAuthFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *MockIdentityBackend) Me(ctx context.Context, credential string) (*dto.MeResponse, error) {
	m.mu.Lock()
	m.meCalls++
	m.mu.Unlock()
	if m.MeFunc != nil {
		return m.MeFunc(ctx, credential)
	}
	return &dto.MeResponse{User: &dto.BackendUser{}}, nil
}

func (m *MockIdentityBackend) SwitchRole(ctx context.Context, credential string, role domain.Role) (*dto.SwitchRoleResponse, error) {
	m.mu.Lock()
	m.switchCalls++
	m.mu.Unlock()
	if m.SwitchRoleFunc != nil {
		return m.SwitchRoleFunc(ctx, credential, role)
	}
	r := string(role)
	return &dto.SwitchRoleResponse{User: &dto.BackendUser{LastActiveRole: dto.Some(&r)}}, nil
}

func (m *MockIdentityBackend) calls() (google, me, switchRole int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.googleAuthCalls, m.meCalls, m.switchCalls
}

// MockSessionRepository records calls to SessionRepository
type MockSessionRepository struct {
	mu        sync.Mutex
	created   []*domain.SessionRecord
	touched   []string
	revoked   map[string]domain.RevokeReason
	CreateErr error
	RevokeErr error
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{revoked: map[string]domain.RevokeReason{}}
}

func (m *MockSessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.created = append(m.created, record)
	return nil
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string, activeRole *domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	return nil
}

func (m *MockSessionRepository) Revoke(ctx context.Context, id string, reason domain.RevokeReason, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RevokeErr != nil {
		return m.RevokeErr
	}
	if _, ok := m.revoked[id]; !ok {
		m.revoked[id] = reason
	}
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.SessionRecord, error) {
	return nil, nil
}

// MockMarkerStore is an in-memory MarkerStore
type MockMarkerStore struct {
	mu      sync.Mutex
	markers map[string]domain.Role
	PutErr  error
}

func NewMockMarkerStore() *MockMarkerStore {
	return &MockMarkerStore{markers: map[string]domain.Role{}}
}

func (m *MockMarkerStore) Put(ctx context.Context, sessionID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.markers[sessionID] = role
	return nil
}

func (m *MockMarkerStore) Take(ctx context.Context, sessionID string) (domain.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.markers[sessionID]
	delete(m.markers, sessionID)
	return role, ok, nil
}

func (m *MockMarkerStore) Drop(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, sessionID)
	return nil
}

// MockSwitchLock is an in-memory SwitchLock
type MockSwitchLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
}

func NewMockSwitchLock() *MockSwitchLock {
	return &MockSwitchLock{held: map[string]bool{}}
}

func (m *MockSwitchLock) Acquire(ctx context.Context, sessionID string) (repository.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[sessionID] {
		return nil, domain.ErrSwitchInProgress
	}
	m.held[sessionID] = true
	m.acquires++
	return func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, sessionID)
		m.releases++
		return nil
	}, nil
}

func (m *MockSwitchLock) isHeld(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[sessionID]
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu       sync.Mutex
	signedIn []domain.Token
	switched []domain.Token
	revoked  []domain.RevokeReason
	err      error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishSignedIn(ctx context.Context, token domain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedIn = append(m.signedIn, token)
	return m.err
}

func (m *MockEventPublisher) PublishRoleSwitched(ctx context.Context, token domain.Token, from *domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switched = append(m.switched, token)
	return m.err
}

func (m *MockEventPublisher) PublishSessionRevoked(ctx context.Context, token domain.Token, reason domain.RevokeReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, reason)
	return m.err
}

func (m *MockEventPublisher) Close() error {
	return nil
}

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

// backendUser builds a full identity record
func backendUser(id string, roles []string, active *string, onboarded, verified bool) *dto.BackendUser {
	return &dto.BackendUser{
		ID:             dto.Some(id),
		Email:          dto.Some(id + "@example.com"),
		Name:           dto.Some("User " + id),
		Roles:          dto.Some(roles),
		LastActiveRole: dto.Some(active),
		Onboarded:      dto.Some(onboarded),
		Verified:       dto.Some(verified),
	}
}
