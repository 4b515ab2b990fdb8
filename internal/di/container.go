package di

import (
	"time"

	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/handler"
	"github.com/soulmechanik/forems-portal/internal/redirect"
	"github.com/soulmechanik/forems-portal/internal/repository"
	"github.com/soulmechanik/forems-portal/internal/service"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/database"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/redis"
	"go.uber.org/zap"
)

// Container holds all dependencies for the portal
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Backend  *backend.Client
	Sessions *session.Manager

	// Repositories
	SessionRepo repository.SessionRepository
	Markers     repository.MarkerStore
	SwitchLock  repository.SwitchLock

	// Services
	Publisher      service.EventPublisher
	SessionService service.SessionService
	RoleSwitcher   service.RoleSwitcher
	Router         *redirect.Router

	// Handlers
	HealthHandler   *handler.HealthHandler
	AuthHandler     *handler.AuthHandler
	SessionHandler  *handler.SessionHandler
	RoleHandler     *handler.RoleHandler
	RedirectHandler *handler.RedirectHandler
	PropertyHandler *handler.PropertyHandler
	AccountHandler  *handler.AccountHandler
}

// ServiceConfig carries the per-operation bounds
type ServiceConfig struct {
	IdentityTimeout time.Duration
	WhoAmITimeout   time.Duration
	SwitchTimeout   time.Duration
	NavigationDelay time.Duration
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	ServiceName string

	DB       *database.PostgresDB
	Redis    *redis.Client
	Backend  *backend.Client
	Provider handler.IdentityProvider
	Sessions *session.Manager

	SessionRepo repository.SessionRepository
	Markers     repository.MarkerStore
	SwitchLock  repository.SwitchLock
	Publisher   service.EventPublisher

	ServiceConfig *ServiceConfig
	Log           *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	svcCfg := cfg.ServiceConfig
	if svcCfg == nil {
		svcCfg = &ServiceConfig{}
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = service.NewNoOpEventPublisher()
	}

	c := &Container{
		DB:          cfg.DB,
		Redis:       cfg.Redis,
		Backend:     cfg.Backend,
		Sessions:    cfg.Sessions,
		SessionRepo: cfg.SessionRepo,
		Markers:     cfg.Markers,
		SwitchLock:  cfg.SwitchLock,
		Publisher:   publisher,
	}

	// Initialize services
	bridge := service.NewIdentityBridge(c.Backend, &service.IdentityBridgeConfig{
		Timeout: svcCfg.IdentityTimeout,
	})
	store := service.NewTokenStore(c.Backend, &service.TokenStoreConfig{
		WhoAmITimeout: svcCfg.WhoAmITimeout,
	}, log.With(zap.String("component", "token_store")))

	c.SessionService = service.NewSessionService(bridge, store, c.SessionRepo, c.Markers, c.Publisher,
		log.With(zap.String("component", "session_service")))
	c.RoleSwitcher = service.NewRoleSwitcher(c.Backend, c.SessionService, c.Markers, c.SwitchLock, c.Publisher,
		&service.RoleSwitcherConfig{Timeout: svcCfg.SwitchTimeout},
		log.With(zap.String("component", "role_switcher")))

	var routerCfg *redirect.RouterConfig
	if cfg.ServiceConfig != nil {
		routerCfg = &redirect.RouterConfig{NavigationDelay: svcCfg.NavigationDelay}
	}
	c.Router = redirect.NewRouter(c.Markers, routerCfg, log.With(zap.String("component", "redirect")))

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(cfg.ServiceName, c.healthChecks())
	c.AuthHandler = handler.NewAuthHandler(cfg.Provider, c.SessionService, c.Sessions, log)
	c.SessionHandler = handler.NewSessionHandler(c.SessionService, c.Sessions, log)
	c.RoleHandler = handler.NewRoleHandler(c.RoleSwitcher, c.Sessions, log)
	c.RedirectHandler = handler.NewRedirectHandler(c.Router, c.Sessions)
	c.PropertyHandler = handler.NewPropertyHandler(c.Backend)
	c.AccountHandler = handler.NewAccountHandler(c.Backend)

	return c
}

// healthChecks lists readiness dependencies. Absent ones report not_configured.
func (c *Container) healthChecks() map[string]handler.HealthChecker {
	checks := map[string]handler.HealthChecker{
		"database": nil,
		"redis":    nil,
	}
	if c.DB != nil {
		checks["database"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	if hc, ok := c.Publisher.(handler.HealthChecker); ok {
		checks["kafka"] = hc
	}
	return checks
}
