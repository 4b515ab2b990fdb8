package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/di"
	"github.com/soulmechanik/forems-portal/internal/metrics"
	"github.com/soulmechanik/forems-portal/internal/oauth"
	"github.com/soulmechanik/forems-portal/internal/repository"
	"github.com/soulmechanik/forems-portal/internal/service"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/config"
	"github.com/soulmechanik/forems-portal/pkg/database"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/middleware"
	"github.com/soulmechanik/forems-portal/pkg/redis"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Forems Portal...")

	ctx := context.Background()

	// Initialize OpenTelemetry
	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
			SampleRatio:    cfg.OTel.SampleRatio,
			MetricInterval: cfg.OTel.MetricInterval,
		}); err != nil {
			appLog.Warn(fmt.Sprintf("Failed to initialize telemetry: %v", err))
		} else {
			appLog.Info(fmt.Sprintf("OpenTelemetry initialized (collector: %s)", cfg.OTel.CollectorAddr))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(shutdownCtx)
			}()
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to initialize metrics: %v", err))
	}

	if err := cfg.ValidateGoogle(); err != nil {
		appLog.Warn(fmt.Sprintf("Google sign-in is not configured: %v", err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx, repository.SessionSchema...); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to apply session schema: %v", err))
	}
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis
	redisClient, err := redis.NewClient(ctx, &redis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: time.Second,
		EnableTracing: cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info(fmt.Sprintf("Redis connected (%s)", cfg.Redis.Addr()))

	// Initialize event publisher
	var publisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka unavailable, auth events disabled: %v", err))
		} else {
			publisher = kafkaPublisher
			appLog.Info(fmt.Sprintf("Auth events publishing to topic %s", cfg.Kafka.Topic))
		}
	}
	defer publisher.Close()

	// Session cookie
	codec, err := session.NewCodec(session.CodecConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.SessionTTL,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build session codec: %v", err))
	}
	manager := session.NewManager(codec, session.CookieConfig{
		Name:   cfg.JWT.CookieName,
		Secure: cfg.JWT.SecureOnly,
	}, appLog)

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		ServiceName: cfg.App.Name,
		DB:          db,
		Redis:       redisClient,
		Backend: backend.NewClient(backend.Config{
			BaseURL:        cfg.Backend.BaseURL,
			DefaultTimeout: cfg.Backend.DefaultTimeout,
		}),
		Provider: oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			UserInfoURL:  cfg.Google.UserInfoURL,
		}),
		Sessions:    manager,
		SessionRepo: repository.NewPostgresSessionRepository(db.Pool()),
		Markers:     repository.NewRedisMarkerStore(redisClient, cfg.Redirect.MarkerTTL),
		SwitchLock:  repository.NewRedisSwitchLock(redisClient, cfg.Redirect.SwitchLockTTL),
		Publisher:   publisher,
		ServiceConfig: &di.ServiceConfig{
			IdentityTimeout: cfg.Backend.IdentityTimeout,
			WhoAmITimeout:   cfg.Backend.WhoAmITimeout,
			SwitchTimeout:   cfg.Backend.SwitchTimeout,
			NavigationDelay: cfg.Redirect.NavigationDelay,
		},
		Log: appLog,
	})

	// Setup Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	router.Use(middleware.Logger(appLog, "/health", "/ready"))
	router.Use(middleware.CORS(cfg.Server.AllowOrigins))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRedisLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		})
		appLog.Info(fmt.Sprintf("Rate limiting sign-in and role switch (%.2f rps, burst %d)",
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	registerRoutes(router, container, limiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Forems Portal listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

// registerRoutes mounts the browser and API surface behind the session middleware.
// A nil limiter leaves every route unthrottled.
func registerRoutes(router *gin.Engine, c *di.Container, limiter middleware.Limiter) {
	r := router.Group("", c.Sessions.Middleware())

	var throttle gin.HandlerFunc = func(ctx *gin.Context) { ctx.Next() }
	if limiter != nil {
		throttle = middleware.RateLimit(limiter, logger.Get().With(zap.String("component", "rate_limit")))
	}

	auth := r.Group("/auth")
	{
		auth.GET("/google/login", c.AuthHandler.GoogleLogin)
		auth.GET("/google/callback", throttle, c.AuthHandler.GoogleCallback)
		auth.GET("/redirect", c.RedirectHandler.Redirect)
		auth.POST("/signout", c.AuthHandler.SignOut)
	}

	api := r.Group("/api")
	{
		api.GET("/auth/session", c.SessionHandler.Get)
		api.POST("/auth/session", c.SessionHandler.Update)

		api.POST("/auth/request-password-reset", throttle, c.AccountHandler.RequestPasswordReset)
		api.POST("/auth/reset-password", c.AccountHandler.ResetPassword)
		api.GET("/auth/verify-email", c.AccountHandler.VerifyEmail)
		api.POST("/auth/resend-verification", throttle, c.AccountHandler.ResendVerification)

		protected := api.Group("", c.Sessions.Require())
		{
			protected.POST("/auth/switch-role", throttle, c.RoleHandler.SwitchRole)
			protected.GET("/property/joinable", c.PropertyHandler.Joinable)
		}
	}
}
