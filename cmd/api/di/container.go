package di

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"newspaper/cmd/api/infrastructure"
	"newspaper/internal/adapter/cache"
	"newspaper/internal/adapter/db/gormrepo"
	ginhandler "newspaper/internal/adapter/gin/handler"
	"newspaper/internal/adapter/gin/middleware"
	ginrouter "newspaper/internal/adapter/gin/router"
	"newspaper/internal/adapter/gin/templates"
	"newspaper/internal/adapter/mail"
	"newspaper/internal/adapter/repository/cached"
	"newspaper/internal/config"
	"newspaper/internal/metrics"
	"newspaper/internal/usecase/auth"
	"newspaper/internal/usecase/user"
	apperrors "newspaper/pkg/errors"
	redisclient "newspaper/pkg/redis"
	"newspaper/pkg/security"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client
	// DBSessions is set when sessions live in the database; it owns expiry cleanup.
	DBSessions *gormrepo.SessionRepo
	UserUC     user.Usecase
	AuthUC     auth.Usecase
	Mailer     *mail.LogMailer
	Registry   *prometheus.Registry
	Router     *gin.Engine
}

// NewContainer creates and initializes all application dependencies
func NewContainer(cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}

	// Initialize database
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	// Initialize Redis client
	rdb, err := infrastructure.NewRedisClient(cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	c.RedisClient = rdb

	// Initialize repositories
	var userCache cache.UserCache
	if rdb != nil {
		userCache = cache.NewRedisUserCache(rdb.Client, cfg.Redis.CacheTTL, l)
	}
	userRepo := cached.NewUserRepository(gormrepo.NewUserRepo(db, l), userCache, l)

	var sessions auth.SessionStore
	switch cfg.Session.Engine {
	case "redis":
		sessions = cache.NewRedisSessionStore(rdb.Client, l)
	default:
		c.DBSessions = gormrepo.NewSessionRepo(db, l)
		sessions = c.DBSessions
	}

	// Initialize use cases
	hasher := security.NewPasswordHasher(security.Argon2Params{
		Time:    cfg.Auth.Argon2Time,
		Memory:  cfg.Auth.Argon2MemoryKiB,
		Threads: cfg.Auth.Argon2Threads,
		KeyLen:  security.DefaultArgon2Params.KeyLen,
		SaltLen: security.DefaultArgon2Params.SaltLen,
	})
	userUC := user.New(userRepo, hasher, l)
	c.UserUC = userUC

	c.Mailer = mail.NewLogMailer(cfg.Auth.DefaultFromEmail, l)
	authUC := auth.New(
		userRepo,
		sessions,
		hasher,
		security.NewResetTokenGenerator(cfg.App.SecretKey, cfg.Auth.PasswordResetTimeout),
		c.Mailer,
		auth.Config{
			SecretKey:  cfg.App.SecretKey,
			SessionTTL: cfg.Session.MaxAge,
			FromEmail:  cfg.Auth.DefaultFromEmail,
		},
		l,
	)
	c.AuthUC = authUC

	if err := ensureSuperuser(context.Background(), userUC, cfg.Superuser, l); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to create superuser: %w", err)
	}

	// Initialize metrics
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(c.Registry)

	renderer, err := templates.New()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// Initialize rate limiter
	var rateLimiter *middleware.RateLimiter
	if rdb != nil {
		rateLimiter = middleware.NewRateLimiter(
			rdb.Client,
			middleware.RateLimiterConfig{
				Enabled:           cfg.RateLimit.Enabled,
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
			},
			collector,
			l,
		)
	}

	checks := map[string]ginhandler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = rdb.Healthy
	}

	cookie := middleware.SessionCookie{
		Name:   cfg.Session.CookieName,
		MaxAge: int(cfg.Session.MaxAge / time.Second),
		Secure: cfg.Session.Secure,
	}

	c.Router = ginrouter.SetupRouter(
		ginrouter.Config{
			Debug:          cfg.App.Debug,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			CSRF:           middleware.CSRFConfig{CookieSecure: cfg.Session.Secure},
			SessionCookie:  cookie,
		},
		ginrouter.Dependencies{
			Renderer:      renderer,
			Authenticator: authUC,
			Signup:        ginhandler.NewSignupHandler(userUC, collector, l),
			Auth:          ginhandler.NewAuthHandler(authUC, cookie, cfg.Auth.LoginRedirectURL, cfg.App.SiteURL, collector, l),
			Admin:         ginhandler.NewAdminHandler(userUC, l),
			Health:        ginhandler.NewHealthHandler(cfg.Logger.ServiceName, checks),
			RateLimiter:   rateLimiter,
			Metrics:       collector,
			MetricsHTTP:   metrics.Handler(c.Registry),
		},
		l,
	)

	return c, nil
}

// ensureSuperuser creates the configured superuser unless the username is
// already taken.
func ensureSuperuser(ctx context.Context, uc user.Usecase, su config.SuperuserConfig, l *zap.Logger) error {
	if su.Username == "" {
		return nil
	}

	_, err := uc.GetUserByUsername(ctx, su.Username)
	if err == nil {
		l.Debug("superuser already exists", zap.String("username", su.Username))
		return nil
	}
	var nf *apperrors.NotFoundError
	if !apperrors.As(err, &nf) {
		return err
	}

	resp, err := uc.CreateSuperuser(ctx, user.CreateUserRequest{
		Username: su.Username,
		Email:    su.Email,
		Password: su.Password,
	})
	if err != nil {
		return err
	}

	l.Info("superuser created", zap.Int64("id", resp.ID), zap.String("username", su.Username))
	return nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
