package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/config"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/telemetry"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/handlers"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Sessions     *usecase.SessionService
	Passwords    *usecase.PasswordService
	TwoFactor    *usecase.TwoFactorService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Metrics     *telemetry.Metrics
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if origins := deps.Config.App.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	guard := middleware.NewAccessGuard(deps.Metrics)

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, deps.Services.Registration)
		authHandler.RegisterRoutes(api.Group("/auth"), handlers.AuthRouteMiddlewares{
			Register: rateLimitChain(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			Login:    rateLimitChain(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
			Refresh:  rateLimitChain(deps, "auth_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts),
		})

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Auth, deps.Services.Passwords)
		passwordHandler.RegisterRoutes(api.Group("/password"),
			rateLimitChain(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts)...)

		twoFactorHandler := handlers.NewTwoFactorHandler(deps.Services.Auth, deps.Services.TwoFactor)
		twoFactorHandler.RegisterRoutes(api.Group("/2fa"))

		sessionHandler := handlers.NewSessionHandler(deps.Services.Auth, deps.Services.Sessions)
		sessionHandler.RegisterRoutes(api.Group("/sessions"))

		admin := api.Group("/admin")
		sessionHandler.RegisterAdminRoutes(admin, guard)

		accountHandler := handlers.NewAccountHandler(deps.Services.Auth, deps.Services.Registration, deps.Services.Sessions)
		accountHandler.RegisterAdminRoutes(admin, guard)
	}

	return r
}

// rateLimitChain builds a per-IP sliding-window middleware chain for one
// route. A zero limit disables the rule.
func rateLimitChain(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
