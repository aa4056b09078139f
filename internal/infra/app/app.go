package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/config"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/database"
	kafkainfra "github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/kafka"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/logger"
	redisinfra "github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/redis"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/telemetry"
	postgresrepo "github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository/postgres"
	redisrepo "github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository/redis"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/middleware"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/transport/http/routes"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/usecase"
)

// Application owns the process-wide resources and the HTTP engine.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New builds the full service graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := telemetry.New(cfg.Telemetry.ServiceName)

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	tokenIssuer, err := security.NewTokenIssuer(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	hasher := security.NewBcryptHasher(cfg.Password.HashCost)
	totpProvider := security.NewTOTPProvider(cfg.TOTP.Issuer, cfg.TOTP.Skew)

	repos := postgresrepo.NewRepositories(pool)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	rateLimitTTL := cfg.Redis.RateLimitTTL
	if rateLimitTTL <= 0 {
		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitTTL = window * 2
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitTTL,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	lockoutPolicy := port.LockoutPolicy{
		MaxAttempts:  cfg.Lockout.MaxAttempts,
		LockDuration: cfg.Lockout.LockDuration,
	}

	sessionService := usecase.NewSessionService(repos.Accounts, repos.Sessions, tokenIssuer,
		eventPublisher, cfg.JWT.RefreshTokenTTL, log)
	sessionService.WithMetrics(metrics)
	authService := usecase.NewAuthService(repos.Accounts, hasher, tokenIssuer, totpProvider,
		sessionService, eventPublisher, lockoutPolicy, log)
	authService.WithMetrics(metrics)
	registrationService := usecase.NewRegistrationService(repos.Accounts, hasher, log)
	passwordService := usecase.NewPasswordService(repos.Accounts, repos.ResetTokens, hasher,
		sessionService, eventPublisher, cfg.JWT.ResetTokenTTL, log)
	twoFactorService := usecase.NewTwoFactorService(repos.Accounts, totpProvider, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Sessions:     sessionService,
			Passwords:    passwordService,
			TwoFactor:    twoFactorService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	// Flushes buffered events before exit.
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer failed", zap.Error(err))
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
