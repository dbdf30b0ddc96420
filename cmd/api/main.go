package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/gestasaas/gesta-api/internal/api/http"
	"github.com/gestasaas/gesta-api/internal/api/http/handlers"
	"github.com/gestasaas/gesta-api/internal/auth"
	"github.com/gestasaas/gesta-api/internal/config"
	"github.com/gestasaas/gesta-api/internal/events"
	"github.com/gestasaas/gesta-api/internal/observability"
	"github.com/gestasaas/gesta-api/internal/persistence"
	"github.com/gestasaas/gesta-api/internal/repository"
	"github.com/gestasaas/gesta-api/internal/service"
	"github.com/gestasaas/gesta-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Auth.EphemeralSecret {
		msg := "AUTH_JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart"
		if cfg.App.IsProduction() {
			logger.Error(msg)
		} else {
			logger.Warn(msg)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var userRepo repository.UserRepository
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pg.Pool)
	} else {
		if cfg.App.IsProduction() {
			logger.Fatal("POSTGRES_DSN is required in production")
		}
		logger.Warn("using in-memory user store; accounts are lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var throttle auth.LoginThrottle
	if redis.Configured() {
		throttle = auth.NewRedisThrottle(redis.Client, cfg.Auth.LoginMaxFailures, cfg.Auth.LoginFailureWindow())
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.AccessTokenTTL(),
		Issuer: cfg.Auth.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authService, err := service.NewAuthService(service.AuthDependencies{
		Users:      userRepo,
		Hasher:     hasher,
		Tokens:     tokens,
		Throttle:   throttle,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	migrationService := service.NewMigrationService(service.MigrationDependencies{
		Users:      userRepo,
		Hasher:     hasher,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	mountAdmin := cfg.Auth.MigrationAdminToken != "" || !cfg.App.IsProduction()
	if !mountAdmin {
		logger.Info("MIGRATION_ADMIN_TOKEN not set; password migration endpoints disabled")
	} else if cfg.Auth.MigrationAdminToken == "" {
		logger.Warn("password migration endpoints are unauthenticated outside production")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:          handlers.NewUsersHandler(authService, cfg.Auth.LoginFailureWindow()),
		Migration:      handlers.NewMigrationHandler(migrationService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), userRepo),
		Metrics:        metrics.Handler(),
		AdminToken:     cfg.Auth.MigrationAdminToken,
		MountAdmin:     mountAdmin,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
