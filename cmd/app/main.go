package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/bohemiyan/supportdesk/internal/auth"
	"github.com/bohemiyan/supportdesk/internal/config"
	"github.com/bohemiyan/supportdesk/internal/db"
	"github.com/bohemiyan/supportdesk/internal/routes"
	"github.com/bohemiyan/supportdesk/zapLogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := zapLogger.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgDB, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pgDB.Close()
	logger.Info("Successfully connected to PostgreSQL database")

	redisDB, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisDB != nil {
		defer redisDB.Close()
		logger.Info("Successfully connected to Redis")
	} else {
		logger.Info("Redis not configured, permission cache disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := rbac.New(rbac.Config{
		DB:                  pgDB.GormDB,
		RedisClient:         redisDB,
		CacheTTL:            cfg.CacheTTL,
		CachePrefix:         cfg.CachePrefix,
		PermissionProcedure: cfg.PermissionProcedure,
		AutoMigrate:         cfg.AutoMigrate,
		Logger:              logger,
		Registerer:          registry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize role service: %w", err)
	}
	if cfg.AutoMigrate {
		if err := svc.SeedDefaults(ctx); err != nil {
			return err
		}
	}

	authn, err := auth.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		return err
	}

	app := routes.NewApp(logger, cfg.MaskCheckFailures)
	app.Use(zapLogger.FiberLoggingMiddleware(logger))
	routes.Setup(app, routes.Deps{
		Service: svc,
		Guard: rbac.NewGuard(svc, rbac.GuardOptions{
			MaxConcurrentChecks: cfg.MaxConcurrentChecks,
			Metrics:             svc.Metrics(),
			Logger:              logger,
		}),
		Auth: authn,
		DB:   pgDB.GormDB,
		Validator: access.NewTicketValidator(access.TicketRules{
			RequireTeam:     cfg.TicketRequireTeam,
			RequireCategory: cfg.TicketRequireCategory,
			RequireAssignee: cfg.TicketRequireAssignee,
		}),
		Gatherer: registry,
		Health:   pgDB.Ping,
		Log:      logger,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.AppPort)
		logger.Infof("Server started on port %d", cfg.AppPort)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
