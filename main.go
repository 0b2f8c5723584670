// Package main provides the main entry point for the Geovid API server
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Geovid/app/handlers"
	"github.com/amirphl/Geovid/app/middleware"
	"github.com/amirphl/Geovid/app/router"
	"github.com/amirphl/Geovid/app/scheduler"
	"github.com/amirphl/Geovid/app/services"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/amirphl/Geovid/config"
	"github.com/amirphl/Geovid/migrations"
	"github.com/amirphl/Geovid/repository"
	"github.com/amirphl/Geovid/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *slog.Logger
	stopFuncs []func()
	closers   []io.Closer
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser := utils.NewLogger(utils.LoggerOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		AddSource:  cfg.Logging.AddSource,
	})
	utils.InstallLogger(logger)
	logger.Info("Starting Geovid application", "env", cfg.Env)

	// Initialize application
	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
	app.closers = append(app.closers, logCloser)

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Error("Failed to start server", "error", err)
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Server stopped")
	for i := len(app.closers) - 1; i >= 0; i-- {
		_ = app.closers[i].Close()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)
	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *slog.Logger) (*Application, error) {
	var (
		stopFuncs []func()
		closers   []io.Closer
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(cfg.Database.URL(), logger); err != nil {
			return nil, err
		}
	}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		closers = append(closers, rc)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, logger))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	tagRepo := repository.NewTagRepository(db)
	linkRepo := repository.NewVideoTagRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	viewRepo := repository.NewVideoViewRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("Token service initialized", "issuer", cfg.JWT.Issuer, "audience", cfg.JWT.Audience)

	userInfo := services.NewOIDCUserInfoClient(cfg.Identity.Provider, cfg.Identity.UserInfoURL, cfg.Identity.UserInfoTimeout)

	// Initialize flows
	resolver := businessflow.NewTagResolver(tagRepo, logger)
	tagging := businessflow.NewTagAssignmentFlow(videoRepo, linkRepo, counterRepo, resolver, logger)
	cascade := businessflow.NewCascadeDeleteFlow(
		userRepo,
		videoRepo,
		tagRepo,
		linkRepo,
		counterRepo,
		likeRepo,
		commentRepo,
		viewRepo,
		logger,
	)
	reconciliation := businessflow.NewReconciliationFlow(
		videoRepo,
		tagRepo,
		linkRepo,
		counterRepo,
		likeRepo,
		commentRepo,
		viewRepo,
		cfg.Scheduler.ReconciliationBatchSize,
		logger,
	)
	identity := businessflow.NewIdentityFlow(userRepo, userRepo, businessflow.IdentityOptions{
		Provider:        cfg.Identity.Provider,
		MaxRetries:      cfg.Identity.UpsertMaxRetries,
		Backoff:         cfg.Identity.UpsertBackoff,
		UseAtomicUpsert: cfg.Identity.UseAtomicUpsert,
	}, logger)
	engagement := businessflow.NewEngagementFlow(videoRepo, counterRepo, likeRepo, commentRepo, viewRepo, logger)
	videoFlow := businessflow.NewVideoFlow(videoRepo, tagging, cascade, logger)
	authFlow := businessflow.NewAuthFlow(userInfo, identity, tokenService, logger)

	// Scheduled reconciliation; the admin handler reads its last report
	var reports handlers.ReconcileReportSource
	if cfg.Scheduler.ReconciliationEnabled {
		var (
			lease scheduler.Lease
			store scheduler.ReportStore
		)
		if rc != nil {
			redisLease := scheduler.NewRedisLease(rc, cfg.Cache.RedisPrefix)
			lease, store = redisLease, redisLease
		}
		sched := scheduler.NewReconciliationScheduler(
			reconciliation,
			lease,
			store,
			cfg.Scheduler.ReconciliationInterval,
			cfg.Scheduler.ReconciliationLeaseTTL,
			logger,
		)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
		if store != nil {
			reports = sched
		}
	}

	// Initialize handlers
	h := router.Handlers{
		Auth:       handlers.NewAuthHandler(authFlow, tokenService, logger),
		Video:      handlers.NewVideoHandler(videoFlow, logger),
		Engagement: handlers.NewEngagementHandler(engagement, logger),
		Admin:      handlers.NewAdminHandler(cascade, reconciliation, reports, logger),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, h, authMiddleware, logger)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}
