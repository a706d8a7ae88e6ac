// Package main provides the entry point for the AMS client registry service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/ams-registry/allocation"
	"github.com/amirphl/ams-registry/app/handlers"
	"github.com/amirphl/ams-registry/app/middleware"
	"github.com/amirphl/ams-registry/app/router"
	"github.com/amirphl/ams-registry/app/scheduler"
	"github.com/amirphl/ams-registry/app/services"
	businessflow "github.com/amirphl/ams-registry/business_flow"
	"github.com/amirphl/ams-registry/config"
	"github.com/amirphl/ams-registry/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logOutput io.Writer
	stopFuncs []func()
	closers   []func() error
}

func main() {
	log.Println("Starting AMS registry...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := cfg.Server.Address()
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			log.Printf("Error releasing resource: %v", err)
		}
	}

	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout and, when configured,
// at a size-rotated log file
func initializeLogging(cfg config.LoggingConfig) (io.Writer, func() error) {
	var out io.Writer = os.Stdout
	closeFn := func() error { return nil }

	if cfg.WritesFile() {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		closeFn = rotator.Close
		if cfg.Output == "file" {
			out = rotator
		} else {
			out = io.MultiWriter(os.Stdout, rotator)
		}
	}

	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
	return out, closeFn
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logCfg config.LoggingConfig, out io.Writer) (*gorm.DB, error) {
	level := gormlogger.Warn
	switch logCfg.Level {
	case "debug":
		level = gormlogger.Info
	case "error":
		level = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(log.New(out, "gorm ", log.LstdFlags|log.LUTC), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, err
		}
		log.Println("Database schema migrated")
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.UsesRedis() {
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

	log.Printf("Redis connection established to %s (db=%d)", opt.Addr, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
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
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeLockCoordinator selects the backend that serializes serial allocation
func initializeLockCoordinator(cfg config.AllocationConfig, db *gorm.DB, rc *redis.Client, redisPrefix string) (allocation.LockCoordinator, error) {
	switch cfg.LockBackend {
	case config.LockBackendMemory:
		log.Println("Allocation lock: in-process (single instance only)")
		return allocation.NewMutexCoordinator(cfg.LockTimeout), nil
	case config.LockBackendPostgres:
		log.Println("Allocation lock: postgres advisory lock")
		return allocation.NewPostgresAdvisoryCoordinator(db, cfg.LockTimeout), nil
	case config.LockBackendRedis:
		if rc == nil {
			return nil, fmt.Errorf("redis lock backend requires a redis connection")
		}
		log.Printf("Allocation lock: redis (lease %s)", cfg.LockLease)
		return allocation.NewRedisCoordinator(rc, redisPrefix, cfg.LockLease, cfg.LockTimeout), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	app := &Application{config: cfg}

	logOutput, closeLog := initializeLogging(cfg.Logging)
	app.logOutput = logOutput
	app.closers = append(app.closers, closeLog)

	// Initialize database
	db, err := initializeDatabase(cfg.Database, cfg.Logging, logOutput)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		app.closers = append(app.closers, rc.Close)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	clientRepo := repository.NewClientRepository(db)
	retiredRepo := repository.NewRetiredSerialRepository(db)
	reservedRepo := repository.NewReservedSerialRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize the allocation engine
	lock, err := initializeLockCoordinator(cfg.Allocation, db, rc, cfg.Cache.RedisPrefix)
	if err != nil {
		return nil, err
	}
	fill, err := allocation.ParseFillPolicy(cfg.Allocation.FillPolicy)
	if err != nil {
		return nil, err
	}
	policy := allocation.DefaultRangePolicy()
	policy.Fill = fill

	engineLogger := log.New(logOutput, "allocation ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	engine, err := allocation.NewEngine(db, clientRepo, retiredRepo, reservedRepo, lock,
		allocation.WithRangePolicy(policy),
		allocation.WithLogger(engineLogger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize allocation engine: %w", err)
	}
	log.Printf("Allocation engine ready for range [%d, %d] (fill=%s)", policy.Min, policy.Max, policy.Fill)

	// Initialize token service
	var revocations services.RevocationStore
	if rc != nil {
		revocations = services.NewRedisRevocationStore(rc, cfg.Cache.RedisPrefix)
	}
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize business flows
	authFlow := businessflow.NewAuthFlow(userRepo, auditRepo, tokenService)
	userFlow := businessflow.NewUserFlow(userRepo, clientRepo)
	categoryFlow := businessflow.NewCategoryFlow(categoryRepo)
	clientFlow := businessflow.NewClientFlow(engine, clientRepo, categoryRepo, userRepo, auditRepo)
	serialFlow := businessflow.NewSerialFlow(engine, auditRepo)
	auditFlow := businessflow.NewAuditFlow(auditRepo, engine.Policy())

	// Initialize router
	app.router = router.NewFiberRouter(router.Config{
		AppName:        "AMS Registry API",
		Version:        cfg.Deployment.Version,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		APIRateLimit:   cfg.Security.GlobalRateLimit,
		AuthRateLimit:  cfg.Security.AuthRateLimit,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		HealthCheck:    healthCheck(db, rc),
	}, router.Handlers{
		Auth:     handlers.NewAuthHandler(authFlow),
		User:     handlers.NewUserHandler(userFlow),
		Category: handlers.NewCategoryHandler(categoryFlow),
		Client:   handlers.NewClientHandler(clientFlow),
		Serial:   handlers.NewSerialHandler(serialFlow),
		Audit:    handlers.NewAuditHandler(auditFlow),
	}, middleware.NewAuthMiddleware(tokenService))

	// Start the reservation sweeper
	if cfg.Allocation.SweepEnabled {
		schedLogger := log.New(logOutput, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		sweeper := scheduler.NewReservationSweeper(engine, schedLogger, cfg.Allocation.SweepInterval)
		app.stopFuncs = append(app.stopFuncs, sweeper.Start(context.Background()))
		log.Printf("Reservation sweeper started (interval %s)", cfg.Allocation.SweepInterval)
	}

	return app, nil
}

// healthCheck pings every backing store the service depends on
func healthCheck(db *gorm.DB, rc *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rc != nil {
			if err := rc.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
