// Package main provides the entry point for the Yata no Kagami reconciliation service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/amirphl/Yata-no-Kagami/app/handlers"
	"github.com/amirphl/Yata-no-Kagami/app/middleware"
	"github.com/amirphl/Yata-no-Kagami/app/router"
	"github.com/amirphl/Yata-no-Kagami/app/scheduler"
	"github.com/amirphl/Yata-no-Kagami/app/services"
	businessflow "github.com/amirphl/Yata-no-Kagami/business_flow"
	"github.com/amirphl/Yata-no-Kagami/config"
	"github.com/amirphl/Yata-no-Kagami/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.AppConfig
	logger    *logrus.Logger
	stopFuncs []func()
}

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	runOnce := flag.Bool("run-once", false, "run a single reconciliation over the whole ledger and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if *issueToken != "" {
		if err := printToken(cfg.JWT, *issueToken); err != nil {
			logger.WithError(err).Fatal("Failed to issue token")
		}
		return
	}

	app, flow, locker, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	if *runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RunTimeout)
		defer cancel()
		start := time.Now()
		result, err := businessflow.RunExclusive(ctx, locker, flow, businessflow.RunConfig{})
		middleware.ObserveReconciliationRun("cli", result, err, time.Since(start))
		app.stop()
		if err != nil {
			config.LogError(logger, "main", "runOnce", nil, err)
			os.Exit(1)
		}
		logger.WithField("run_id", result.RunID).Info("Reconciliation finished")
		return
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
	case err := <-serverErr:
		if err != nil {
			config.LogError(logger, "main", "Start", nil, err)
		}
	}

	app.stop()

	done := make(chan error, 1)
	go func() { done <- app.router.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			logger.WithError(err).Error("Error during shutdown")
		}
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("Shutdown timed out")
	}

	logger.Info("Server stopped")
}

func (a *Application) stop() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
}

// initializeApplication wires storage, flows, transport and background workers
func initializeApplication(cfg *config.AppConfig, logger *logrus.Logger) (*Application, businessflow.ReconciliationFlow, businessflow.RunLocker, error) {
	app := &Application{config: cfg, logger: logger}

	store, closeStore, err := initializeStore(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if closeStore != nil {
		app.stopFuncs = append(app.stopFuncs, closeStore)
	}

	names := repository.SheetNames{
		Attendance: cfg.Storage.AttendanceSheet,
		Payments:   cfg.Storage.PaymentsSheet,
		Rules:      cfg.Storage.RulesSheet,
		Discounts:  cfg.Storage.DiscountsSheet,
		Master:     cfg.Storage.MasterSheet,
	}
	times, err := cfg.Storage.TimeParser()
	if err != nil {
		app.stop()
		return nil, nil, nil, err
	}
	inputRepo := repository.NewInputRepository(store, names).WithTimeParser(times)
	ledgerRepo := repository.NewLedgerRepository(store, names.Master)

	flow := businessflow.NewReconciliationFlow(inputRepo, ledgerRepo, logger)

	locker, closeLocker, err := initializeLocker(cfg.Cache, logger)
	if err != nil {
		app.stop()
		return nil, nil, nil, err
	}
	if closeLocker != nil {
		app.stopFuncs = append(app.stopFuncs, closeLocker)
	}

	var auth *middleware.AuthMiddleware
	if cfg.JWT.Enabled() {
		tokenService, err := services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
		if err != nil {
			app.stop()
			return nil, nil, nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
		auth = middleware.NewAuthMiddleware(tokenService)
		logger.WithFields(logrus.Fields{"issuer": cfg.JWT.Issuer, "audience": cfg.JWT.Audience}).Info("Bearer auth enabled")
	}

	handler := handlers.NewReconciliationHandler(flow, locker, logger, cfg.Server.RunTimeout)

	app.router = router.NewFiberRouter(router.Options{
		AllowOrigins:   cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		BodyLimit:      cfg.Server.BodyLimit,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, logger, handler, auth)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewReconciliationScheduler(
			flow,
			locker,
			logger,
			cfg.Scheduler.Interval,
			cfg.Scheduler.LookbackDays,
			cfg.Server.RunTimeout,
		)
		app.stopFuncs = append(app.stopFuncs, sched.Start(context.Background()))
	}

	return app, flow, locker, nil
}

// initializeStore opens the table store selected by STORAGE_PROVIDER
func initializeStore(cfg *config.AppConfig, logger *logrus.Logger) (repository.TableStore, func(), error) {
	switch cfg.Storage.Provider {
	case config.StoragePostgres:
		db, err := initializeDatabase(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresTableStore(db)
		if cfg.Storage.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := store.AutoMigrate(ctx); err != nil {
				return nil, nil, fmt.Errorf("failed to migrate table store: %w", err)
			}
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return store, closeDB, nil
	default:
		logger.WithField("workbook", cfg.Storage.WorkbookPath).Info("Using xlsx workbook store")
		return repository.NewXLSXTableStore(cfg.Storage.WorkbookPath), nil, nil
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

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

	logger.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}

// initializeLocker returns a redis lock when CACHE_REDIS_URL is set, otherwise a process-local one
func initializeLocker(cfg config.CacheConfig, logger *logrus.Logger) (businessflow.RunLocker, func(), error) {
	if cfg.RedisURL == "" {
		return businessflow.NewLocalRunLocker(), nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("db", cfg.RedisDB).Info("Redis connection established")
	return businessflow.NewRedisRunLocker(rc, cfg.LockKey, cfg.LockTTL), func() { _ = rc.Close() }, nil
}

func printToken(cfg config.JWTConfig, subject string) error {
	if !cfg.Enabled() {
		return errors.New("JWT_SECRET_KEY is not configured")
	}
	tokenService, err := services.NewTokenService(cfg.AccessTokenTTL, cfg.Issuer, cfg.Audience, cfg.SecretKey)
	if err != nil {
		return err
	}
	token, err := tokenService.GenerateToken(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
