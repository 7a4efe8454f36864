package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	_ "github.com/noah-isme/asset-inventory-api/api/swagger"
	"github.com/noah-isme/asset-inventory-api/internal/handler"
	"github.com/noah-isme/asset-inventory-api/internal/repository"
	"github.com/noah-isme/asset-inventory-api/internal/server"
	"github.com/noah-isme/asset-inventory-api/internal/service"
	"github.com/noah-isme/asset-inventory-api/pkg/cache"
	"github.com/noah-isme/asset-inventory-api/pkg/config"
	"github.com/noah-isme/asset-inventory-api/pkg/database"
	"github.com/noah-isme/asset-inventory-api/pkg/jobs"
	"github.com/noah-isme/asset-inventory-api/pkg/lock"
	"github.com/noah-isme/asset-inventory-api/pkg/logger"
	"github.com/noah-isme/asset-inventory-api/pkg/migrate"
)

// @title Asset Inventory API
// @version 1.0.0
// @description Inventory catalog, item requests and stock reservations
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logr, db.DB); err != nil {
		logr.Fatal("auto migration failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Cache.Enabled || cfg.Locks.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache and request locks", zap.Error(err))
			rdb = nil
		}
	}
	var cacheClient redis.UniversalClient
	var locker *lock.Locker
	if rdb != nil {
		cacheClient = rdb
		if cfg.Locks.Enabled {
			locker = lock.New(rdb, cfg.Locks.TTL, logr)
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	itemRepo := repository.NewItemRepository(db)
	stockRepo := repository.NewStockRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	cacheRepo := repository.NewCacheRepository(cacheClient)
	tx := repository.NewTransactor(db, cfg.Database.QueryTimeout)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.AvailabilityTTL, logr, cfg.Cache.Enabled && cacheClient != nil)
	stockSvc := service.NewStockService(stockRepo, metricsSvc, logr)
	historySvc := service.NewHistoryService(historyRepo, metricsSvc, logr)
	retryQueue := historySvc.NewRetryQueue(jobs.QueueConfig{
		Workers:    cfg.History.RetryWorkers,
		BufferSize: 256,
		MaxRetries: cfg.History.RetryAttempts,
		RetryDelay: cfg.History.RetryDelay,
	})
	retryQueue.Start(context.Background())

	assignmentSvc := service.NewAssignmentService(assignmentRepo, itemRepo, tx, stockSvc, historySvc, cacheSvc, validate, logr)
	catalogSvc := service.NewCatalogService(service.CatalogServiceParams{
		Store:       itemRepo,
		Tx:          tx,
		Stock:       stockSvc,
		Assignments: assignmentSvc,
		History:     historySvc,
		Cache:       cacheSvc,
		CacheTTL:    cfg.Cache.AvailabilityTTL,
		Validator:   validate,
		Logger:      logr,
	})
	requestSvc := service.NewRequestService(service.RequestServiceParams{
		Store:       requestRepo,
		Items:       itemRepo,
		Tx:          tx,
		Stock:       stockSvc,
		Assignments: assignmentSvc,
		History:     historySvc,
		Cache:       cacheSvc,
		Locker:      locker,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Items:       itemRepo,
		Requests:    requestRepo,
		Assignments: assignmentRepo,
		History:     historyRepo,
		Cache:       cacheSvc,
		Logger:      logr,
	})
	exportSvc := service.NewExportService(catalogSvc, historySvc, logr)

	dependencies := map[string]handler.Pinger{"postgres": db}
	if cacheClient != nil {
		dependencies["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	router := server.NewRouter(server.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metricsSvc,
		Auth:           authSvc,
	}, server.Handlers{
		Items:       handler.NewItemHandler(catalogSvc),
		Requests:    handler.NewRequestHandler(requestSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		History:     handler.NewHistoryHandler(historySvc),
		Exports:     handler.NewExportHandler(exportSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Ops:         handler.NewMetricsHandler(metricsSvc, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, srv.Shutdown(shutdownCtx))
	// Drain pending history retries before the database goes away.
	retryQueue.Stop()
	if rdb != nil {
		shutdownErr = multierr.Append(shutdownErr, rdb.Close())
	}
	shutdownErr = multierr.Append(shutdownErr, db.Close())
	if shutdownErr != nil {
		logr.Error("shutdown finished with errors", zap.Error(shutdownErr))
		return
	}
	logr.Info("server stopped")
}
