package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rbacgate/internal/rbac/audit"
	"rbacgate/internal/rbac/authz"
	"rbacgate/internal/rbac/config"
	"rbacgate/internal/rbac/events"
	"rbacgate/internal/rbac/handler"
	"rbacgate/internal/rbac/metrics"
	"rbacgate/internal/rbac/policy"
	"rbacgate/internal/rbac/repository"
	"rbacgate/internal/rbac/router"
	"rbacgate/internal/rbac/service"
	"rbacgate/internal/rbac/util"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// store is what the process needs from a backend
type store interface {
	repository.RBACRepository
	repository.ActivityRepository
}

func main() {
	// 0. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	// 1. Init Logger
	if err := util.InitLogger(cfg.Log); err != nil {
		logrus.WithError(err).Fatal("Failed to init logger")
	}
	logger := util.GetLogger()

	// 2. Init Store
	var (
		repo   store
		client *mongo.Client
	)
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory store; state is lost on restart")
		repo = repository.NewMemoryRepository()
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err == nil {
			err = client.Ping(ctx, nil)
		}
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		repo = repository.NewMongoRepository(client.Database(cfg.DBName))
	}

	// Ensure Indexes
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to ensure indexes")
	}
	if err := repo.EnsureActivityIndexes(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to ensure activity indexes")
	}

	// 3. Invalidation bus
	var bus events.Bus = events.NewLocalBus()
	if cfg.Redis.URL != "" {
		rdb, err := events.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
		redisBus, err := events.NewRedisBus(context.Background(), rdb, cfg.Redis.Channel, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to subscribe to invalidation channel")
		}
		bus = redisBus
		logger.WithField("channel", cfg.Redis.Channel).Info("Cache invalidation relayed over Redis")
	} else {
		logger.WithField("ttl", cfg.Authz.CacheTTL).Info("No REDIS_URL; peers converge within the cache TTL")
	}

	// 4. Init Layers
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	auditLogger := audit.NewLogger(repo, cfg.AuditTimeout, logger, m)
	svc := service.NewService(repo, auditLogger, bus, service.Config{RequireActiveGrants: cfg.RequireActiveGrants}, logger)
	svc.Metrics = m

	gate := authz.NewGate(service.NewResolver(repo), authz.Config{
		CacheTTL:       cfg.Authz.CacheTTL,
		CacheSize:      cfg.Authz.CacheSize,
		ResolveTimeout: cfg.Authz.ResolveTimeout,
	}, logger, m)
	gate.Subscribe(bus)

	loader := policy.NewLoader()
	if cfg.BootstrapAdminUser != "" {
		seed, err := loader.LoadSeedCatalog()
		if err != nil {
			logger.WithError(err).Fatal("Failed to load seed catalog")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = svc.Bootstrap(ctx, seed, cfg.BootstrapAdminUser)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Bootstrap failed")
		}
		logger.WithField("user_id", cfg.BootstrapAdminUser).Info("Bootstrap catalog and admin group ensured")
	}

	var guard *handler.RBACMiddleware
	if cfg.Authz.Enforce {
		routes, err := loader.LoadRoutePolicies()
		if err != nil {
			logger.WithError(err).Fatal("Failed to load route policies")
		}
		guard = handler.NewRBACMiddleware(gate, routes, logger)
	} else {
		logger.Warn("AUTHZ_ENFORCE is off; management routes are not guarded")
	}

	h := handler.NewHandler(svc, gate, auditLogger)

	// 5. Init Echo & Routes
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			}).Info("request")
			return nil
		},
	}))

	router.RegisterRoutes(e, h, guard, m)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server Shutdown Failed")
	}

	if err := bus.Close(); err != nil {
		logger.WithError(err).Error("Failed to close invalidation bus")
	}

	// Disconnect DB
	if client != nil {
		if err := client.Disconnect(ctx); err != nil {
			logger.WithError(err).Error("Failed to disconnect DB")
		}
	}

	logger.Info("Server exited properly")
}
