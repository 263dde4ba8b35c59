package main

import (
	"context"
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/api"
	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/backend"
	"github.com/jgarte/gn-proxy/config"
	"github.com/jgarte/gn-proxy/dataset"
	"github.com/jgarte/gn-proxy/dispatch"
	"github.com/jgarte/gn-proxy/ggorm"
	"github.com/jgarte/gn-proxy/health"
	"github.com/jgarte/gn-proxy/logger"
	"github.com/jgarte/gn-proxy/resource"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting gn-proxy",
		zap.String("version", Version),
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store),
	)

	// The type registry is assembled once here and read-only afterwards.
	registry := access.NewRegistry()
	if err := dataset.RegisterTypes(registry); err != nil {
		logger.Log.Fatal("failed to register resource types", zap.Error(err))
	}

	healthManager := health.NewManager(Version)

	// Resource store and audit trail. The gorm store doubles as the audit
	// store; redis and memory stores keep the audit trail in memory.
	var store resource.Store
	var auditStore audit.Store = audit.NewMemoryStore()
	switch cfg.Store {
	case "gorm":
		repo, err := ggorm.Open(cfg.DBType, cfg.DSN, nil)
		if err != nil {
			logger.Log.Fatal("failed to open resource store", zap.Error(err))
		}
		store = repo
		auditStore = repo
		healthManager.Register(health.NewPingChecker("store", repo.Ping))
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = resource.NewRedisStore(client, "")
		healthManager.Register(health.NewPingChecker("store", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	case "memory":
		store = resource.NewMemoryStore()
	default:
		logger.Log.Fatal("unknown store backend", zap.String("store", cfg.Store))
	}

	opts := []dispatch.Option{
		dispatch.WithAudit(audit.NewLogger(auditStore)),
		dispatch.WithLogger(logger.Log),
		dispatch.WithTimeout(cfg.ActionTimeout),
	}

	// Dataset query backend. The proxy still serves available/run-action
	// for deny-level actions without it, so an empty DSN only disables
	// query handlers.
	if cfg.BackendDSN != "" {
		backendDB, err := ggorm.OpenDB(cfg.BackendType, cfg.BackendDSN, &gorm.Config{})
		if err != nil {
			logger.Log.Fatal("failed to open query backend", zap.Error(err))
		}
		qx := backend.NewExecutor(backendDB)
		opts = append(opts, dispatch.WithBackend(qx))
		healthManager.Register(health.NewPingChecker("backend", qx.Ping))
	} else {
		logger.Log.Warn("no BACKEND_DSN configured, dataset query handlers disabled")
	}

	d := dispatch.New(registry, store, opts...)

	handlerOpts := []api.Option{
		api.WithHealth(healthManager),
		api.WithLogger(logger.Log),
	}
	if cfg.AdminSecret != "" {
		handlerOpts = append(handlerOpts, api.WithAdminSecret([]byte(cfg.AdminSecret)))
	} else {
		logger.Log.Warn("no ADMIN_SECRET configured, admin API disabled")
	}
	h := api.NewHandler(d, handlerOpts...)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
