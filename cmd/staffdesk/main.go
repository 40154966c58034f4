package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staffdesk/staffdesk/internal/app"
	"github.com/staffdesk/staffdesk/internal/auth"
	"github.com/staffdesk/staffdesk/internal/dynamic"
	"github.com/staffdesk/staffdesk/internal/fiscal"
	"github.com/staffdesk/staffdesk/internal/menu"
	"github.com/staffdesk/staffdesk/internal/navigation"
	"github.com/staffdesk/staffdesk/internal/observability"
	"github.com/staffdesk/staffdesk/internal/platform/cache"
	"github.com/staffdesk/staffdesk/internal/platform/db"
	"github.com/staffdesk/staffdesk/internal/rbac"
	"github.com/staffdesk/staffdesk/internal/shared"
	"github.com/staffdesk/staffdesk/internal/users"
	"github.com/staffdesk/staffdesk/jobs"
)

func main() {
	if app.SkipStartup("staffdesk") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{ApplicationName: "staffdesk", MaxConnIdleTime: 5 * time.Minute})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "staffdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), auditLogger, logger)
	rbacService.SetObserver(metrics)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	usersService := users.NewService(users.NewRepository(dbpool))
	fiscalService := fiscal.NewService(fiscal.NewRepository(dbpool), auditLogger, logger)
	menuService := menu.NewService(menu.NewRepository(dbpool), auditLogger, logger)
	dynamicService := dynamic.NewService(dynamic.NewRepository(dbpool))

	composer := navigation.NewComposer(rbacService, navigation.DefaultProviders(menuService, fiscalService, dynamicService), logger)
	composer.SetObserver(metrics)

	queueOpts := cache.QueueOptions(redisClient)
	jobClient := jobs.NewClient(queueOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager),
		NavigationHandler:  navigation.NewHandler(logger, composer),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		PermissionsHandler: rbac.NewHandler(logger, rbacService, rbacMiddleware),
		FiscalHandler:      fiscal.NewHandler(logger, fiscalService, rbacMiddleware, jobClient),
		MenuHandler:        menu.NewHandler(logger, menuService, rbacMiddleware),
		DynamicHandler:     dynamic.NewHandler(logger, dynamicService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger, rbacMiddleware.RequirePage(shared.PageFiscalYears, rbac.ActionView)),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	if cfg.AppMetricsAddr != "" {
		metricsServer := app.NewMetricsServer(cfg.AppMetricsAddr, metrics)
		go func() {
			logger.Info("starting metrics server", slog.String("addr", cfg.AppMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
