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
	"golang.org/x/sync/errgroup"

	"github.com/meridian-bms/meridian-bms/internal/app"
	"github.com/meridian-bms/meridian-bms/internal/audit"
	"github.com/meridian-bms/meridian-bms/internal/auth"
	"github.com/meridian-bms/meridian-bms/internal/authz"
	"github.com/meridian-bms/meridian-bms/internal/invoicing"
	"github.com/meridian-bms/meridian-bms/internal/masterdata"
	"github.com/meridian-bms/meridian-bms/internal/merge"
	"github.com/meridian-bms/meridian-bms/internal/payables"
	"github.com/meridian-bms/meridian-bms/internal/platform/cache"
	"github.com/meridian-bms/meridian-bms/internal/platform/db"
	"github.com/meridian-bms/meridian-bms/internal/shared"
	"github.com/meridian-bms/meridian-bms/internal/users"
	"github.com/meridian-bms/meridian-bms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)

	authzStore := authz.NewStore(pool)
	cachedStore := authz.NewCachedStore(authzStore, redisClient, cfg.AuthzCacheTTL)
	registry := authz.NewRegistry(authzStore, authzStore)
	matrix := authz.NewMatrix(authzStore, authzStore, authzStore)
	bindings := authz.NewBindings(authzStore, authzStore, auditLogger, authz.DefaultLegacyLabels)
	resolver := authz.NewResolver(cachedStore)
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, bindings, registry, jobs.RoleChangeNotifier{Client: jobClient})

	authService := auth.NewService(usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	guard := merge.NewGuard()

	masterDataRepo := masterdata.NewRepository(pool)
	payablesService := payables.NewService(payables.NewRepository(pool), guard, auditLogger)
	invoicingService := invoicing.NewService(invoicing.NewRepository(pool), guard, auditLogger)
	auditService := audit.NewService(audit.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		AuthzHandler:      authz.NewHandler(logger, registry, matrix, bindings, resolver, cachedStore, authzMiddleware),
		UsersHandler:      users.NewHandler(logger, usersService, authzMiddleware),
		MasterDataHandler: masterdata.NewHandler(logger, masterDataRepo, authzMiddleware),
		PayablesHandler:   payables.NewHandler(logger, payablesService, authzMiddleware),
		InvoicingHandler:  invoicing.NewHandler(logger, invoicingService, authzMiddleware),
		AuditHandler:      audit.NewHandler(logger, auditService, authzMiddleware),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
