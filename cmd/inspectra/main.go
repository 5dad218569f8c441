package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/inspectra-app/inspectra/internal/ability"
	"github.com/inspectra-app/inspectra/internal/app"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/clients"
	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/equipment"
	"github.com/inspectra-app/inspectra/internal/guard"
	"github.com/inspectra-app/inspectra/internal/instruments"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/observability"
	"github.com/inspectra-app/inspectra/internal/orgs"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/platform/cache"
	"github.com/inspectra-app/inspectra/internal/platform/db"
	"github.com/inspectra-app/inspectra/internal/reports"
	"github.com/inspectra-app/inspectra/internal/scope"
	"github.com/inspectra-app/inspectra/internal/shared"
	"github.com/inspectra-app/inspectra/jobs"
)

// cleanupQueue counts retries before handing them to the job client.
type cleanupQueue struct {
	client  *jobs.Client
	metrics *observability.Metrics
}

func (q cleanupQueue) EnqueueCleanup(ctx context.Context, documentID uuid.UUID) error {
	q.metrics.BlobCleanupRetry()
	return q.client.EnqueueCleanup(ctx, documentID)
}

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	engine := ability.NewEngine()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, engine)
	authMiddleware := auth.NewMiddleware(authService, logger)

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	orgsRepo := orgs.NewRepository(pool)
	documentsRepo := documents.NewRepository(pool)
	attachmentsRepo := attachments.NewPGRepository(pool)

	scopeResolver := scope.NewResolver(orgsRepo, engine)
	checker := guard.NewChecker(guard.DefaultRegistry(), guard.NewPGProber(pool))
	reaper := lifecycle.NewDocumentReaper(
		documentsRepo,
		attachmentsRepo,
		blobs,
		cleanupQueue{client: jobClient, metrics: metrics},
		logger,
	)
	coordinator := lifecycle.NewCoordinator(scopeResolver, engine, checker, reaper, logger)
	coordinator.SetObserver(metrics)

	attachmentResolver := attachments.NewResolver(attachmentsRepo, documentsRepo)

	orgsService := orgs.NewService(orgsRepo, coordinator, auditLogger, logger)
	orgsHandler := orgs.NewHandler(logger, orgsService)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo, coordinator)
	clientsHandler := clients.NewHandler(logger, clientsService)

	equipmentRepo := equipment.NewRepository(pool)
	equipmentService := equipment.NewService(equipmentRepo, coordinator, attachmentResolver, attachmentsRepo)
	equipmentHandler := equipment.NewHandler(logger, equipmentService)

	instrumentsRepo := instruments.NewRepository(pool)
	instrumentsService := instruments.NewService(instrumentsRepo, coordinator, attachmentResolver, attachmentsRepo)
	instrumentsHandler := instruments.NewHandler(logger, instrumentsService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, clientsRepo, coordinator, attachmentResolver, attachmentsRepo)
	reportsHandler := reports.NewHandler(logger, reportsService, idempotencyStore)

	documentsService := documents.NewService(documentsRepo, blobs, scopeResolver, engine)
	documentsHandler := documents.NewHandler(logger, documentsService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		OrgsHandler:        orgsHandler,
		ClientsHandler:     clientsHandler,
		EquipmentHandler:   equipmentHandler,
		InstrumentsHandler: instrumentsHandler,
		ReportsHandler:     reportsHandler,
		DocumentsHandler:   documentsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
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
