package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/inspectra-app/inspectra/internal/app"
	"github.com/inspectra-app/inspectra/internal/attachments"
	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/lifecycle"
	"github.com/inspectra-app/inspectra/internal/platform/blob"
	"github.com/inspectra-app/inspectra/internal/platform/db"
	"github.com/inspectra-app/inspectra/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}

	documentsRepo := documents.NewRepository(pool)
	attachmentsRepo := attachments.NewPGRepository(pool)

	// The worker retries through asynq's own backoff, so the reaper runs
	// without a queue here.
	reaper := lifecycle.NewDocumentReaper(documentsRepo, attachmentsRepo, blobs, nil, logger)

	cleanupJob := jobs.NewBlobCleanupJob(reaper, logger)
	sweepJob := jobs.NewOrphanSweepJob(documentsRepo, reaper, logger)

	sweepTask, err := jobs.NewOrphanSweepTask(cfg.OrphanGrace, 100)
	if err != nil {
		logger.Error("build orphan sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBlobCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskOrphanSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OrphanSweepSpec, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
