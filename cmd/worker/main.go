package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/depot/internal/app"
	"github.com/odyssey-erp/depot/internal/delivery/orders"
	"github.com/odyssey-erp/depot/internal/inventory"
	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
	"github.com/odyssey-erp/depot/internal/platform/cache"
	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/shared"
	"github.com/odyssey-erp/depot/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	redisOpts, err := jobs.RedisConnOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("parse redis address", slog.Any("error", err))
		os.Exit(1)
	}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer jobClient.Close()

	metrics := jobmetrics.NewMetrics(nil)
	notifier := notify.New(redisClient, cfg.NotifyChannel, jobClient, logger)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	ordersService := orders.NewService(orders.NewRepository(pool), orders.ServiceConfig{
		Stock:       inventory.NewLedger(),
		Notifier:    notifier,
		Audit:       auditLogger,
		Idempotency: idempotency,
		Logger:      logger,
		BatchSize:   cfg.GenerationBatchSize,
	})
	ledgerService := ledger.NewService(ledger.NewRepository(pool))

	pushJob := jobs.NewDriverPushJob(nil, logger, metrics)
	generateJob := jobs.NewGenerateOrdersJob(ordersService, logger, metrics)
	integrityJob := jobs.NewLedgerIntegrityJob(ledgerService, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{Pruner: idempotency, Retention: cfg.IdempotencyTTL, Logger: logger, Metrics: metrics}

	generateTask, err := jobs.NewGenerateOrdersTask(jobs.GenerateOrdersPayload{})
	if err != nil {
		logger.Error("build generate task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDriverPush, Handler: pushJob.Handle},
			{Type: jobs.TaskOrdersGenerate, Handler: generateJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.GenerationCron, Task: generateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "0 * * * *", Task: jobs.NewIdempotencyCleanupTask()},
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
