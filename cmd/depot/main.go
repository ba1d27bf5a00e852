package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/depot/cmd/depot/cli"
	"github.com/odyssey-erp/depot/internal/app"
	"github.com/odyssey-erp/depot/internal/delivery/orders"
	"github.com/odyssey-erp/depot/internal/expenses"
	"github.com/odyssey-erp/depot/internal/handover"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/platform/cache"
	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/shared"
	"github.com/odyssey-erp/depot/internal/wallet"
	"github.com/odyssey-erp/depot/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, events and locks disabled", slog.Any("error", err))
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
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	metrics := observability.NewMetrics()
	domainMetrics := metrics.Domain()

	notifier := notify.New(redisClient, cfg.NotifyChannel, jobClient, logger)
	locker := shared.NewLocker(redisClient, cfg.HandoverLockTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, idempotency, notifier, inventory.ServiceConfig{
		Metrics: domainMetrics,
		Logger:  logger,
	})
	ordersService := orders.NewService(orders.NewRepository(pool), orders.ServiceConfig{
		Stock:       inventoryService.Ledger(),
		Notifier:    notifier,
		Audit:       auditLogger,
		Idempotency: idempotency,
		Metrics:     domainMetrics,
		Logger:      logger,
		BatchSize:   cfg.GenerationBatchSize,
	})
	handoverService := handover.NewService(handover.NewRepository(pool), handover.ServiceConfig{
		Locker:   locker,
		Notifier: notifier,
		Audit:    auditLogger,
		Metrics:  domainMetrics,
		Logger:   logger,
	})
	expensesService := expenses.NewService(expenses.NewRepository(pool), expenses.ServiceConfig{
		Audit:   auditLogger,
		Metrics: domainMetrics,
		Logger:  logger,
	})
	ledgerService := ledger.NewService(ledger.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		HandoverHandler:  handover.NewHandler(logger, handoverService),
		ExpensesHandler:  expenses.NewHandler(logger, expensesService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		WalletHandler:    wallet.NewHandler(logger, wallet.NewRepository(pool)),
		JobHandler:       jobs.NewHandler(inspector, jobClient, logger),
		Metrics:          metrics,
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

// runJobsCommand handles `depot jobs trigger <task>` and `depot jobs stats`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	if len(args) == 0 {
		return fmt.Errorf("usage: depot jobs trigger <task> | stats | scheduled")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: depot jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 20)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
