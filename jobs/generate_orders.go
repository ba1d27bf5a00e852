package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/depot/internal/delivery/orders"
	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
)

// OrderGenerator creates the orders for one delivery day.
type OrderGenerator interface {
	Generate(ctx context.Context, req orders.GenerateRequest) (orders.GenerateResult, error)
}

// GenerateOrdersJob runs bulk order generation from the queue.
type GenerateOrdersJob struct {
	Generator OrderGenerator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewGenerateOrdersJob initialises the generation handler.
func NewGenerateOrdersJob(generator OrderGenerator, logger *slog.Logger, metrics *jobmetrics.Metrics) *GenerateOrdersJob {
	return &GenerateOrdersJob{
		Generator: generator,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle generates orders for the payload date, defaulting to tomorrow.
// Batches committed before a failure stay; a retry skips customers that
// already have an order for the day.
func (j *GenerateOrdersJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Generator == nil {
		return errors.New("generate orders: handler not configured")
	}
	var payload GenerateOrdersPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	date, err := j.deliveryDate(payload.Date)
	if err != nil {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskOrdersGenerate)
	logger := j.logger().With(slog.String("date", date.Format(time.DateOnly)))
	logger.Info("starting order generation")

	result, err := j.Generator.Generate(ctx, orders.GenerateRequest{
		Date:        date,
		CustomerIDs: payload.CustomerIDs,
		ActorID:     payload.ActorID,
	})
	if err != nil {
		logger.Error("order generation failed",
			slog.Int("created", len(result.OrderIDs)),
			slog.Any("error", err),
		)
		return tracker.End(err)
	}
	logger.Info("completed order generation",
		slog.String("batch_id", result.BatchID),
		slog.Int("batches", result.Batches),
		slog.Int("created", len(result.OrderIDs)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return tracker.End(nil)
}

func (j *GenerateOrdersJob) deliveryDate(raw string) (time.Time, error) {
	if raw != "" {
		return time.Parse(time.DateOnly, raw)
	}
	now := j.clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	y, m, d := now().AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func (j *GenerateOrdersJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOrdersGenerate))
	}
	return slog.Default().With(slog.String("job", TaskOrdersGenerate))
}
