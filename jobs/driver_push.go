package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
	"github.com/odyssey-erp/depot/internal/notify"
)

// PushSender delivers a notification to a driver's device.
type PushSender interface {
	Send(ctx context.Context, push notify.DriverPush) error
}

// LogSender writes pushes to the log. It stands in until a device gateway is
// configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements PushSender.
func (s LogSender) Send(_ context.Context, push notify.DriverPush) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("driver push",
		slog.Int64("driver_id", push.DriverID),
		slog.String("title", push.Title),
		slog.String("body", push.Body),
		slog.Int("orders", len(push.OrderIDs)),
	)
	return nil
}

// DriverPushJob hands queued pushes to a PushSender.
type DriverPushJob struct {
	Sender  PushSender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDriverPushJob initialises the push handler. A nil sender logs pushes.
func NewDriverPushJob(sender PushSender, logger *slog.Logger, metrics *jobmetrics.Metrics) *DriverPushJob {
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &DriverPushJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle decodes the push and sends it. Malformed payloads are not retried.
func (j *DriverPushJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sender == nil {
		return errors.New("driver push: handler not configured")
	}
	var push notify.DriverPush
	if err := json.Unmarshal(t.Payload(), &push); err != nil {
		return asynq.SkipRetry
	}
	if push.DriverID <= 0 {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDriverPush)
	defer func() {
		err = tracker.End(err)
	}()
	if err = j.Sender.Send(ctx, push); err != nil {
		j.logger().Warn("send driver push", slog.Int64("driver_id", push.DriverID), slog.Any("error", err))
	}
	return err
}

func (j *DriverPushJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDriverPush))
	}
	return slog.Default().With(slog.String("job", TaskDriverPush))
}
