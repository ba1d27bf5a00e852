// Package notify fans out dashboard refresh events over redis pub/sub and
// hands driver push notifications to the job queue. Delivery is best effort.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/depot/internal/inventory"
)

// Event types published on the channel.
const (
	EventOrderCompleted    = "order.completed"
	EventOrdersAssigned    = "orders.assigned"
	EventOrdersGenerated   = "orders.generated"
	EventHandoverSubmitted = "handover.submitted"
	EventHandoverResolved  = "handover.resolved"
	EventHandoverCancelled = "handover.cancelled"
	EventStockMoved        = "stock.moved"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "depot.events"

// Event is a dashboard refresh message.
type Event struct {
	Type       string    `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DriverPush is a push notification addressed to one driver.
type DriverPush struct {
	DriverID int64   `json:"driver_id"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	OrderIDs []int64 `json:"order_ids,omitempty"`
}

// PushEnqueuer schedules a driver push for asynchronous delivery.
type PushEnqueuer interface {
	EnqueueDriverPush(ctx context.Context, push DriverPush) error
}

// Notifier publishes events and driver pushes. A nil *Notifier discards
// everything.
type Notifier struct {
	client  *redis.Client
	channel string
	pushes  PushEnqueuer
	logger  *slog.Logger
	timeout time.Duration
	clock   func() time.Time
}

// New constructs a Notifier. client and pushes may be nil.
func New(client *redis.Client, channel string, pushes PushEnqueuer, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:  client,
		channel: channel,
		pushes:  pushes,
		logger:  logger.With(slog.String("component", "notify")),
		timeout: 2 * time.Second,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Publish sends evt to the redis channel. Failures are logged.
func (n *Notifier) Publish(ctx context.Context, evt Event) {
	if n == nil || n.client == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = n.clock()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Warn("encode event", slog.String("type", evt.Type), slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("publish event", slog.String("type", evt.Type), slog.Int64("entity_id", evt.EntityID), slog.Any("error", err))
	}
}

// PushDriver enqueues a push notification. Failures are logged.
func (n *Notifier) PushDriver(ctx context.Context, push DriverPush) {
	if n == nil || n.pushes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.pushes.EnqueueDriverPush(ctx, push); err != nil {
		n.logger.Warn("enqueue driver push", slog.Int64("driver_id", push.DriverID), slog.Any("error", err))
	}
}

// HandleStockMovementPosted refreshes stock widgets after warehouse movements.
func (n *Notifier) HandleStockMovementPosted(ctx context.Context, evt inventory.MovementPostedEvent) error {
	n.Publish(ctx, Event{
		Type:       EventStockMoved,
		Entity:     "product",
		EntityID:   evt.ProductID,
		Data:       evt,
		OccurredAt: evt.PostedAt,
	})
	return nil
}

var _ inventory.IntegrationHandler = (*Notifier)(nil)
