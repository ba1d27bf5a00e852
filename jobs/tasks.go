package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/depot/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDriverPush delivers a push notification to a driver device.
	TaskDriverPush = "driver:push"
	// TaskOrdersGenerate runs bulk order generation for a delivery day.
	TaskOrdersGenerate = "orders:generate"
	// TaskLedgerIntegrity checks every ledger owner for balance drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// GenerateOrdersPayload selects the delivery day to generate. An empty Date
// means tomorrow (UTC).
type GenerateOrdersPayload struct {
	Date        string  `json:"date,omitempty"`
	CustomerIDs []int64 `json:"customer_ids,omitempty"`
	ActorID     int64   `json:"actor_id,omitempty"`
}

// LedgerIntegrityPayload narrows the scan to one scope. Empty scans both.
type LedgerIntegrityPayload struct {
	Scope string `json:"scope,omitempty"`
}

// NewDriverPushTask constructs an Asynq task for a driver push.
func NewDriverPushTask(push notify.DriverPush) (*asynq.Task, error) {
	data, err := json.Marshal(push)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDriverPush, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// NewGenerateOrdersTask constructs an Asynq task for bulk generation.
func NewGenerateOrdersTask(payload GenerateOrdersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrdersGenerate, data, asynq.MaxRetry(3)), nil
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.MaxRetry(1)), nil
}
