package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
	"github.com/odyssey-erp/depot/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerVerifier checks every owner of a scope for balance drift.
type LedgerVerifier interface {
	VerifyAll(ctx context.Context, scope ledger.Scope) (int, []ledger.Report, error)
}

// LedgerIntegrityJob compares each stored balance with the sum of its entries.
type LedgerIntegrityJob struct {
	Verifier LedgerVerifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(verifier LedgerVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Verifier: verifier,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity scan. Mismatches are reported, not repaired.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Verifier == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	scopes, err := integrityScopes(payload.Scope)
	if err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	var checked, mismatched int
	for _, scope := range scopes {
		n, broken, err := j.Verifier.VerifyAll(ctx, scope)
		if err != nil {
			resultErr = err
			logger.Error("scan failed", slog.String("scope", string(scope)), slog.Any("error", err))
			return resultErr
		}
		checked += n
		mismatched += len(broken)
		for _, r := range broken {
			logger.Warn("ledger balance drift",
				slog.String("scope", string(r.Scope)),
				slog.Int64("owner_id", r.OwnerID),
				slog.String("balance", r.Balance.String()),
				slog.String("sum", r.Sum.String()),
				slog.Int64("broken_at", r.BrokenAt),
			)
		}
		j.metrics().AddLedgerMismatches(strings.ToLower(string(scope)), len(broken))
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("owners", checked),
		slog.Int("mismatches", mismatched),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return resultErr
}

func integrityScopes(raw string) ([]ledger.Scope, error) {
	if raw == "" {
		return []ledger.Scope{ledger.ScopeCustomer, ledger.ScopeDriver}, nil
	}
	scope := ledger.Scope(strings.ToUpper(raw))
	if !scope.IsValid() {
		return nil, ledger.ErrInvalidScope.Withf("unknown ledger scope %q", raw)
	}
	return []ledger.Scope{scope}, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
