package handover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/shared"
)

const refModule = "cash_handover"

// Notifier receives fire-and-forget events after commit.
type Notifier interface {
	Publish(ctx context.Context, evt notify.Event)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Locker   *shared.Locker
	Notifier Notifier
	Audit    AuditPort
	Metrics  *observability.DomainMetrics
	Logger   *slog.Logger
}

// Service runs the handover lifecycle.
type Service struct {
	repo     Repository
	ledger   *ledger.Writer
	locker   *shared.Locker
	notifier Notifier
	audit    AuditPort
	metrics  *observability.DomainMetrics
	logger   *slog.Logger
	validate *validator.Validate
	clock    func() time.Time
}

// NewService wires the handover service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		ledger:   ledger.NewWriter(),
		locker:   cfg.Locker,
		notifier: cfg.Notifier,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   logger,
		validate: validator.New(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// PendingSnapshot returns the driver's live unlinked pool.
func (s *Service) PendingSnapshot(ctx context.Context, driverID int64) (Snapshot, error) {
	return s.repo.Snapshot(ctx, driverID)
}

// Submit sweeps the driver's unlinked pool into a new PENDING handover.
// The snapshot is re-read under lock inside the transaction, so the totals
// recorded are exactly those of the items linked.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Handover, error) {
	if err := s.validate.Struct(req); err != nil {
		return Handover{}, err
	}
	if req.ActualCash.IsNegative() {
		return Handover{}, ErrNegativeCash
	}
	if err := shared.CheckMoney("actual cash", req.ActualCash); err != nil {
		return Handover{}, err
	}
	if req.ShiftStart != nil && req.ShiftEnd != nil && req.ShiftEnd.Before(*req.ShiftStart) {
		return Handover{}, ErrInvalidShift
	}

	release, err := s.locker.Acquire(ctx, shared.DriverHandoverLockKey(req.DriverID))
	switch {
	case errors.Is(err, shared.ErrLockHeld):
		return Handover{}, err
	case err != nil:
		// The redis lock only trims contention; the transaction below is
		// what enforces exclusivity.
		s.logger.Warn("handover lock unavailable", slog.Int64("driver_id", req.DriverID), slog.Any("error", err))
	default:
		defer release()
	}

	var created Handover
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockDriver(ctx, req.DriverID); err != nil {
			return err
		}
		pending, err := tx.PendingForUpdate(ctx, req.DriverID)
		if err != nil {
			return err
		}
		if pending != nil {
			return ErrDuplicatePendingHandover.Withf("driver %d already has pending handover %s", req.DriverID, pending.Code)
		}

		snap, err := tx.LockSnapshot(ctx, req.DriverID)
		if err != nil {
			return err
		}
		if snap.IsEmpty() {
			return ErrNothingToHandOver.Withf("driver %d has no unlinked cash orders or expenses", req.DriverID)
		}

		now := s.clock()
		h := Handover{
			Code:          newCode(now),
			DriverID:      req.DriverID,
			HandoverDate:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
			ExpectedCash:  snap.Expected,
			ActualCash:    req.ActualCash,
			Discrepancy:   snap.Expected.Sub(req.ActualCash),
			OrdersTotal:   snap.OrdersTotal,
			ExpensesTotal: snap.ExpensesTotal,
			OrderCount:    len(snap.Orders),
			ExpenseCount:  len(snap.Expenses),
			Status:        StatusPending,
			DriverNotes:   req.Notes,
			ShiftStart:    req.ShiftStart,
			ShiftEnd:      req.ShiftEnd,
			CreatedBy:     req.ActorID,
			CreatedAt:     now,
		}
		id, err := tx.Insert(ctx, h)
		if err != nil {
			return err
		}
		h.ID = id

		linked, err := tx.LinkOrders(ctx, id, snap.OrderIDs())
		if err != nil {
			return err
		}
		if linked != int64(len(snap.Orders)) {
			return ErrSnapshotChanged.Withf("linked %d of %d orders", linked, len(snap.Orders))
		}
		linked, err = tx.LinkExpenses(ctx, id, snap.ExpenseIDs())
		if err != nil {
			return err
		}
		if linked != int64(len(snap.Expenses)) {
			return ErrSnapshotChanged.Withf("linked %d of %d expenses", linked, len(snap.Expenses))
		}
		created = h
		return nil
	})
	if err != nil {
		return Handover{}, err
	}

	s.metrics.HandoverEvent("submitted")
	s.publish(ctx, notify.EventHandoverSubmitted, created)
	s.record(ctx, req.ActorID, "handover.submit", created.ID, map[string]any{
		"code":         created.Code,
		"expected":     created.ExpectedCash.String(),
		"actual":       created.ActualCash.String(),
		"discrepancy":  created.Discrepancy.String(),
		"orderCount":   created.OrderCount,
		"expenseCount": created.ExpenseCount,
	})
	return created, nil
}

// Cancel withdraws a pending handover: its items return to the pool and the
// row is deleted.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) error {
	var cancelled Handover
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if h.Status != StatusPending {
			return ErrNotPending.Withf("handover %s is %s and cannot be cancelled", h.Code, h.Status)
		}
		if _, _, err := tx.Unlink(ctx, id); err != nil {
			return err
		}
		cancelled = h
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.metrics.HandoverEvent("cancelled")
	s.publish(ctx, notify.EventHandoverCancelled, cancelled)
	s.record(ctx, actorID, "handover.cancel", id, map[string]any{"code": cancelled.Code})
	return nil
}

// Resolve settles a pending handover. VERIFIED and ADJUSTED post the
// recorded discrepancy to the driver ledger (shortage as a debit, excess as
// a credit); REJECTED returns the items to the pool.
func (s *Service) Resolve(ctx context.Context, id int64, req ResolveRequest) (ResolveResult, error) {
	if !req.Decision.IsDecision() {
		return ResolveResult{}, ErrInvalidDecision
	}
	if err := s.validate.Struct(req); err != nil {
		return ResolveResult{}, err
	}
	if req.Decision == StatusAdjusted && req.AdjustmentAmount == nil {
		return ResolveResult{}, ErrMissingAdjustment
	}
	if req.AdjustmentAmount != nil {
		if err := shared.CheckMoney("adjustment amount", *req.AdjustmentAmount); err != nil {
			return ResolveResult{}, err
		}
	}

	var result ResolveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if h.Status != StatusPending {
			return ErrNotPending.Withf("handover %s is already %s", h.Code, h.Status)
		}

		now := s.clock()
		h.Status = req.Decision
		h.AdminNotes = req.AdminNotes
		h.AdjustmentAmount = req.AdjustmentAmount
		h.VerifiedAt = &now
		if req.ActorID > 0 {
			actor := req.ActorID
			h.VerifiedBy = &actor
		}

		if req.Decision.Settles() {
			posting, err := s.ledger.Append(ctx, tx.Ledger(), ledger.ScopeDriver, h.DriverID, settlementLine(h))
			if err != nil {
				return err
			}
			result.Entries = posting.Entries
			result.DriverBalance = posting.Closing
		} else {
			orders, expenses, err := tx.Unlink(ctx, id)
			if err != nil {
				return err
			}
			result.UnlinkedOrders = orders
			result.UnlinkedExpenses = expenses
		}

		if err := tx.Update(ctx, h); err != nil {
			return err
		}
		result.Handover = h
		return nil
	})
	if err != nil {
		return ResolveResult{}, err
	}
	if result.Entries == nil {
		result.Entries = []ledger.Entry{}
	}

	s.metrics.HandoverEvent(strings.ToLower(string(req.Decision)))
	s.publish(ctx, notify.EventHandoverResolved, result.Handover)
	s.record(ctx, req.ActorID, "handover.resolve", id, map[string]any{
		"code":        result.Handover.Code,
		"decision":    string(req.Decision),
		"discrepancy": result.Handover.Discrepancy.String(),
	})
	return result, nil
}

// settlementLine turns the discrepancy into a driver ledger line. A zero
// discrepancy yields a zero line, which the writer skips.
func settlementLine(h Handover) ledger.Line {
	line := ledger.Line{
		Amount:    h.Discrepancy.Neg(),
		RefModule: refModule,
		RefID:     strconv.FormatInt(h.ID, 10),
	}
	switch {
	case h.IsShortage():
		line.Kind = ledger.KindShortage
		line.Description = fmt.Sprintf("Cash shortage on handover %s", h.Code)
	case h.IsExcess():
		line.Kind = ledger.KindExcess
		line.Description = fmt.Sprintf("Cash excess on handover %s", h.Code)
	default:
		line.Kind = ledger.KindAdjustment
	}
	return line
}

// Get returns one handover.
func (s *Service) Get(ctx context.Context, id int64) (Handover, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of handovers.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := s.validate.Struct(req); err != nil {
		return ListResponse{}, err
	}
	handovers, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListResponse{}, err
	}
	if handovers == nil {
		handovers = []Handover{}
	}
	return ListResponse{Handovers: handovers, Total: total, Limit: req.Limit, Offset: req.Offset}, nil
}

func newCode(now time.Time) string {
	return fmt.Sprintf("HO-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func (s *Service) publish(ctx context.Context, eventType string, h Handover) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, notify.Event{
		Type:     eventType,
		Entity:   "cash_handover",
		EntityID: h.ID,
		Data: map[string]any{
			"code":        h.Code,
			"driver_id":   h.DriverID,
			"status":      h.Status,
			"discrepancy": h.Discrepancy,
		},
	})
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "cash_handover",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("handover audit", slog.String("action", action), slog.Int64("handover_id", id), slog.Any("error", err))
	}
}
