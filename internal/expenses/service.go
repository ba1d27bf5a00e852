package expenses

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit   AuditPort
	Metrics *observability.DomainMetrics
	Logger  *slog.Logger
}

// Service manages expenses.
type Service struct {
	repo     Repository
	audit    AuditPort
	metrics  *observability.DomainMetrics
	logger   *slog.Logger
	validate *validator.Validate
	clock    func() time.Time
}

// NewService builds the service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   logger,
		validate: validator.New(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records a PENDING expense.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Expense, error) {
	if err := s.validate.Struct(req); err != nil {
		return Expense{}, err
	}
	if !req.Amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	if err := shared.CheckMoney("expense amount", req.Amount); err != nil {
		return Expense{}, err
	}
	ok, err := s.repo.DriverExists(ctx, req.DriverID)
	if err != nil {
		return Expense{}, err
	}
	if !ok {
		return Expense{}, ErrDriverNotFound.Withf("driver %d not found", req.DriverID)
	}
	incurred := req.IncurredOn
	if incurred.IsZero() {
		incurred = s.clock()
	}
	e := Expense{
		DriverID:      req.DriverID,
		Amount:        req.Amount,
		Category:      req.Category,
		Description:   req.Description,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		IncurredOn:    time.Date(incurred.Year(), incurred.Month(), incurred.Day(), 0, 0, 0, 0, time.UTC),
	}
	id, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	return s.repo.Get(ctx, id)
}

// Approve accepts a pending expense.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Expense, error) {
	return s.review(ctx, id, actorID, StatusApproved)
}

// Reject declines a pending expense.
func (s *Service) Reject(ctx context.Context, id, actorID int64) (Expense, error) {
	return s.review(ctx, id, actorID, StatusRejected)
}

func (s *Service) review(ctx context.Context, id, actorID int64, next Status) (Expense, error) {
	var reviewed Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if e.Status != StatusPending {
			return ErrNotPending.Withf("expense %d is already %s", id, e.Status)
		}
		now := s.clock()
		e.Status = next
		e.ReviewedAt = &now
		if actorID > 0 {
			e.ReviewedBy = &actorID
		}
		reviewed = e
		return tx.Review(ctx, e)
	})
	if err != nil {
		return Expense{}, err
	}
	s.logger.Info("expense reviewed", slog.Int64("expense_id", id), slog.String("status", string(next)))
	decision := strings.ToLower(string(next))
	s.metrics.ExpenseReviewed(decision)
	s.record(ctx, actorID, "expense."+reviewAction[next], reviewed)
	return reviewed, nil
}

var reviewAction = map[Status]string{StatusApproved: "approve", StatusRejected: "reject"}

// record writes the review to the audit log. Approving a cash-on-hand
// expense changes what the driver owes at handover, so the amount goes in.
func (s *Service) record(ctx context.Context, actorID int64, action string, e Expense) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "expense",
		EntityID: strconv.FormatInt(e.ID, 10),
		Meta: map[string]any{
			"driverId":      e.DriverID,
			"amount":        e.Amount.String(),
			"paymentMethod": string(e.PaymentMethod),
		},
	}); err != nil {
		s.logger.Warn("expense audit", slog.String("action", action), slog.Int64("expense_id", e.ID), slog.Any("error", err))
	}
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of expenses and the total.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Expense, int, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}
