package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/shared"
	"github.com/odyssey-erp/depot/internal/wallet"
)

const refModule = "delivery_order"

// Notifier receives fire-and-forget notifications after commit.
type Notifier interface {
	Publish(ctx context.Context, evt notify.Event)
	PushDriver(ctx context.Context, push notify.DriverPush)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Stock       *inventory.Ledger
	Notifier    Notifier
	Audit       AuditPort
	Idempotency *shared.IdempotencyStore
	Metrics     *observability.DomainMetrics
	Logger      *slog.Logger
	BatchSize   int
}

// Service provides business logic for delivery orders.
type Service struct {
	repo        Repository
	ledger      *ledger.Writer
	wallets     *wallet.Tracker
	stock       *inventory.Ledger
	notifier    Notifier
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	metrics     *observability.DomainMetrics
	logger      *slog.Logger
	validate    *validator.Validate
	batchSize   int
	clock       func() time.Time
}

// NewService creates a new service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	stock := cfg.Stock
	if stock == nil {
		stock = inventory.NewLedger()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Service{
		repo:        repo,
		ledger:      ledger.NewWriter(),
		wallets:     wallet.NewTracker(),
		stock:       stock,
		notifier:    cfg.Notifier,
		audit:       cfg.Audit,
		idempotency: cfg.Idempotency,
		metrics:     cfg.Metrics,
		logger:      logger,
		validate:    validator.New(),
		batchSize:   batchSize,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create creates an order after the credit and stock gate allows it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, err
	}
	if err := ValidateCreateRequest(req); err != nil {
		return Order{}, err
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if req.DriverID != nil {
			if err := s.requireDriver(ctx, tx, *req.DriverID); err != nil {
				return err
			}
		}
		order := req.ToOrder()
		items, err := s.priceItems(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		order.Items = items
		order.TotalAmount = order.ComputeTotal()
		if order.TotalAmount.IsNegative() {
			return ErrNegativeTotal.Withf("discount %s exceeds order value", order.Discount.StringFixed(2))
		}

		decision, err := gate.Evaluate(ctx, tx, ToCandidate(order))
		if err != nil {
			return err
		}
		if _, err := gate.ModeEnforce.Apply(decision); err != nil {
			return err
		}

		id, err := s.insert(ctx, tx, order)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return s.repo.GetByID(ctx, orderID)
}

// Update edits items, charges or the date of an order that is not yet
// completed.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, err
	}
	if err := ValidateUpdateRequest(req); err != nil {
		return Order{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrImmutableCompletedOrder.Withf("order %d is COMPLETED and cannot be edited", id)
		}
		if !order.Status.CanEdit() {
			return ErrIllegalTransition.Withf("order %d is %s and cannot be edited", id, order.Status)
		}

		previous := order.TotalAmount
		if req.ScheduledDate != nil {
			order.ScheduledDate = dateOnly(*req.ScheduledDate)
		}
		if req.DeliveryCharge != nil {
			order.DeliveryCharge = *req.DeliveryCharge
		}
		if req.Discount != nil {
			order.Discount = *req.Discount
		}
		if req.PaymentMethod != nil {
			order.PaymentMethod = *req.PaymentMethod
		}
		if req.Items != nil {
			items, err := s.priceItems(ctx, tx, *req.Items)
			if err != nil {
				return err
			}
			if err := tx.ReplaceItems(ctx, id, items); err != nil {
				return fmt.Errorf("replace items: %w", err)
			}
			order.Items = items
		}
		order.TotalAmount = order.ComputeTotal()
		if order.TotalAmount.IsNegative() {
			return ErrNegativeTotal.Withf("discount %s exceeds order value", order.Discount.StringFixed(2))
		}
		if req.Items != nil || order.TotalAmount.GreaterThan(previous) {
			decision, err := gate.Evaluate(ctx, tx, ToCandidate(order))
			if err != nil {
				return err
			}
			if _, err := gate.ModeEnforce.Apply(decision); err != nil {
				return err
			}
		}
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Start marks the order as being delivered.
func (s *Service) Start(ctx context.Context, id int64) (Order, error) {
	var started Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := order.Status.CanTransitionTo(StatusInProgress); err != nil {
			return err
		}
		if !order.Status.CanStart() {
			return ErrIllegalTransition.Withf("order %d is %s and cannot be started", id, order.Status)
		}
		order.Status = StatusInProgress
		started = order
		return tx.UpdateOrder(ctx, order)
	})
	return started, err
}

// Complete runs the completion transaction: persist the driver's report,
// post the sale and payment to the customer ledger, move containers in the
// customer's wallets and take the exchange out of warehouse stock. All of it
// commits together or not at all. Completing a COMPLETED order is a no-op.
func (s *Service) Complete(ctx context.Context, id int64, req CompleteRequest) (CompleteResult, error) {
	if req.OrderID != 0 && req.OrderID != id {
		return CompleteResult{}, ErrOrderMismatch.Withf("order id %d in body does not match %d", req.OrderID, id)
	}
	req.OrderID = id
	if err := s.validate.Struct(req); err != nil {
		return CompleteResult{}, err
	}
	if err := ValidateCompleteRequest(req); err != nil {
		return CompleteResult{}, err
	}

	insertedKey, err := s.claimKey(ctx, req)
	if err != nil {
		return CompleteResult{}, err
	}

	var result CompleteResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.complete(ctx, tx, id, req)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, req.IdempotencyKey)
		}
		s.metrics.OrderCompletion("failed")
		return CompleteResult{}, fmt.Errorf("cannot complete delivery: %w", err)
	}

	if result.AlreadyCompleted {
		s.metrics.OrderCompletion("replayed")
		return result, nil
	}
	s.metrics.OrderCompletion("completed")
	s.afterComplete(ctx, result, req.ActorID)
	return result, nil
}

func (s *Service) claimKey(ctx context.Context, req CompleteRequest) (bool, error) {
	if req.IdempotencyKey == "" || s.idempotency == nil {
		return false, nil
	}
	fingerprint, err := shared.Fingerprint(req)
	if err != nil {
		return false, err
	}
	err = s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, refModule, fingerprint)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, shared.ErrIdempotencyConflict):
		// Replays fall through to the order lock, which reports the no-op.
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) complete(ctx context.Context, tx TxRepository, id int64, req CompleteRequest) (CompleteResult, error) {
	order, err := tx.GetOrderForUpdate(ctx, id)
	if err != nil {
		return CompleteResult{}, err
	}
	if order.Status == StatusCompleted {
		balance, err := tx.Ledger().LockBalance(ctx, ledger.ScopeCustomer, order.CustomerID)
		if err != nil {
			return CompleteResult{}, err
		}
		return CompleteResult{Order: order, AlreadyCompleted: true, CustomerBalance: balance}, nil
	}
	if err := order.Status.CanTransitionTo(StatusCompleted); err != nil {
		return CompleteResult{}, err
	}

	// 1. Persist the driver's report, then re-read the order.
	for _, in := range req.Items {
		item, ok := order.Item(in.ProductID)
		if !ok {
			price, err := tx.ProductPrice(ctx, in.ProductID)
			if err != nil {
				return CompleteResult{}, err
			}
			item = Item{OrderID: id, ProductID: in.ProductID, Price: price}
		}
		item.Quantity = in.Quantity
		item.FilledGiven = in.FilledGiven
		item.EmptyTaken = in.EmptyTaken
		item.DamagedReturned = in.DamagedReturned
		if err := tx.SaveItem(ctx, item); err != nil {
			return CompleteResult{}, fmt.Errorf("save item %d: %w", in.ProductID, err)
		}
	}
	order, err = tx.GetOrderForUpdate(ctx, id)
	if err != nil {
		return CompleteResult{}, err
	}
	order.CashCollected = req.CashCollected
	order.PaymentMethod = req.PaymentMethod
	order.TotalAmount = order.ComputeTotal()
	if order.TotalAmount.IsNegative() {
		return CompleteResult{}, ErrNegativeTotal.Withf("order %d total would be %s", id, order.TotalAmount.StringFixed(2))
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return CompleteResult{}, err
	}

	// 2-4. Sale and payment on the customer ledger.
	ref := strconv.FormatInt(id, 10)
	lines := []ledger.Line{{
		Kind:        ledger.KindSale,
		Amount:      order.TotalAmount.Neg(),
		Description: fmt.Sprintf("Delivery order #%d", id),
		RefModule:   refModule,
		RefID:       ref,
	}}
	if order.CashCollected.IsPositive() {
		lines = append(lines, ledger.Line{
			Kind:        ledger.KindPayment,
			Amount:      order.CashCollected,
			Description: fmt.Sprintf("Payment for delivery order #%d (%s)", id, order.PaymentMethod),
			RefModule:   refModule,
			RefID:       ref,
		})
	}
	posting, err := s.ledger.Append(ctx, tx.Ledger(), ledger.ScopeCustomer, order.CustomerID, lines...)
	if err != nil {
		return CompleteResult{}, err
	}

	// 5. Container wallets.
	result := CompleteResult{CustomerBalance: posting.Closing, Entries: posting.Entries}
	for _, item := range order.Items {
		w, err := s.wallets.Apply(ctx, tx.Wallets(), order.CustomerID, item.ProductID, item.NetContainers())
		if err != nil {
			return CompleteResult{}, err
		}
		result.Wallets = append(result.Wallets, w)
	}

	// 6. Warehouse stock.
	meta := inventory.Meta{RefModule: refModule, RefID: ref, ActorID: req.ActorID}
	for _, item := range order.Items {
		res, err := s.stock.ApplyDelivery(ctx, tx.Stock(), item.ProductID, inventory.Exchange{
			Filled:  item.FilledGiven,
			Empty:   item.EmptyTaken,
			Damaged: item.DamagedReturned,
		}, meta)
		if err != nil {
			return CompleteResult{}, err
		}
		result.Stock = append(result.Stock, res.Stock)
	}

	// 7. Close the order.
	now := s.clock()
	order.Status = StatusCompleted
	order.CompletedAt = &now
	if req.ActorID > 0 {
		actor := req.ActorID
		order.CompletedBy = &actor
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return CompleteResult{}, err
	}
	result.Order = order
	return result, nil
}

func (s *Service) afterComplete(ctx context.Context, result CompleteResult, actorID int64) {
	order := result.Order
	if s.notifier != nil {
		s.notifier.Publish(ctx, notify.Event{
			Type:     notify.EventOrderCompleted,
			Entity:   "order",
			EntityID: order.ID,
			Data: map[string]any{
				"customer_id":      order.CustomerID,
				"total_amount":     order.TotalAmount,
				"cash_collected":   order.CashCollected,
				"customer_balance": result.CustomerBalance,
			},
		})
	}
	s.record(ctx, actorID, "order.complete", order.ID, map[string]any{
		"total_amount":   order.TotalAmount.String(),
		"cash_collected": order.CashCollected.String(),
		"payment_method": string(order.PaymentMethod),
		"balance_after":  result.CustomerBalance.String(),
	})
}

// Cancel cancels an order that has not been completed.
func (s *Service) Cancel(ctx context.Context, id int64, req CancelRequest) (Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return Order{}, err
	}
	var cancelled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := order.Status.CanTransitionTo(StatusCancelled); err != nil {
			return err
		}
		now := s.clock()
		reason := req.Reason
		order.Status = StatusCancelled
		order.CancelledAt = &now
		order.CancelReason = &reason
		if req.ActorID > 0 {
			actor := req.ActorID
			order.CancelledBy = &actor
		}
		cancelled = order
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, req.ActorID, "order.cancel", id, map[string]any{"reason": req.Reason})
	return cancelled, nil
}

// Reschedule closes the order as RESCHEDULED and creates a fresh copy on
// the new date.
func (s *Service) Reschedule(ctx context.Context, id int64, req RescheduleRequest) (RescheduleResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return RescheduleResult{}, err
	}
	var result RescheduleResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := order.Status.CanTransitionTo(StatusRescheduled); err != nil {
			return err
		}
		replacement := replacementFor(order, req.NewDate, req.ActorID)
		newID, err := s.insert(ctx, tx, replacement)
		if err != nil {
			return err
		}
		order.Status = StatusRescheduled
		order.RescheduledTo = &newID
		if req.Reason != "" {
			reason := req.Reason
			order.CancelReason = &reason
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		replacement, err = tx.GetOrderForUpdate(ctx, newID)
		if err != nil {
			return err
		}
		result = RescheduleResult{Original: order, Replacement: replacement}
		return nil
	})
	if err != nil {
		return RescheduleResult{}, err
	}
	s.record(ctx, req.ActorID, "order.reschedule", id, map[string]any{"replacement_id": result.Replacement.ID})
	return result, nil
}

// AssignDriver assigns open orders to a driver and notifies the driver after
// commit.
func (s *Service) AssignDriver(ctx context.Context, req AssignRequest) (AssignResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return AssignResult{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.requireDriver(ctx, tx, req.DriverID); err != nil {
			return err
		}
		for _, id := range req.OrderIDs {
			order, err := tx.GetOrderForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if order.Status == StatusCompleted {
				return ErrImmutableCompletedOrder.Withf("order %d is COMPLETED and cannot be reassigned", id)
			}
			if order.Status.IsTerminal() {
				return ErrIllegalTransition.Withf("order %d is %s and cannot be assigned", id, order.Status)
			}
			driverID := req.DriverID
			order.DriverID = &driverID
			if order.Status == StatusPending {
				order.Status = StatusScheduled
			}
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}

	result := AssignResult{DriverID: req.DriverID, OrderIDs: req.OrderIDs}
	if s.notifier != nil {
		s.notifier.PushDriver(ctx, notify.DriverPush{
			DriverID: req.DriverID,
			Title:    "New deliveries assigned",
			Body:     fmt.Sprintf("%d deliveries were assigned to you", len(req.OrderIDs)),
			OrderIDs: req.OrderIDs,
		})
		s.notifier.Publish(ctx, notify.Event{
			Type:     notify.EventOrdersAssigned,
			Entity:   "driver",
			EntityID: req.DriverID,
			Data:     result,
		})
	}
	return result, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of orders.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if err := s.validate.Struct(req); err != nil {
		return ListResponse{}, err
	}
	orders, total, err := s.repo.List(ctx, req)
	if err != nil {
		return ListResponse{}, err
	}
	return ToListResponse(orders, total, req.Limit, req.Offset), nil
}

func (s *Service) requireDriver(ctx context.Context, tx TxRepository, driverID int64) error {
	ok, err := tx.DriverExists(ctx, driverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDriverNotFound.Withf("driver %d not found", driverID)
	}
	return nil
}

func (s *Service) priceItems(ctx context.Context, tx TxRepository, reqs []ItemReq) ([]Item, error) {
	items := make([]Item, 0, len(reqs))
	for _, r := range reqs {
		item := Item{ProductID: r.ProductID, Quantity: r.Quantity}
		if r.Price != nil {
			item.Price = *r.Price
		} else {
			price, err := tx.ProductPrice(ctx, r.ProductID)
			if err != nil {
				return nil, err
			}
			item.Price = price
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) insert(ctx context.Context, tx TxRepository, order Order) (int64, error) {
	id, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	for _, item := range order.Items {
		item.OrderID = id
		if _, err := tx.InsertItem(ctx, item); err != nil {
			return 0, fmt.Errorf("insert item: %w", err)
		}
	}
	return id, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("order audit", slog.String("action", action), slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}
