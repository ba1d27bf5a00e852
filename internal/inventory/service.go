package inventory

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetStock(ctx context.Context, productID int64) (Stock, error)
	ListStock(ctx context.Context) ([]Stock, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates warehouse operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	ledger      *Ledger
	integration IntegrationHandler
	metrics     *observability.DomainMetrics
	logger      *slog.Logger
	validate    *validator.Validate
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Metrics *observability.DomainMetrics
	Logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, integration IntegrationHandler, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		ledger:      NewLedger(),
		integration: integration,
		metrics:     cfg.Metrics,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Ledger exposes the transactional primitives for other modules.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Restock adds inbound supply.
func (s *Service) Restock(ctx context.Context, input RestockInput) (Result, error) {
	if err := s.validate.Struct(input); err != nil {
		return Result{}, err
	}
	meta := Meta{RefModule: "warehouse", Note: input.Note, ActorID: input.ActorID}
	return s.post(ctx, input.IdempotencyKey, input, func(ctx context.Context, tx TxStore) (Result, error) {
		return s.ledger.Restock(ctx, tx, input.ProductID, input.Filled, input.Empty, meta)
	})
}

// Refill moves empties into filled stock.
func (s *Service) Refill(ctx context.Context, input RefillInput) (Result, error) {
	if err := s.validate.Struct(input); err != nil {
		return Result{}, err
	}
	meta := Meta{RefModule: "warehouse", Note: input.Note, ActorID: input.ActorID}
	return s.post(ctx, input.IdempotencyKey, input, func(ctx context.Context, tx TxStore) (Result, error) {
		return s.ledger.Refill(ctx, tx, input.ProductID, input.Quantity, meta)
	})
}

// WriteOff records damaged or lost filled units.
func (s *Service) WriteOff(ctx context.Context, input WriteOffInput) (Result, error) {
	if err := s.validate.Struct(input); err != nil {
		return Result{}, err
	}
	meta := Meta{RefModule: "warehouse", Note: input.Note, ActorID: input.ActorID}
	return s.post(ctx, input.IdempotencyKey, input, func(ctx context.Context, tx TxStore) (Result, error) {
		return s.ledger.WriteOff(ctx, tx, input.ProductID, input.Quantity, input.Reason, meta)
	})
}

// Adjust overwrites stock counters after a physical count.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Result, error) {
	if err := s.validate.Struct(input); err != nil {
		return Result{}, err
	}
	meta := Meta{RefModule: "stock_count", Note: input.Note, ActorID: input.ActorID}
	return s.post(ctx, input.IdempotencyKey, input, func(ctx context.Context, tx TxStore) (Result, error) {
		return s.ledger.Adjust(ctx, tx, input.ProductID, input.Filled, input.Empty, input.Damaged, meta)
	})
}

// GetStock returns the current position of a product.
func (s *Service) GetStock(ctx context.Context, productID int64) (Stock, error) {
	if productID <= 0 {
		return Stock{}, errNoProduct
	}
	return s.repo.GetStock(ctx, productID)
}

// ListStock returns every product position.
func (s *Service) ListStock(ctx context.Context) ([]Stock, error) {
	return s.repo.ListStock(ctx)
}

// ListMovements lists movement audit rows.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID <= 0 {
		return nil, errNoProduct
	}
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) post(ctx context.Context, key string, payload any, fn func(context.Context, TxStore) (Result, error)) (Result, error) {
	insertedKey := false
	if key != "" && s.idempotency != nil {
		fingerprint, err := shared.Fingerprint(payload)
		if err != nil {
			return Result{}, err
		}
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory", fingerprint); err != nil {
			return Result{}, err
		}
		insertedKey = true
	}

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		result, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Result{}, err
	}

	mv := result.Movement
	s.metrics.StockMovement(string(mv.Type))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  mv.ActorID,
			Action:   "inventory." + string(mv.Type),
			Entity:   "product",
			EntityID: strconv.FormatInt(mv.ProductID, 10),
			Meta: map[string]any{
				"movement_id":   mv.ID,
				"filled_delta":  mv.FilledDelta,
				"empty_delta":   mv.EmptyDelta,
				"damaged_delta": mv.DamagedDelta,
			},
		}); err != nil {
			s.logger.Warn("inventory audit", slog.Int64("movement_id", mv.ID), slog.Any("error", err))
		}
	}
	if s.integration != nil {
		evt := MovementPostedEvent{
			MovementID: mv.ID,
			ProductID:  mv.ProductID,
			Type:       mv.Type,
			Filled:     result.Stock.Filled,
			Empty:      result.Stock.Empty,
			Damaged:    result.Stock.Damaged,
			PostedAt:   mv.PostedAt,
		}
		if err := s.integration.HandleStockMovementPosted(ctx, evt); err != nil {
			s.logger.Warn("inventory integration", slog.Int64("movement_id", mv.ID), slog.Any("error", err))
		}
	}
	return result, nil
}
