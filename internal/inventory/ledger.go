package inventory

import (
	"context"
	"time"
)

// TxStore is the transaction-scoped persistence used by Ledger.
// GetStockForUpdate must lock the product row.
type TxStore interface {
	GetStockForUpdate(ctx context.Context, productID int64) (Stock, error)
	SaveStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Ledger applies stock movements inside a caller-owned transaction. Every
// change to the product stock counters goes through it.
type Ledger struct {
	clock func() time.Time
}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{clock: func() time.Time { return time.Now().UTC() }}
}

type mutation func(s *Stock) error

// Restock adds filled and empty supply independently.
func (l *Ledger) Restock(ctx context.Context, store TxStore, productID int64, filled, empty int, meta Meta) (Result, error) {
	if filled < 0 || empty < 0 || filled+empty == 0 {
		return Result{}, ErrInvalidQuantity.Withf("restock of product %d needs a positive filled or empty quantity", productID)
	}
	return l.apply(ctx, store, productID, MovementRestock, meta, func(s *Stock) error {
		s.Filled += filled
		s.Empty += empty
		return nil
	})
}

// Refill converts n empties into filled units.
func (l *Ledger) Refill(ctx context.Context, store TxStore, productID int64, n int, meta Meta) (Result, error) {
	if n <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	return l.apply(ctx, store, productID, MovementRefill, meta, func(s *Stock) error {
		if s.Empty < n {
			return ErrInsufficientEmptyStock.Withf("insufficient empty stock for product %d, available %d, required %d", productID, s.Empty, n)
		}
		s.Empty -= n
		s.Filled += n
		return nil
	})
}

// WriteOff removes n filled units. DAMAGE keeps them in the damaged bucket,
// LOSS drops them entirely.
func (l *Ledger) WriteOff(ctx context.Context, store TxStore, productID int64, n int, reason MovementType, meta Meta) (Result, error) {
	if n <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if reason != MovementDamage && reason != MovementLoss {
		return Result{}, ErrInvalidReason
	}
	return l.apply(ctx, store, productID, reason, meta, func(s *Stock) error {
		if s.Filled < n {
			return ErrInsufficientFilledStock.Withf("insufficient filled stock for product %d, available %d, required %d", productID, s.Filled, n)
		}
		s.Filled -= n
		if reason == MovementDamage {
			s.Damaged += n
		}
		return nil
	})
}

// Adjust overwrites filled, empty and damaged with absolute values.
func (l *Ledger) Adjust(ctx context.Context, store TxStore, productID int64, filled, empty, damaged int, meta Meta) (Result, error) {
	if filled < 0 || empty < 0 || damaged < 0 {
		return Result{}, ErrNegativeStock.Withf("adjustment of product %d has a negative counter", productID)
	}
	return l.apply(ctx, store, productID, MovementAdjust, meta, func(s *Stock) error {
		s.Filled = filled
		s.Empty = empty
		s.Damaged = damaged
		return nil
	})
}

// ApplyDelivery records a completed delivery: filled units leave, empties
// come back and damaged returns go to the damaged bucket, never to empty.
func (l *Ledger) ApplyDelivery(ctx context.Context, store TxStore, productID int64, ex Exchange, meta Meta) (Result, error) {
	if ex.Filled < 0 || ex.Empty < 0 || ex.Damaged < 0 {
		return Result{}, ErrInvalidQuantity.Withf("delivery exchange for product %d has a negative counter", productID)
	}
	if ex.IsZero() {
		stock, err := store.GetStockForUpdate(ctx, productID)
		if err != nil {
			return Result{}, err
		}
		return Result{Stock: stock}, nil
	}
	return l.apply(ctx, store, productID, MovementDelivery, meta, func(s *Stock) error {
		if s.Filled < ex.Filled {
			return ErrInsufficientStock.Withf("insufficient stock for product %d, available %d, required %d", productID, s.Filled, ex.Filled)
		}
		s.Filled -= ex.Filled
		s.Empty += ex.Empty
		s.Damaged += ex.Damaged
		return nil
	})
}

func (l *Ledger) apply(ctx context.Context, store TxStore, productID int64, typ MovementType, meta Meta, fn mutation) (Result, error) {
	if productID <= 0 {
		return Result{}, errNoProduct
	}
	before, err := store.GetStockForUpdate(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	after := before
	if err := fn(&after); err != nil {
		return Result{}, err
	}
	if after.Filled < 0 || after.Empty < 0 || after.Damaged < 0 {
		return Result{}, ErrNegativeStock.Withf("stock of product %d would go negative", productID)
	}
	now := l.clock()
	after.UpdatedAt = now
	if err := store.SaveStock(ctx, after); err != nil {
		return Result{}, err
	}
	mv := Movement{
		ProductID:    productID,
		Type:         typ,
		FilledDelta:  after.Filled - before.Filled,
		EmptyDelta:   after.Empty - before.Empty,
		DamagedDelta: after.Damaged - before.Damaged,
		RefModule:    meta.RefModule,
		RefID:        meta.RefID,
		Note:         meta.Note,
		ActorID:      meta.ActorID,
		PostedAt:     now,
	}
	id, err := store.InsertMovement(ctx, mv)
	if err != nil {
		return Result{}, err
	}
	mv.ID = id
	return Result{Stock: after, Movement: mv}, nil
}
