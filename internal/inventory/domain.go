// Package inventory keeps per-product warehouse stock in filled, empty,
// damaged and reserved buckets.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementRestock adds inbound supply to filled and empty stock.
	MovementRestock MovementType = "RESTOCK"
	// MovementRefill turns empties into filled units.
	MovementRefill MovementType = "REFILL"
	// MovementDamage moves filled units to damaged.
	MovementDamage MovementType = "DAMAGE"
	// MovementLoss removes filled units from the system.
	MovementLoss MovementType = "LOSS"
	// MovementAdjust records an administrative overwrite.
	MovementAdjust MovementType = "ADJUST"
	// MovementDelivery records the exchange at order completion.
	MovementDelivery MovementType = "DELIVERY"
)

// Stock is the warehouse position of one product.
type Stock struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Filled    int             `json:"stock_filled"`
	Empty     int             `json:"stock_empty"`
	Damaged   int             `json:"stock_damaged"`
	Reserved  int             `json:"stock_reserved"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Movement is the audit row written for every stock mutation.
type Movement struct {
	ID           int64        `json:"id"`
	ProductID    int64        `json:"product_id"`
	Type         MovementType `json:"type"`
	FilledDelta  int          `json:"filled_delta"`
	EmptyDelta   int          `json:"empty_delta"`
	DamagedDelta int          `json:"damaged_delta"`
	RefModule    string       `json:"ref_module,omitempty"`
	RefID        string       `json:"ref_id,omitempty"`
	Note         string       `json:"note,omitempty"`
	ActorID      int64        `json:"actor_id"`
	PostedAt     time.Time    `json:"posted_at"`
}

// Meta carries provenance for a movement.
type Meta struct {
	RefModule string
	RefID     string
	Note      string
	ActorID   int64
}

// Exchange is the physical container swap at a customer's door.
type Exchange struct {
	Filled  int
	Empty   int
	Damaged int
}

// IsZero reports whether nothing changed hands.
func (e Exchange) IsZero() bool {
	return e.Filled == 0 && e.Empty == 0 && e.Damaged == 0
}

// RestockInput adds new supply.
type RestockInput struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	Filled         int    `json:"filled" validate:"gte=0"`
	Empty          int    `json:"empty" validate:"gte=0"`
	Note           string `json:"note" validate:"max=255"`
	ActorID        int64  `json:"-"`
	IdempotencyKey string `json:"-"`
}

// RefillInput moves empties to filled.
type RefillInput struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	Note           string `json:"note" validate:"max=255"`
	ActorID        int64  `json:"-"`
	IdempotencyKey string `json:"-"`
}

// WriteOffInput removes filled units as damaged or lost.
type WriteOffInput struct {
	ProductID      int64        `json:"product_id" validate:"required,gt=0"`
	Quantity       int          `json:"quantity" validate:"required,gt=0"`
	Reason         MovementType `json:"reason" validate:"required,oneof=DAMAGE LOSS"`
	Note           string       `json:"note" validate:"max=255"`
	ActorID        int64        `json:"-"`
	IdempotencyKey string       `json:"-"`
}

// AdjustInput overwrites the counters.
type AdjustInput struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	Filled         int    `json:"filled" validate:"gte=0"`
	Empty          int    `json:"empty" validate:"gte=0"`
	Damaged        int    `json:"damaged" validate:"gte=0"`
	Note           string `json:"note" validate:"max=255"`
	ActorID        int64  `json:"-"`
	IdempotencyKey string `json:"-"`
}

// MovementFilter filters movement listings.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// Result is returned by every warehouse operation.
type Result struct {
	Stock    Stock    `json:"stock"`
	Movement Movement `json:"movement"`
}
