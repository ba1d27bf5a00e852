package inventory

import (
	"errors"

	"github.com/odyssey-erp/depot/internal/shared"
)

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = shared.NewError(shared.ErrNotFound, "product_not_found", "product not found")
	// ErrInsufficientStock indicates filled stock cannot cover a delivery.
	ErrInsufficientStock = shared.NewError(shared.ErrPreconditionFailed, "insufficient_stock", "insufficient stock")
	// ErrInsufficientEmptyStock indicates a refill larger than empty stock.
	ErrInsufficientEmptyStock = shared.NewError(shared.ErrPreconditionFailed, "insufficient_empty_stock", "insufficient empty stock")
	// ErrInsufficientFilledStock indicates a write-off larger than filled stock.
	ErrInsufficientFilledStock = shared.NewError(shared.ErrPreconditionFailed, "insufficient_filled_stock", "insufficient filled stock")
	// ErrNegativeStock is raised when a counter would drop below zero.
	ErrNegativeStock = shared.NewError(shared.ErrInvariantViolation, "negative_stock", "stock counters cannot go negative")
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = shared.NewError(shared.ErrValidation, "invalid_quantity", "inventory: quantity must be positive")
	// ErrInvalidReason indicates a write-off reason other than DAMAGE or LOSS.
	ErrInvalidReason = shared.NewError(shared.ErrValidation, "invalid_write_off_reason", "inventory: write-off reason must be DAMAGE or LOSS")

	errNoProduct = errors.New("inventory: product required")
)
