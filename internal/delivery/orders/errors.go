package orders

import "github.com/odyssey-erp/depot/internal/shared"

// Domain errors for delivery orders.
var (
	// ErrOrderNotFound indicates the requested delivery order was not found.
	ErrOrderNotFound    = shared.NewError(shared.ErrNotFound, "order_not_found", "delivery order not found")
	ErrCustomerNotFound = shared.NewError(shared.ErrNotFound, "customer_not_found", "customer not found")
	ErrProductNotFound  = shared.NewError(shared.ErrNotFound, "product_not_found", "product not found")
	ErrDriverNotFound   = shared.NewError(shared.ErrNotFound, "driver_not_found", "driver not found")

	// Status transition errors.
	ErrImmutableCompletedOrder = shared.NewError(shared.ErrIllegalTransition, "immutable_completed_order", "completed orders cannot change")
	ErrIllegalTransition       = shared.NewError(shared.ErrIllegalTransition, "illegal_order_transition", "illegal order status transition")

	// Validation errors.
	ErrEmptyItems           = shared.NewError(shared.ErrValidation, "order_empty_items", "at least one item is required")
	ErrDuplicateProduct     = shared.NewError(shared.ErrValidation, "order_duplicate_product", "each product may appear once per order")
	ErrInvalidPaymentMethod = shared.NewError(shared.ErrValidation, "order_invalid_payment_method", "unknown payment method")
	ErrNegativeAmount       = shared.NewError(shared.ErrValidation, "order_negative_amount", "amounts cannot be negative")
	ErrOrderMismatch        = shared.NewError(shared.ErrValidation, "order_id_mismatch", "order id in body does not match the path")
	ErrInvalidDate          = shared.NewError(shared.ErrValidation, "order_invalid_date", "scheduled date is required")

	// ErrNegativeTotal aborts edits whose discount exceeds the order value.
	ErrNegativeTotal = shared.NewError(shared.ErrInvariantViolation, "order_negative_total", "order total cannot be negative")
)
