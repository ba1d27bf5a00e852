package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/wallet"
)

// CreateRequest represents request to create a delivery order.
type CreateRequest struct {
	CustomerID     int64           `json:"customer_id" validate:"required,gt=0"`
	DriverID       *int64          `json:"driver_id,omitempty" validate:"omitempty,gt=0"`
	ScheduledDate  time.Time       `json:"scheduled_date" validate:"required"`
	PaymentMethod  PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=CASH CREDIT BANK_TRANSFER PREPAID"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Discount       decimal.Decimal `json:"discount"`
	Items          []ItemReq       `json:"items" validate:"required,min=1,dive"`
	ActorID        int64           `json:"-"`
}

// ItemReq represents a product line in create and update requests. Price
// defaults to the catalog price.
type ItemReq struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// UpdateRequest edits an order before completion.
type UpdateRequest struct {
	ScheduledDate  *time.Time       `json:"scheduled_date,omitempty"`
	DeliveryCharge *decimal.Decimal `json:"delivery_charge,omitempty"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	PaymentMethod  *PaymentMethod   `json:"payment_method,omitempty" validate:"omitempty,oneof=CASH CREDIT BANK_TRANSFER PREPAID"`
	Items          *[]ItemReq       `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// CompleteRequest is the driver's report of what happened at the door.
type CompleteRequest struct {
	OrderID        int64           `json:"order_id" validate:"gte=0"`
	CashCollected  decimal.Decimal `json:"cash_collected"`
	PaymentMethod  PaymentMethod   `json:"payment_method" validate:"required,oneof=CASH CREDIT BANK_TRANSFER PREPAID"`
	Items          []CompleteItem  `json:"items" validate:"required,min=1,dive"`
	ActorID        int64           `json:"-"`
	IdempotencyKey string          `json:"-"`
}

// CompleteItem carries the delivered quantity and the container exchange for
// one product.
type CompleteItem struct {
	ProductID       int64 `json:"product_id" validate:"required,gt=0"`
	Quantity        int   `json:"quantity" validate:"gte=0"`
	FilledGiven     int   `json:"filled_given" validate:"gte=0"`
	EmptyTaken      int   `json:"empty_taken" validate:"gte=0"`
	DamagedReturned int   `json:"damaged_returned" validate:"gte=0"`
}

// CompleteResult is returned by Complete. AlreadyCompleted marks a replay
// that changed nothing.
type CompleteResult struct {
	Order            Order             `json:"order"`
	AlreadyCompleted bool              `json:"already_completed"`
	CustomerBalance  decimal.Decimal   `json:"customer_balance"`
	Entries          []ledger.Entry    `json:"ledger_entries,omitempty"`
	Wallets          []wallet.Wallet   `json:"wallets,omitempty"`
	Stock            []inventory.Stock `json:"stock,omitempty"`
}

// CancelRequest represents request to cancel an order.
type CancelRequest struct {
	Reason  string `json:"reason" validate:"required,min=3,max=500"`
	ActorID int64  `json:"-"`
}

// RescheduleRequest moves an order to a new date.
type RescheduleRequest struct {
	NewDate time.Time `json:"new_date" validate:"required"`
	Reason  string    `json:"reason" validate:"max=500"`
	ActorID int64     `json:"-"`
}

// RescheduleResult holds the closed original and its replacement.
type RescheduleResult struct {
	Original    Order `json:"original"`
	Replacement Order `json:"replacement"`
}

// AssignRequest assigns several orders to one driver.
type AssignRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1,dive,gt=0"`
	DriverID int64   `json:"driver_id" validate:"required,gt=0"`
	ActorID  int64   `json:"-"`
}

// AssignResult lists the orders now assigned to the driver.
type AssignResult struct {
	DriverID int64   `json:"driver_id"`
	OrderIDs []int64 `json:"order_ids"`
}

// GenerateRequest creates orders from standing orders for one date.
type GenerateRequest struct {
	Date        time.Time `json:"date" validate:"required"`
	CustomerIDs []int64   `json:"customer_ids,omitempty" validate:"omitempty,dive,gt=0"`
	ActorID     int64     `json:"-"`
}

// SkippedCustomer explains why generation left a customer out.
type SkippedCustomer struct {
	CustomerID int64  `json:"customer_id"`
	Reason     string `json:"reason"`
}

// GenerateResult summarises a bulk generation run.
type GenerateResult struct {
	BatchID  string            `json:"batch_id"`
	Date     time.Time         `json:"date"`
	Batches  int               `json:"batches"`
	OrderIDs []int64           `json:"order_ids"`
	Skipped  []SkippedCustomer `json:"skipped"`
}

// ListRequest represents filters for listing orders.
type ListRequest struct {
	CustomerID *int64     `json:"customer_id,omitempty"`
	DriverID   *int64     `json:"driver_id,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Limit      int        `json:"limit" validate:"gte=0,lte=500"`
	Offset     int        `json:"offset" validate:"gte=0"`
}

// ListResponse represents API response for list.
type ListResponse struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
