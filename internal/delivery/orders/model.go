// Package orders implements the delivery order lifecycle and the completion
// transaction that settles cash, containers and stock in one step.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a delivery order.
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"   // Has a driver and a date
	StatusPending     Status = "PENDING"     // Waiting for a driver
	StatusInProgress  Status = "IN_PROGRESS" // Driver is on the way
	StatusCompleted   Status = "COMPLETED"   // Delivered and settled, immutable
	StatusCancelled   Status = "CANCELLED"   // Cancelled before delivery
	StatusRescheduled Status = "RESCHEDULED" // Replaced by a new order
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusScheduled:  {StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusRescheduled},
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRescheduled
}

// CanEdit checks if items and charges may still change.
func (s Status) CanEdit() bool {
	return !s.IsTerminal()
}

// CanStart checks if a driver may start the delivery.
func (s Status) CanStart() bool {
	return s == StatusScheduled || s == StatusPending
}

// CanComplete checks if the completion transaction may run.
func (s Status) CanComplete() bool {
	return !s.IsTerminal()
}

// CanTransitionTo returns nil when s may move to next. Leaving COMPLETED is
// always refused with ErrImmutableCompletedOrder.
func (s Status) CanTransitionTo(next Status) error {
	if s == StatusCompleted {
		return ErrImmutableCompletedOrder.Withf("order is COMPLETED and cannot move to %s", next)
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return nil
		}
	}
	return ErrIllegalTransition.Withf("order cannot move from %s to %s", s, next)
}

// PaymentMethod says how the customer settles the order.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentCredit       PaymentMethod = "CREDIT"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentPrepaid      PaymentMethod = "PREPAID"
)

// IsValid checks if the payment method is known.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentBankTransfer, PaymentPrepaid:
		return true
	default:
		return false
	}
}

// Order is a delivery to one customer on one date.
type Order struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	DriverID        *int64          `json:"driver_id,omitempty"`
	Status          Status          `json:"status"`
	ScheduledDate   time.Time       `json:"scheduled_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CashCollected   decimal.Decimal `json:"cash_collected"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	DeliveryCharge  decimal.Decimal `json:"delivery_charge"`
	Discount        decimal.Decimal `json:"discount"`
	CashHandoverID  *int64          `json:"cash_handover_id,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy     *int64          `json:"cancelled_by,omitempty"`
	CancelReason    *string         `json:"cancel_reason,omitempty"`
	RescheduledTo   *int64          `json:"rescheduled_to,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CompletedBy     *int64          `json:"completed_by,omitempty"`
	GenerationBatch *string         `json:"generation_batch,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items"`
}

// Item is one product line of an order. The exchange counters stay zero
// until the order is completed.
type Item struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	FilledGiven     int             `json:"filled_given"`
	EmptyTaken      int             `json:"empty_taken"`
	DamagedReturned int             `json:"damaged_returned"`
}

// LineTotal is quantity times price.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NetContainers is the change in containers held by the customer.
func (i Item) NetContainers() int {
	return i.FilledGiven - i.EmptyTaken
}

// Subtotal sums the item lines.
func (o Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// ComputeTotal is subtotal + delivery charge - discount.
func (o Order) ComputeTotal() decimal.Decimal {
	return o.Subtotal().Add(o.DeliveryCharge).Sub(o.Discount)
}

// Item finds the line for productID.
func (o Order) Item(productID int64) (Item, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// StandingOrder is a customer's recurring demand used by bulk generation.
type StandingOrder struct {
	CustomerID int64
	ProductID  int64
	Quantity   int
	DriverID   *int64
}
