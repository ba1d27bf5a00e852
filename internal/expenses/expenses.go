// Package expenses records driver-incurred costs. Approved cash-on-hand
// expenses reduce the cash a driver is expected to hand over.
package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Status of an expense.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// PaymentMethod says where the money came from.
type PaymentMethod string

const (
	PaymentCashOnHand   PaymentMethod = "CASH_ON_HAND"
	PaymentCompanyCard  PaymentMethod = "COMPANY_CARD"
	PaymentReimbursable PaymentMethod = "REIMBURSABLE"
)

// Expense is one driver cost.
type Expense struct {
	ID             int64           `json:"id"`
	DriverID       int64           `json:"driver_id"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Status         Status          `json:"status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CashHandoverID *int64          `json:"cash_handover_id,omitempty"`
	IncurredOn     time.Time       `json:"incurred_on"`
	ReviewedBy     *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateRequest records a new expense.
type CreateRequest struct {
	DriverID      int64           `json:"driver_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category" validate:"required,max=64"`
	Description   string          `json:"description" validate:"max=500"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=CASH_ON_HAND COMPANY_CARD REIMBURSABLE"`
	IncurredOn    time.Time       `json:"incurred_on"`
}

// ListRequest filters expense listings.
type ListRequest struct {
	DriverID *int64
	Status   *Status
	Limit    int `validate:"gte=1,lte=100"`
	Offset   int `validate:"gte=0"`
}

var (
	ErrExpenseNotFound = shared.NewError(shared.ErrNotFound, "expense_not_found", "expense not found")
	ErrDriverNotFound  = shared.NewError(shared.ErrNotFound, "driver_not_found", "driver not found")
	ErrNotPending      = shared.NewError(shared.ErrIllegalTransition, "expense_not_pending", "expense has already been reviewed")
	ErrInvalidAmount   = shared.NewError(shared.ErrValidation, "expense_invalid_amount", "expense amount must be positive")
)
