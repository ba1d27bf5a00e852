package handover

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/ledger"
)

// SubmitRequest is the driver's declaration of the cash handed in.
type SubmitRequest struct {
	DriverID   int64           `json:"driver_id" validate:"required,gt=0"`
	ActualCash decimal.Decimal `json:"actual_cash"`
	Notes      *string         `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ShiftStart *time.Time      `json:"shift_start,omitempty"`
	ShiftEnd   *time.Time      `json:"shift_end,omitempty"`
	ActorID    int64           `json:"-"`
}

// ResolveRequest is the admin's decision on a pending handover.
type ResolveRequest struct {
	Decision         Status           `json:"decision" validate:"required,oneof=VERIFIED REJECTED ADJUSTED"`
	AdminNotes       *string          `json:"admin_notes,omitempty" validate:"omitempty,max=1000"`
	AdjustmentAmount *decimal.Decimal `json:"adjustment_amount,omitempty"`
	ActorID          int64            `json:"-"`
}

// ResolveResult carries the settled handover and, when the discrepancy was
// posted, the driver ledger entry and balance.
type ResolveResult struct {
	Handover         Handover        `json:"handover"`
	Entries          []ledger.Entry  `json:"ledger_entries"`
	DriverBalance    decimal.Decimal `json:"driver_balance"`
	UnlinkedOrders   int64           `json:"unlinked_orders"`
	UnlinkedExpenses int64           `json:"unlinked_expenses"`
}

// ListRequest filters handover listings.
type ListRequest struct {
	DriverID *int64
	Status   *Status
	From     *time.Time
	To       *time.Time
	Limit    int `validate:"gte=1,lte=100"`
	Offset   int `validate:"gte=0"`
}

// ListResponse is a page of handovers.
type ListResponse struct {
	Handovers []Handover `json:"handovers"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}
