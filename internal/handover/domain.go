// Package handover settles the cash a driver collected against what the
// driver hands in.
package handover

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a cash handover.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
	StatusAdjusted Status = "ADJUSTED"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusAdjusted:
		return true
	default:
		return false
	}
}

// IsDecision reports whether s is an admin resolution.
func (s Status) IsDecision() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusAdjusted
}

// Settles reports whether resolving with s posts the discrepancy to the
// driver ledger.
func (s Status) Settles() bool {
	return s == StatusVerified || s == StatusAdjusted
}

// Handover is one driver submission and the items it swept up.
type Handover struct {
	ID               int64            `json:"id"`
	Code             string           `json:"code"`
	DriverID         int64            `json:"driver_id"`
	HandoverDate     time.Time        `json:"handover_date"`
	ExpectedCash     decimal.Decimal  `json:"expected_cash"`
	ActualCash       decimal.Decimal  `json:"actual_cash"`
	Discrepancy      decimal.Decimal  `json:"discrepancy"`
	OrdersTotal      decimal.Decimal  `json:"orders_total"`
	ExpensesTotal    decimal.Decimal  `json:"expenses_total"`
	OrderCount       int              `json:"order_count"`
	ExpenseCount     int              `json:"expense_count"`
	Status           Status           `json:"status"`
	DriverNotes      *string          `json:"driver_notes,omitempty"`
	AdminNotes       *string          `json:"admin_notes,omitempty"`
	AdjustmentAmount *decimal.Decimal `json:"adjustment_amount,omitempty"`
	ShiftStart       *time.Time       `json:"shift_start,omitempty"`
	ShiftEnd         *time.Time       `json:"shift_end,omitempty"`
	VerifiedBy       *int64           `json:"verified_by,omitempty"`
	VerifiedAt       *time.Time       `json:"verified_at,omitempty"`
	CreatedBy        int64            `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsShortage reports whether the driver handed in less than expected.
func (h Handover) IsShortage() bool {
	return h.Discrepancy.IsPositive()
}

// IsExcess reports whether the driver handed in more than expected.
func (h Handover) IsExcess() bool {
	return h.Discrepancy.IsNegative()
}

// CashOrder is a completed cash order waiting for a handover.
type CashOrder struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	CashCollected decimal.Decimal `json:"cash_collected"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// CashExpense is an approved cash-on-hand expense waiting for a handover.
type CashExpense struct {
	ID       int64           `json:"id"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Snapshot is the driver's unlinked pool. It is recomputed on every call
// over all unlinked items, not over a single day.
type Snapshot struct {
	DriverID      int64           `json:"driver_id"`
	Orders        []CashOrder     `json:"orders"`
	Expenses      []CashExpense   `json:"expenses"`
	OrdersTotal   decimal.Decimal `json:"orders_total"`
	ExpensesTotal decimal.Decimal `json:"expenses_total"`
	Expected      decimal.Decimal `json:"expected_cash"`
}

// NewSnapshot totals the pool.
func NewSnapshot(driverID int64, orders []CashOrder, expenses []CashExpense) Snapshot {
	s := Snapshot{
		DriverID:      driverID,
		Orders:        orders,
		Expenses:      expenses,
		OrdersTotal:   decimal.Zero,
		ExpensesTotal: decimal.Zero,
	}
	if s.Orders == nil {
		s.Orders = []CashOrder{}
	}
	if s.Expenses == nil {
		s.Expenses = []CashExpense{}
	}
	for _, o := range orders {
		s.OrdersTotal = s.OrdersTotal.Add(o.CashCollected)
	}
	for _, e := range expenses {
		s.ExpensesTotal = s.ExpensesTotal.Add(e.Amount)
	}
	s.Expected = s.OrdersTotal.Sub(s.ExpensesTotal)
	return s
}

// IsEmpty reports whether there is nothing to hand over.
func (s Snapshot) IsEmpty() bool {
	return len(s.Orders) == 0 && len(s.Expenses) == 0
}

// OrderIDs lists the snapshot's orders.
func (s Snapshot) OrderIDs() []int64 {
	ids := make([]int64, 0, len(s.Orders))
	for _, o := range s.Orders {
		ids = append(ids, o.ID)
	}
	return ids
}

// ExpenseIDs lists the snapshot's expenses.
func (s Snapshot) ExpenseIDs() []int64 {
	ids := make([]int64, 0, len(s.Expenses))
	for _, e := range s.Expenses {
		ids = append(ids, e.ID)
	}
	return ids
}

// Summary is the driver's cash position.
type Summary struct {
	DriverID      int64           `json:"driver_id"`
	Snapshot      Snapshot        `json:"snapshot"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Pending       *Handover       `json:"pending,omitempty"`
}
