// Package ledger records signed monetary entries against customers and drivers.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scope selects whose ledger an entry belongs to.
type Scope string

const (
	ScopeCustomer Scope = "CUSTOMER"
	ScopeDriver   Scope = "DRIVER"
)

// IsValid reports whether s is a known scope.
func (s Scope) IsValid() bool {
	return s == ScopeCustomer || s == ScopeDriver
}

// Kind classifies an entry.
type Kind string

const (
	KindSale       Kind = "SALE"
	KindPayment    Kind = "PAYMENT"
	KindShortage   Kind = "SHORTAGE"
	KindExcess     Kind = "EXCESS"
	KindAdjustment Kind = "ADJUSTMENT"
)

// Entry is one append-only ledger row.
type Entry struct {
	ID           int64           `json:"id"`
	Scope        Scope           `json:"scope"`
	OwnerID      int64           `json:"owner_id"`
	Kind         Kind            `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Description  string          `json:"description"`
	RefModule    string          `json:"ref_module,omitempty"`
	RefID        string          `json:"ref_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Line is an entry to be appended; the writer fills in the balance.
type Line struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	RefModule   string
	RefID       string
}

// Posting summarises the result of one Append call.
type Posting struct {
	Scope   Scope           `json:"scope"`
	OwnerID int64           `json:"owner_id"`
	Opening decimal.Decimal `json:"opening"`
	Closing decimal.Decimal `json:"closing"`
	Entries []Entry         `json:"entries"`
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	Scope   Scope
	OwnerID int64
	Limit   int
	Offset  int
}

// Report is the outcome of a conservation check.
type Report struct {
	Scope      Scope           `json:"scope"`
	OwnerID    int64           `json:"owner_id"`
	Balance    decimal.Decimal `json:"balance"`
	Sum        decimal.Decimal `json:"sum"`
	Entries    int             `json:"entries"`
	BrokenAt   int64           `json:"broken_at,omitempty"`
	Consistent bool            `json:"consistent"`
}
