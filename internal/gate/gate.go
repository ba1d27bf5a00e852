// Package gate decides whether a candidate order may be created given the
// customer's credit position and warehouse filled stock.
package gate

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/shared"
)

var (
	// ErrInsufficientStock denies an order whose demand exceeds filled stock.
	ErrInsufficientStock = shared.NewError(shared.ErrPreconditionFailed, "gate_insufficient_stock", "insufficient stock")
	// ErrCreditLimitExceeded denies an order that would push the customer past its credit limit.
	ErrCreditLimitExceeded = shared.NewError(shared.ErrPreconditionFailed, "credit_limit_exceeded", "credit limit exceeded")
)

// Line is the demand for one product.
type Line struct {
	ProductID int64
	Quantity  int
}

// Candidate is an order that has not been written yet.
type Candidate struct {
	CustomerID int64
	Amount     decimal.Decimal
	Lines      []Line
}

// Credit is the customer's position read inside the caller's transaction.
type Credit struct {
	Balance decimal.Decimal
	Limit   decimal.Decimal
}

// Reader is a transaction-scoped view of balances and stock.
type Reader interface {
	CustomerCredit(ctx context.Context, customerID int64) (Credit, error)
	ProductStock(ctx context.Context, productID int64) (int, error)
}

// Decision is the outcome of Evaluate. Reason is set when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  error
}

// Err returns nil for an allowed decision and the denial reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// Evaluate checks stock for every product and then the credit rule
// balance - amount >= -limit. It performs no writes. Read failures are
// returned as errors, never folded into a denial.
func Evaluate(ctx context.Context, r Reader, c Candidate) (Decision, error) {
	demand := make(map[int64]int, len(c.Lines))
	for _, line := range c.Lines {
		demand[line.ProductID] += line.Quantity
	}
	productIDs := make([]int64, 0, len(demand))
	for id := range demand {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, id := range productIDs {
		required := demand[id]
		if required <= 0 {
			continue
		}
		available, err := r.ProductStock(ctx, id)
		if err != nil {
			return Decision{}, err
		}
		if available < required {
			return Decision{Reason: ErrInsufficientStock.Withf(
				"insufficient stock for product %d, available %d, required %d", id, available, required)}, nil
		}
	}

	credit, err := r.CustomerCredit(ctx, c.CustomerID)
	if err != nil {
		return Decision{}, err
	}
	after := credit.Balance.Sub(c.Amount)
	if after.LessThan(credit.Limit.Neg()) {
		return Decision{Reason: ErrCreditLimitExceeded.Withf(
			"credit limit exceeded for customer %d: balance %s, order %s, limit %s",
			c.CustomerID, credit.Balance.StringFixed(2), c.Amount.StringFixed(2), credit.Limit.StringFixed(2))}, nil
	}
	return Decision{Allowed: true}, nil
}

// Mode selects how a caller reacts to a denial.
type Mode int

const (
	// ModeEnforce turns a denial into an error.
	ModeEnforce Mode = iota
	// ModeAdvise reports a denial as a skip so the caller can continue.
	ModeAdvise
)

// Apply interprets d under m. In ModeAdvise a denial yields skip=true and a
// nil error; in ModeEnforce it yields the denial reason.
func (m Mode) Apply(d Decision) (skip bool, err error) {
	if d.Allowed {
		return false, nil
	}
	if m == ModeAdvise {
		return true, nil
	}
	if d.Reason == nil {
		return false, errDenied
	}
	return false, d.Reason
}

var errDenied = errors.New("gate: order denied")
