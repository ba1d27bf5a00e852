package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore is the transaction-scoped persistence the writer needs. LockBalance
// must hold a row lock on the owner until the transaction ends.
type TxStore interface {
	LockBalance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, scope Scope, ownerID int64, balance decimal.Decimal) error
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

// Writer appends chained entries. It is the only path that changes a
// customer cash balance or a driver ledger balance.
type Writer struct {
	clock func() time.Time
}

// NewWriter constructs a Writer.
func NewWriter() *Writer {
	return &Writer{clock: func() time.Time { return time.Now().UTC() }}
}

// Append posts lines in order, each entry carrying the balance after it, then
// persists the closing balance. Zero-amount lines are skipped.
func (w *Writer) Append(ctx context.Context, store TxStore, scope Scope, ownerID int64, lines ...Line) (Posting, error) {
	if !scope.IsValid() {
		return Posting{}, ErrInvalidScope.Withf("invalid ledger scope %q", scope)
	}
	if ownerID <= 0 {
		return Posting{}, errNoOwner
	}
	opening, err := store.LockBalance(ctx, scope, ownerID)
	if err != nil {
		return Posting{}, err
	}
	posting := Posting{Scope: scope, OwnerID: ownerID, Opening: opening, Closing: opening}
	now := w.clock()
	balance := opening
	for _, line := range lines {
		if line.Amount.IsZero() {
			continue
		}
		balance = balance.Add(line.Amount)
		entry := Entry{
			Scope:        scope,
			OwnerID:      ownerID,
			Kind:         line.Kind,
			Amount:       line.Amount,
			BalanceAfter: balance,
			Description:  line.Description,
			RefModule:    line.RefModule,
			RefID:        line.RefID,
			CreatedAt:    now,
		}
		id, err := store.InsertEntry(ctx, entry)
		if err != nil {
			return Posting{}, err
		}
		entry.ID = id
		posting.Entries = append(posting.Entries, entry)
	}
	if len(posting.Entries) == 0 {
		return posting, nil
	}
	if err := store.SetBalance(ctx, scope, ownerID, balance); err != nil {
		return Posting{}, err
	}
	posting.Closing = balance
	return posting, nil
}

// CheckChain verifies that entries (oldest first) start from zero, chain
// their balances and sum to balance.
func CheckChain(scope Scope, ownerID int64, balance decimal.Decimal, entries []Entry) Report {
	report := Report{Scope: scope, OwnerID: ownerID, Balance: balance, Sum: decimal.Zero, Entries: len(entries), Consistent: true}
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.Amount)
		if !running.Equal(e.BalanceAfter) && report.BrokenAt == 0 {
			report.BrokenAt = e.ID
			report.Consistent = false
		}
	}
	report.Sum = running
	if !running.Equal(balance) {
		report.Consistent = false
	}
	return report
}
