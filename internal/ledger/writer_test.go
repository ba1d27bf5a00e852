package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	balances map[Scope]map[int64]decimal.Decimal
	entries  []Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{balances: map[Scope]map[int64]decimal.Decimal{
		ScopeCustomer: {},
		ScopeDriver:   {},
	}}
}

func (m *memoryStore) LockBalance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error) {
	bal, ok := m.balances[scope][ownerID]
	if !ok {
		return decimal.Zero, ErrOwnerNotFound
	}
	return bal, nil
}

func (m *memoryStore) SetBalance(ctx context.Context, scope Scope, ownerID int64, balance decimal.Decimal) error {
	m.balances[scope][ownerID] = balance
	return nil
}

func (m *memoryStore) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *memoryStore) Balance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error) {
	return m.LockBalance(ctx, scope, ownerID)
}

func (m *memoryStore) Entries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	history, _ := m.History(ctx, filter.Scope, filter.OwnerID)
	out := make([]Entry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (m *memoryStore) History(ctx context.Context, scope Scope, ownerID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.Scope == scope && e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) OwnerIDs(ctx context.Context, scope Scope) ([]int64, error) {
	var ids []int64
	for id := range m.balances[scope] {
		ids = append(ids, id)
	}
	return ids, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAppendChainsBalances(t *testing.T) {
	store := newMemoryStore()
	store.balances[ScopeCustomer][1] = decimal.Zero
	w := NewWriter()

	posting, err := w.Append(context.Background(), store, ScopeCustomer, 1,
		Line{Kind: KindSale, Amount: dec("-200"), Description: "Delivery order #1"},
		Line{Kind: KindPayment, Amount: dec("150"), Description: "Cash payment for order #1"},
	)
	require.NoError(t, err)
	require.Len(t, posting.Entries, 2)
	require.True(t, posting.Entries[0].BalanceAfter.Equal(dec("-200")))
	require.True(t, posting.Entries[1].BalanceAfter.Equal(dec("-50")))
	require.True(t, posting.Closing.Equal(dec("-50")))
	require.True(t, store.balances[ScopeCustomer][1].Equal(dec("-50")))
}

func TestAppendSkipsZeroLines(t *testing.T) {
	store := newMemoryStore()
	store.balances[ScopeDriver][4] = dec("10")
	w := NewWriter()

	posting, err := w.Append(context.Background(), store, ScopeDriver, 4, Line{Kind: KindShortage, Amount: decimal.Zero})
	require.NoError(t, err)
	require.Empty(t, posting.Entries)
	require.Empty(t, store.entries)
	require.True(t, posting.Closing.Equal(dec("10")))
}

func TestAppendUnknownOwner(t *testing.T) {
	w := NewWriter()
	_, err := w.Append(context.Background(), newMemoryStore(), ScopeCustomer, 99, Line{Kind: KindSale, Amount: dec("-1")})
	require.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestAppendRejectsInvalidScope(t *testing.T) {
	w := NewWriter()
	_, err := w.Append(context.Background(), newMemoryStore(), Scope("VENDOR"), 1)
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestDecimalPrecisionSurvivesManyEntries(t *testing.T) {
	store := newMemoryStore()
	store.balances[ScopeCustomer][1] = decimal.Zero
	w := NewWriter()
	for i := 0; i < 1000; i++ {
		_, err := w.Append(context.Background(), store, ScopeCustomer, 1, Line{Kind: KindSale, Amount: dec("-0.10")})
		require.NoError(t, err)
	}
	require.True(t, store.balances[ScopeCustomer][1].Equal(dec("-100")))
}

func TestCheckChainDetectsBreak(t *testing.T) {
	entries := []Entry{
		{ID: 1, Amount: dec("-200"), BalanceAfter: dec("-200")},
		{ID: 2, Amount: dec("200"), BalanceAfter: dec("10")},
	}
	report := CheckChain(ScopeCustomer, 1, decimal.Zero, entries)
	require.False(t, report.Consistent)
	require.Equal(t, int64(2), report.BrokenAt)
	require.True(t, report.Sum.IsZero())

	entries[1].BalanceAfter = decimal.Zero
	report = CheckChain(ScopeCustomer, 1, decimal.Zero, entries)
	require.True(t, report.Consistent)
}

func TestServiceVerifyAll(t *testing.T) {
	store := newMemoryStore()
	store.balances[ScopeCustomer][1] = decimal.Zero
	store.balances[ScopeCustomer][2] = decimal.Zero
	w := NewWriter()
	ctx := context.Background()
	_, err := w.Append(ctx, store, ScopeCustomer, 1, Line{Kind: KindSale, Amount: dec("-30")})
	require.NoError(t, err)
	store.balances[ScopeCustomer][2] = dec("5")

	svc := NewService(store)
	checked, broken, err := svc.VerifyAll(ctx, ScopeCustomer)
	require.NoError(t, err)
	require.Equal(t, 2, checked)
	require.Len(t, broken, 1)
	require.Equal(t, int64(2), broken[0].OwnerID)

	stmt, err := svc.Statement(ctx, EntryFilter{Scope: ScopeCustomer, OwnerID: 1})
	require.NoError(t, err)
	require.True(t, stmt.Balance.Equal(dec("-30")))
	require.Len(t, stmt.Entries, 1)
}
