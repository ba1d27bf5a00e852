package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/platform/db"
)

type tableSet struct {
	owners     string
	balanceCol string
	entries    string
	ownerCol   string
}

func tablesFor(scope Scope) (tableSet, error) {
	switch scope {
	case ScopeCustomer:
		return tableSet{owners: "customers", balanceCol: "cash_balance", entries: "customer_ledger", ownerCol: "customer_id"}, nil
	case ScopeDriver:
		return tableSet{owners: "drivers", balanceCol: "ledger_balance", entries: "driver_ledger", ownerCol: "driver_id"}, nil
	default:
		return tableSet{}, ErrInvalidScope.Withf("invalid ledger scope %q", scope)
	}
}

// Store implements TxStore and the read queries on top of a pool or a transaction.
type Store struct {
	q db.DBTX
}

// NewStore wraps q, which is usually a pgx.Tx.
func NewStore(q db.DBTX) *Store {
	return &Store{q: q}
}

// LockBalance reads the owner's balance with FOR UPDATE.
func (s *Store) LockBalance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error) {
	return s.balance(ctx, scope, ownerID, true)
}

// Balance reads the owner's balance without locking.
func (s *Store) Balance(ctx context.Context, scope Scope, ownerID int64) (decimal.Decimal, error) {
	return s.balance(ctx, scope, ownerID, false)
}

func (s *Store) balance(ctx context.Context, scope Scope, ownerID int64, lock bool) (decimal.Decimal, error) {
	t, err := tablesFor(scope)
	if err != nil {
		return decimal.Zero, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.balanceCol, t.owners)
	if lock {
		query += ` FOR UPDATE`
	}
	var balance decimal.Decimal
	if err := s.q.QueryRow(ctx, query, ownerID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrOwnerNotFound.Withf("%s %d not found", scopeNoun(scope), ownerID)
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// SetBalance persists the closing balance.
func (s *Store) SetBalance(ctx context.Context, scope Scope, ownerID int64, balance decimal.Decimal) error {
	t, err := tablesFor(scope)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = NOW() WHERE id = $2`, t.owners, t.balanceCol)
	tag, err := s.q.Exec(ctx, query, balance, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOwnerNotFound.Withf("%s %d not found", scopeNoun(scope), ownerID)
	}
	return nil
}

// InsertEntry appends an entry row.
func (s *Store) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	t, err := tablesFor(entry.Scope)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, kind, amount, balance_after, description, ref_module, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, t.entries, t.ownerCol)
	var id int64
	err = s.q.QueryRow(ctx, query,
		entry.OwnerID, string(entry.Kind), entry.Amount, entry.BalanceAfter,
		entry.Description, entry.RefModule, entry.RefID, entry.CreatedAt,
	).Scan(&id)
	return id, err
}

// Entries lists entries newest first.
func (s *Store) Entries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	return s.listEntries(ctx, filter, "DESC")
}

// History lists every entry of an owner oldest first.
func (s *Store) History(ctx context.Context, scope Scope, ownerID int64) ([]Entry, error) {
	return s.listEntries(ctx, EntryFilter{Scope: scope, OwnerID: ownerID}, "ASC")
}

func (s *Store) listEntries(ctx context.Context, filter EntryFilter, dir string) ([]Entry, error) {
	t, err := tablesFor(filter.Scope)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, %s, kind, amount, balance_after, description, ref_module, ref_id, created_at
		FROM %s
		WHERE %s = $1
		ORDER BY id %s`, t.ownerCol, t.entries, t.ownerCol, dir)
	args := []any{filter.OwnerID}
	if filter.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Scope: filter.Scope}
		var kind string
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &e.Amount, &e.BalanceAfter, &e.Description, &e.RefModule, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OwnerIDs lists every owner id for scope.
func (s *Store) OwnerIDs(ctx context.Context, scope Scope) ([]int64, error) {
	t, err := tablesFor(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, t.owners))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Repository is the pool-backed read side.
type Repository struct {
	*Store
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Store: NewStore(pool)}
}

func scopeNoun(scope Scope) string {
	if scope == ScopeDriver {
		return "driver"
	}
	return "customer"
}
