package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/platform/db"
)

// Store implements TxStore over a pool or a transaction.
type Store struct {
	q db.DBTX
}

// NewStore wraps q.
func NewStore(q db.DBTX) *Store {
	return &Store{q: q}
}

// GetWalletForUpdate locks the wallet row.
func (s *Store) GetWalletForUpdate(ctx context.Context, customerID, productID int64) (Wallet, error) {
	w := Wallet{CustomerID: customerID, ProductID: productID}
	err := s.q.QueryRow(ctx, `
		SELECT balance, updated_at FROM customer_wallets
		WHERE customer_id = $1 AND product_id = $2
		FOR UPDATE`, customerID, productID).Scan(&w.Balance, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

// SaveWallet upserts the wallet row.
func (s *Store) SaveWallet(ctx context.Context, w Wallet) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO customer_wallets (customer_id, product_id, balance, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		w.CustomerID, w.ProductID, w.Balance, w.UpdatedAt)
	return err
}

// ListByCustomer returns every wallet of a customer.
func (s *Store) ListByCustomer(ctx context.Context, customerID int64) ([]Wallet, error) {
	rows, err := s.q.Query(ctx, `
		SELECT customer_id, product_id, balance, updated_at
		FROM customer_wallets WHERE customer_id = $1 ORDER BY product_id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.CustomerID, &w.ProductID, &w.Balance, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// NewRepository returns the pool-backed store for reads.
func NewRepository(pool *pgxpool.Pool) *Store {
	return NewStore(pool)
}
