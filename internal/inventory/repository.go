package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/platform/db"
)

// Store implements TxStore and stock reads over a pool or a transaction.
type Store struct {
	q db.DBTX
}

// NewStore wraps q.
func NewStore(q db.DBTX) *Store {
	return &Store{q: q}
}

const stockColumns = `id, name, price, stock_filled, stock_empty, stock_damaged, stock_reserved, updated_at`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.ProductID, &s.Name, &s.Price, &s.Filled, &s.Empty, &s.Damaged, &s.Reserved, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, ErrProductNotFound
	}
	return s, err
}

// GetStockForUpdate locks the product row.
func (s *Store) GetStockForUpdate(ctx context.Context, productID int64) (Stock, error) {
	stock, err := scanStock(s.q.QueryRow(ctx, `SELECT `+stockColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID))
	if errors.Is(err, ErrProductNotFound) {
		return Stock{}, ErrProductNotFound.Withf("product %d not found", productID)
	}
	return stock, err
}

// GetStock reads the product row without locking.
func (s *Store) GetStock(ctx context.Context, productID int64) (Stock, error) {
	stock, err := scanStock(s.q.QueryRow(ctx, `SELECT `+stockColumns+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, ErrProductNotFound) {
		return Stock{}, ErrProductNotFound.Withf("product %d not found", productID)
	}
	return stock, err
}

// ListStock lists every product.
func (s *Store) ListStock(ctx context.Context) ([]Stock, error) {
	rows, err := s.q.Query(ctx, `SELECT `+stockColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stock)
	}
	return out, rows.Err()
}

// SaveStock writes the counters back.
func (s *Store) SaveStock(ctx context.Context, stock Stock) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE products
		SET stock_filled = $1, stock_empty = $2, stock_damaged = $3, updated_at = $4
		WHERE id = $5`,
		stock.Filled, stock.Empty, stock.Damaged, stock.UpdatedAt, stock.ProductID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound.Withf("product %d not found", stock.ProductID)
	}
	return nil
}

// InsertMovement appends a movement row.
func (s *Store) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO stock_movements (
			product_id, movement_type, filled_delta, empty_delta, damaged_delta,
			ref_module, ref_id, note, actor_id, posted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		m.ProductID, string(m.Type), m.FilledDelta, m.EmptyDelta, m.DamagedDelta,
		m.RefModule, m.RefID, m.Note, m.ActorID, m.PostedAt,
	).Scan(&id)
	return id, err
}

// ListMovements returns movements newest first.
func (s *Store) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var from, to *time.Time
	if !filter.From.IsZero() {
		from = &filter.From
	}
	if !filter.To.IsZero() {
		to = &filter.To
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, product_id, movement_type, filled_delta, empty_delta, damaged_delta,
		       ref_module, ref_id, note, actor_id, posted_at
		FROM stock_movements
		WHERE product_id = $1
		  AND ($2::timestamptz IS NULL OR posted_at >= $2)
		  AND ($3::timestamptz IS NULL OR posted_at <= $3)
		ORDER BY posted_at DESC, id DESC
		LIMIT $4`, filter.ProductID, from, to, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.ProductID, &typ, &m.FilledDelta, &m.EmptyDelta, &m.DamagedDelta,
			&m.RefModule, &m.RefID, &m.Note, &m.ActorID, &m.PostedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	*Store
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Store: NewStore(pool), pool: pool}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}
