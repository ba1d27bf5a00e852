package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/platform/db"
)

// Repository is the expense persistence port.
type Repository interface {
	Insert(ctx context.Context, e Expense) (int64, error)
	Get(ctx context.Context, id int64) (Expense, error)
	List(ctx context.Context, req ListRequest) ([]Expense, int, error)
	DriverExists(ctx context.Context, driverID int64) (bool, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository locks and updates a single expense.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Expense, error)
	Review(ctx context.Context, e Expense) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const expenseColumns = `id, driver_id, amount, category, description, status, payment_method,
	cash_handover_id, incurred_on, reviewed_by, reviewed_at, created_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.DriverID, &e.Amount, &e.Category, &e.Description, &e.Status, &e.PaymentMethod,
		&e.CashHandoverID, &e.IncurredOn, &e.ReviewedBy, &e.ReviewedAt, &e.CreatedAt)
	return e, err
}

func getExpense(ctx context.Context, q db.DBTX, id int64, lock bool) (Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	e, err := scanExpense(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound.Withf("expense %d not found", id)
	}
	return e, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Insert(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (driver_id, amount, category, description, status, payment_method, incurred_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.DriverID, e.Amount, e.Category, e.Description, e.Status, e.PaymentMethod, e.IncurredOn).Scan(&id)
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (Expense, error) {
	return getExpense(ctx, r.pool, id, false)
}

func (r *repository) DriverExists(ctx context.Context, driverID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)`, driverID).Scan(&exists)
	return exists, err
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Expense, int, error) {
	var conditions []string
	var args []any
	argPos := 1
	if req.DriverID != nil {
		conditions = append(conditions, fmt.Sprintf("driver_id = $%d", argPos))
		args = append(args, *req.DriverID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM expenses%s ORDER BY incurred_on DESC, id DESC LIMIT $%d OFFSET $%d`,
		expenseColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	out := make([]Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Expense, error) {
	return getExpense(ctx, t.tx, id, true)
}

func (t *txRepository) Review(ctx context.Context, e Expense) error {
	_, err := t.tx.Exec(ctx, `UPDATE expenses SET status = $1, reviewed_by = $2, reviewed_at = $3 WHERE id = $4`,
		e.Status, e.ReviewedBy, e.ReviewedAt, e.ID)
	return err
}
