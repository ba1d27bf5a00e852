package handover

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/platform/db"
)

const pendingIndex = "uq_cash_handovers_driver_pending"

// Repository is the handover persistence port.
type Repository interface {
	Get(ctx context.Context, id int64) (Handover, error)
	List(ctx context.Context, req ListRequest) ([]Handover, int, error)
	Snapshot(ctx context.Context, driverID int64) (Snapshot, error)
	Pending(ctx context.Context, driverID int64) (*Handover, error)
	DriverBalance(ctx context.Context, driverID int64) (decimal.Decimal, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the statements that must run inside one transaction.
type TxRepository interface {
	LockDriver(ctx context.Context, driverID int64) error
	PendingForUpdate(ctx context.Context, driverID int64) (*Handover, error)
	LockSnapshot(ctx context.Context, driverID int64) (Snapshot, error)
	Insert(ctx context.Context, h Handover) (int64, error)
	LinkOrders(ctx context.Context, handoverID int64, orderIDs []int64) (int64, error)
	LinkExpenses(ctx context.Context, handoverID int64, expenseIDs []int64) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Handover, error)
	Unlink(ctx context.Context, handoverID int64) (orders, expenses int64, err error)
	Delete(ctx context.Context, id int64) error
	Update(ctx context.Context, h Handover) error

	Ledger() ledger.TxStore
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: ledger.NewStore(tx)})
	})
}

const handoverColumns = `id, code, driver_id, handover_date, expected_cash, actual_cash, discrepancy,
	orders_total, expenses_total, order_count, expense_count, status, driver_notes, admin_notes,
	adjustment_amount, shift_start, shift_end, verified_by, verified_at, created_by, created_at`

func scanHandover(row pgx.Row) (Handover, error) {
	var h Handover
	err := row.Scan(
		&h.ID, &h.Code, &h.DriverID, &h.HandoverDate, &h.ExpectedCash, &h.ActualCash, &h.Discrepancy,
		&h.OrdersTotal, &h.ExpensesTotal, &h.OrderCount, &h.ExpenseCount, &h.Status, &h.DriverNotes, &h.AdminNotes,
		&h.AdjustmentAmount, &h.ShiftStart, &h.ShiftEnd, &h.VerifiedBy, &h.VerifiedAt, &h.CreatedBy, &h.CreatedAt,
	)
	return h, err
}

func getHandover(ctx context.Context, q db.DBTX, id int64, lock bool) (Handover, error) {
	query := `SELECT ` + handoverColumns + ` FROM cash_handovers WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	h, err := scanHandover(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Handover{}, ErrHandoverNotFound.Withf("cash handover %d not found", id)
	}
	return h, err
}

func pendingFor(ctx context.Context, q db.DBTX, driverID int64, lock bool) (*Handover, error) {
	query := `SELECT ` + handoverColumns + ` FROM cash_handovers WHERE driver_id = $1 AND status = 'PENDING'`
	if lock {
		query += ` FOR UPDATE`
	}
	h, err := scanHandover(q.QueryRow(ctx, query, driverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// snapshot reads the unlinked pool. With lock set the rows stay locked
// until the transaction ends so a concurrent submission cannot sweep them.
func snapshot(ctx context.Context, q db.DBTX, driverID int64, lock bool) (Snapshot, error) {
	suffix := ""
	if lock {
		suffix = ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, `
		SELECT id, customer_id, cash_collected, completed_at
		FROM orders
		WHERE driver_id = $1 AND status = 'COMPLETED' AND payment_method = 'CASH' AND cash_handover_id IS NULL
		ORDER BY id`+suffix, driverID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query unlinked orders: %w", err)
	}
	var orders []CashOrder
	for rows.Next() {
		var o CashOrder
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.CashCollected, &o.CompletedAt); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	rows, err = q.Query(ctx, `
		SELECT id, category, amount
		FROM expenses
		WHERE driver_id = $1 AND status = 'APPROVED' AND payment_method = 'CASH_ON_HAND' AND cash_handover_id IS NULL
		ORDER BY id`+suffix, driverID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query unlinked expenses: %w", err)
	}
	defer rows.Close()
	var expenses []CashExpense
	for rows.Next() {
		var e CashExpense
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount); err != nil {
			return Snapshot{}, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(driverID, orders, expenses), nil
}

func (r *repository) Get(ctx context.Context, id int64) (Handover, error) {
	return getHandover(ctx, r.pool, id, false)
}

func (r *repository) Snapshot(ctx context.Context, driverID int64) (Snapshot, error) {
	return snapshot(ctx, r.pool, driverID, false)
}

func (r *repository) Pending(ctx context.Context, driverID int64) (*Handover, error) {
	return pendingFor(ctx, r.pool, driverID, false)
}

func (r *repository) DriverBalance(ctx context.Context, driverID int64) (decimal.Decimal, error) {
	balance, err := ledger.NewStore(r.pool).Balance(ctx, ledger.ScopeDriver, driverID)
	if errors.Is(err, ledger.ErrOwnerNotFound) {
		return decimal.Zero, ErrDriverNotFound.Withf("driver %d not found", driverID)
	}
	return balance, err
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Handover, int, error) {
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
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("handover_date >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("handover_date <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cash_handovers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count handovers: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM cash_handovers%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		handoverColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list handovers: %w", err)
	}
	defer rows.Close()

	handovers := make([]Handover, 0)
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, 0, err
		}
		handovers = append(handovers, h)
	}
	return handovers, total, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	ledger *ledger.Store
}

func (t *txRepository) Ledger() ledger.TxStore { return t.ledger }

// LockDriver serialises submissions per driver on the drivers row.
func (t *txRepository) LockDriver(ctx context.Context, driverID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM drivers WHERE id = $1 FOR UPDATE`, driverID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDriverNotFound.Withf("driver %d not found", driverID)
	}
	return err
}

func (t *txRepository) PendingForUpdate(ctx context.Context, driverID int64) (*Handover, error) {
	return pendingFor(ctx, t.tx, driverID, true)
}

func (t *txRepository) LockSnapshot(ctx context.Context, driverID int64) (Snapshot, error) {
	return snapshot(ctx, t.tx, driverID, true)
}

// Insert creates the handover row. A clash on the pending index means a
// concurrent submission won.
func (t *txRepository) Insert(ctx context.Context, h Handover) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO cash_handovers (
			code, driver_id, handover_date, expected_cash, actual_cash, discrepancy,
			orders_total, expenses_total, order_count, expense_count, status,
			driver_notes, shift_start, shift_end, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`,
		h.Code, h.DriverID, h.HandoverDate, h.ExpectedCash, h.ActualCash, h.Discrepancy,
		h.OrdersTotal, h.ExpensesTotal, h.OrderCount, h.ExpenseCount, h.Status,
		h.DriverNotes, h.ShiftStart, h.ShiftEnd, h.CreatedBy,
	).Scan(&id)
	if db.IsUniqueViolation(err, pendingIndex) {
		return 0, ErrDuplicatePendingHandover.Withf("driver %d already has a pending handover", h.DriverID)
	}
	return id, err
}

func (t *txRepository) LinkOrders(ctx context.Context, handoverID int64, orderIDs []int64) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET cash_handover_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND cash_handover_id IS NULL
	`, handoverID, orderIDs)
	if err != nil {
		return 0, fmt.Errorf("link orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) LinkExpenses(ctx context.Context, handoverID int64, expenseIDs []int64) (int64, error) {
	if len(expenseIDs) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE expenses SET cash_handover_id = $1
		WHERE id = ANY($2) AND cash_handover_id IS NULL
	`, handoverID, expenseIDs)
	if err != nil {
		return 0, fmt.Errorf("link expenses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Handover, error) {
	return getHandover(ctx, t.tx, id, true)
}

// Unlink returns every item of the handover to the unlinked pool.
func (t *txRepository) Unlink(ctx context.Context, handoverID int64) (int64, int64, error) {
	orders, err := t.tx.Exec(ctx, `UPDATE orders SET cash_handover_id = NULL, updated_at = NOW() WHERE cash_handover_id = $1`, handoverID)
	if err != nil {
		return 0, 0, fmt.Errorf("unlink orders: %w", err)
	}
	expenses, err := t.tx.Exec(ctx, `UPDATE expenses SET cash_handover_id = NULL WHERE cash_handover_id = $1`, handoverID)
	if err != nil {
		return 0, 0, fmt.Errorf("unlink expenses: %w", err)
	}
	return orders.RowsAffected(), expenses.RowsAffected(), nil
}

func (t *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM cash_handovers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHandoverNotFound.Withf("cash handover %d not found", id)
	}
	return nil
}

func (t *txRepository) Update(ctx context.Context, h Handover) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE cash_handovers
		SET status = $1, admin_notes = $2, adjustment_amount = $3, verified_by = $4, verified_at = $5
		WHERE id = $6
	`, h.Status, h.AdminNotes, h.AdjustmentAmount, h.VerifiedBy, h.VerifiedAt, h.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHandoverNotFound.Withf("cash handover %d not found", h.ID)
	}
	return nil
}
