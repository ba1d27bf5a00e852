package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/wallet"
)

// Repository defines the interface for delivery order persistence.
type Repository interface {
	// Read operations
	GetByID(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)
	StandingOrders(ctx context.Context, customerIDs []int64) ([]StandingOrder, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. Ledger, Wallets and Stock
// share the same transaction so the completion steps commit or roll back
// together.
type TxRepository interface {
	gate.Reader

	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	SaveItem(ctx context.Context, item Item) error
	ReplaceItems(ctx context.Context, orderID int64, items []Item) error
	UpdateOrder(ctx context.Context, o Order) error
	ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
	DriverExists(ctx context.Context, driverID int64) (bool, error)
	HasOrderOn(ctx context.Context, customerID int64, date time.Time) (bool, error)

	Ledger() ledger.TxStore
	Wallets() wallet.TxStore
	Stock() inventory.TxStore
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx wraps callback in a repeatable-read transaction, retried on
// serialization failures.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

const orderColumns = `o.id, o.customer_id, o.driver_id, o.status, o.scheduled_date, o.total_amount,
	o.cash_collected, o.payment_method, o.delivery_charge, o.discount, o.cash_handover_id,
	o.cancelled_at, o.cancelled_by, o.cancel_reason, o.rescheduled_to, o.completed_at,
	o.completed_by, o.generation_batch, o.created_by, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.DriverID, &o.Status, &o.ScheduledDate, &o.TotalAmount,
		&o.CashCollected, &o.PaymentMethod, &o.DeliveryCharge, &o.Discount, &o.CashHandoverID,
		&o.CancelledAt, &o.CancelledBy, &o.CancelReason, &o.RescheduledTo, &o.CompletedAt,
		&o.CompletedBy, &o.GenerationBatch, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func getOrder(ctx context.Context, q db.DBTX, id int64, lock bool) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound.Withf("delivery order %d not found", id)
		}
		return Order{}, err
	}
	items, err := loadItems(ctx, q, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

func loadItems(ctx context.Context, q db.DBTX, orderIDs []int64) (map[int64][]Item, error) {
	out := make(map[int64][]Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, filled_given, empty_taken, damaged_returned
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&item.FilledGiven, &item.EmptyTaken, &item.DamagedReturned); err != nil {
			return nil, err
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, rows.Err()
}

// GetByID retrieves an order with its items.
func (r *repository) GetByID(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// List returns a page of orders and the total count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}

	if req.DriverID != nil {
		conditions = append(conditions, fmt.Sprintf("o.driver_id = $%d", argPos))
		args = append(args, *req.DriverID)
		argPos++
	}

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("o.scheduled_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}

	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("o.scheduled_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM orders o %s`, whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		%s
		ORDER BY o.scheduled_date DESC, o.id DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []Order
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range results {
		results[i].Items = items[results[i].ID]
	}
	return results, total, nil
}

// StandingOrders lists active recurring demand of active customers,
// optionally restricted to customerIDs.
func (r *repository) StandingOrders(ctx context.Context, customerIDs []int64) ([]StandingOrder, error) {
	query := `
		SELECT so.customer_id, so.product_id, so.quantity, so.driver_id
		FROM customer_standing_orders so
		INNER JOIN customers c ON c.id = so.customer_id
		WHERE so.active AND c.active`
	var args []interface{}
	if len(customerIDs) > 0 {
		query += ` AND so.customer_id = ANY($1)`
		args = append(args, customerIDs)
	}
	query += ` ORDER BY so.customer_id, so.product_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StandingOrder
	for rows.Next() {
		var so StandingOrder
		if err := rows.Scan(&so.CustomerID, &so.ProductID, &so.Quantity, &so.DriverID); err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	return out, rows.Err()
}
