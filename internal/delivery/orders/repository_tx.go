package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/wallet"
)

// txRepository implements TxRepository.
type txRepository struct {
	tx      pgx.Tx
	ledger  *ledger.Store
	wallets *wallet.Store
	stock   *inventory.Store
}

func newTxRepository(tx pgx.Tx) *txRepository {
	return &txRepository{
		tx:      tx,
		ledger:  ledger.NewStore(tx),
		wallets: wallet.NewStore(tx),
		stock:   inventory.NewStore(tx),
	}
}

func (t *txRepository) Ledger() ledger.TxStore { return t.ledger }
func (t *txRepository) Wallets() wallet.TxStore { return t.wallets }
func (t *txRepository) Stock() inventory.TxStore { return t.stock }

// GetOrderForUpdate locks the order row and loads its items.
func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

// InsertOrder creates a new order.
func (t *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	query := `
		INSERT INTO orders (
			customer_id, driver_id, status, scheduled_date, total_amount, cash_collected,
			payment_method, delivery_charge, discount, generation_batch, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		o.CustomerID, o.DriverID, o.Status, o.ScheduledDate, o.TotalAmount, o.CashCollected,
		o.PaymentMethod, o.DeliveryCharge, o.Discount, o.GenerationBatch, o.CreatedBy,
	).Scan(&id)
	return id, err
}

// InsertItem inserts an order item.
func (t *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	query := `
		INSERT INTO order_items (
			order_id, product_id, quantity, price, filled_given, empty_taken, damaged_returned
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price,
		item.FilledGiven, item.EmptyTaken, item.DamagedReturned,
	).Scan(&id)
	return id, err
}

// SaveItem upserts the line for (order, product).
func (t *txRepository) SaveItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (
			order_id, product_id, quantity, price, filled_given, empty_taken, damaged_returned
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			filled_given = EXCLUDED.filled_given,
			empty_taken = EXCLUDED.empty_taken,
			damaged_returned = EXCLUDED.damaged_returned
	`, item.OrderID, item.ProductID, item.Quantity, item.Price,
		item.FilledGiven, item.EmptyTaken, item.DamagedReturned)
	return err
}

// ReplaceItems removes all lines of an order and inserts items.
func (t *txRepository) ReplaceItems(ctx context.Context, orderID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for _, item := range items {
		item.OrderID = orderID
		if _, err := t.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrder writes every mutable column of o.
func (t *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			driver_id = $2, status = $3, scheduled_date = $4, total_amount = $5,
			cash_collected = $6, payment_method = $7, delivery_charge = $8, discount = $9,
			cancelled_at = $10, cancelled_by = $11, cancel_reason = $12, rescheduled_to = $13,
			completed_at = $14, completed_by = $15, updated_at = $16
		WHERE id = $1
	`, o.ID, o.DriverID, o.Status, o.ScheduledDate, o.TotalAmount,
		o.CashCollected, o.PaymentMethod, o.DeliveryCharge, o.Discount,
		o.CancelledAt, o.CancelledBy, o.CancelReason, o.RescheduledTo,
		o.CompletedAt, o.CompletedBy, time.Now())
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound.Withf("delivery order %d not found", o.ID)
	}
	return nil
}

// ProductPrice reads the catalog price.
func (t *txRepository) ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrProductNotFound.Withf("product %d not found", productID)
	}
	return price, err
}

// DriverExists checks that an active driver exists.
func (t *txRepository) DriverExists(ctx context.Context, driverID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM drivers WHERE id = $1 AND active)`, driverID).Scan(&exists)
	return exists, err
}

// HasOrderOn reports whether the customer already has a live order on date.
func (t *txRepository) HasOrderOn(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE customer_id = $1 AND scheduled_date = $2 AND status NOT IN ('CANCELLED', 'RESCHEDULED')
		)`, customerID, date).Scan(&exists)
	return exists, err
}

// CustomerCredit reads balance and limit with a share lock so a concurrent
// completion cannot move the balance under the gate.
func (t *txRepository) CustomerCredit(ctx context.Context, customerID int64) (gate.Credit, error) {
	var credit gate.Credit
	err := t.tx.QueryRow(ctx, `SELECT cash_balance, credit_limit FROM customers WHERE id = $1 FOR SHARE`, customerID).
		Scan(&credit.Balance, &credit.Limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return gate.Credit{}, ErrCustomerNotFound.Withf("customer %d not found", customerID)
	}
	return credit, err
}

// ProductStock reads filled stock.
func (t *txRepository) ProductStock(ctx context.Context, productID int64) (int, error) {
	var filled int
	err := t.tx.QueryRow(ctx, `SELECT stock_filled FROM products WHERE id = $1 FOR SHARE`, productID).Scan(&filled)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound.Withf("product %d not found", productID)
	}
	return filled, err
}
