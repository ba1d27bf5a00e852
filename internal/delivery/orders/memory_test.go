package orders

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
	"github.com/odyssey-erp/depot/internal/testing/memdb"
	"github.com/odyssey-erp/depot/internal/wallet"
)

type memoryRepo struct {
	db       *memdb.DB
	orders   map[int64]Order
	standing []StandingOrder
	nextItem int64
	txCount  int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{db: memdb.New(), orders: make(map[int64]Order)}
}

func cloneOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	return o
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCount++
	snapshot := r.db.Clone()
	orders := make(map[int64]Order, len(r.orders))
	for id, o := range r.orders {
		orders[id] = cloneOrder(o)
	}
	nextItem := r.nextItem
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.db.Restore(snapshot)
		r.orders = orders
		r.nextItem = nextItem
		return err
	}
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound.Withf("delivery order %d not found", id)
	}
	return cloneOrder(o), nil
}

func (r *memoryRepo) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if req.CustomerID != nil && o.CustomerID != *req.CustomerID {
			continue
		}
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if req.Offset < len(out) {
		out = out[req.Offset:]
	} else {
		out = nil
	}
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, total, nil
}

func (r *memoryRepo) StandingOrders(ctx context.Context, customerIDs []int64) ([]StandingOrder, error) {
	if len(customerIDs) == 0 {
		return r.standing, nil
	}
	want := make(map[int64]bool, len(customerIDs))
	for _, id := range customerIDs {
		want[id] = true
	}
	var out []StandingOrder
	for _, so := range r.standing {
		if want[so.CustomerID] {
			out = append(out, so)
		}
	}
	return out, nil
}

func (t *memoryTx) Ledger() ledger.TxStore { return t.repo.db }
func (t *memoryTx) Wallets() wallet.TxStore { return t.repo.db }
func (t *memoryTx) Stock() inventory.TxStore { return t.repo.db }

func (t *memoryTx) CustomerCredit(ctx context.Context, customerID int64) (gate.Credit, error) {
	return t.repo.db.CustomerCredit(ctx, customerID)
}

func (t *memoryTx) ProductStock(ctx context.Context, productID int64) (int, error) {
	return t.repo.db.ProductStock(ctx, productID)
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return t.repo.GetByID(ctx, id)
}

func (t *memoryTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	id := int64(len(t.repo.orders) + 1)
	o.ID = id
	o.Items = nil
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.repo.orders[id] = o
	return id, nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	o, ok := t.repo.orders[item.OrderID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	t.repo.nextItem++
	item.ID = t.repo.nextItem
	o.Items = append(o.Items, item)
	t.repo.orders[item.OrderID] = o
	return item.ID, nil
}

func (t *memoryTx) SaveItem(ctx context.Context, item Item) error {
	o, ok := t.repo.orders[item.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	for i := range o.Items {
		if o.Items[i].ProductID == item.ProductID {
			item.ID = o.Items[i].ID
			o.Items[i] = item
			t.repo.orders[item.OrderID] = o
			return nil
		}
	}
	_, err := t.InsertItem(ctx, item)
	return err
}

func (t *memoryTx) ReplaceItems(ctx context.Context, orderID int64, items []Item) error {
	o, ok := t.repo.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Items = nil
	t.repo.orders[orderID] = o
	for _, item := range items {
		item.OrderID = orderID
		if _, err := t.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) UpdateOrder(ctx context.Context, o Order) error {
	stored, ok := t.repo.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Items = stored.Items
	o.UpdatedAt = time.Now()
	t.repo.orders[o.ID] = o
	return nil
}

func (t *memoryTx) ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	p, ok := t.repo.db.Products[productID]
	if !ok {
		return decimal.Zero, ErrProductNotFound.Withf("product %d not found", productID)
	}
	return p.Price, nil
}

func (t *memoryTx) DriverExists(ctx context.Context, driverID int64) (bool, error) {
	_, ok := t.repo.db.Drivers[driverID]
	return ok, nil
}

func (t *memoryTx) HasOrderOn(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	for _, o := range t.repo.orders {
		if o.CustomerID == customerID && o.ScheduledDate.Equal(date) && o.Status != StatusCancelled && o.Status != StatusRescheduled {
			return true, nil
		}
	}
	return false, nil
}

type recordingNotifier struct {
	events []notify.Event
	pushes []notify.DriverPush
}

func (n *recordingNotifier) Publish(ctx context.Context, evt notify.Event) {
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) PushDriver(ctx context.Context, push notify.DriverPush) {
	n.pushes = append(n.pushes, push)
}
