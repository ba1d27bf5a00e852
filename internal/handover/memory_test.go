package handover

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/testing/memdb"
)

type orderRow struct {
	id         int64
	driverID   int64
	status     string
	method     string
	cash       decimal.Decimal
	handoverID *int64
}

type expenseRow struct {
	id         int64
	driverID   int64
	status     string
	method     string
	amount     decimal.Decimal
	handoverID *int64
}

type memoryRepo struct {
	mu        sync.Mutex
	db        *memdb.DB
	orders    []orderRow
	expenses  []expenseRow
	handovers map[int64]Handover
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{db: memdb.New(), handovers: make(map[int64]Handover)}
}

func (r *memoryRepo) addOrder(driverID int64, status, method, cash string) int64 {
	id := int64(len(r.orders) + 1)
	r.orders = append(r.orders, orderRow{id: id, driverID: driverID, status: status, method: method, cash: decimal.RequireFromString(cash)})
	return id
}

func (r *memoryRepo) addExpense(driverID int64, status, method, amount string) int64 {
	id := int64(len(r.expenses) + 1)
	r.expenses = append(r.expenses, expenseRow{id: id, driverID: driverID, status: status, method: method, amount: decimal.RequireFromString(amount)})
	return id
}

func (r *memoryRepo) linkedTo(handoverID int64) (orders, expenses int) {
	for _, o := range r.orders {
		if o.handoverID != nil && *o.handoverID == handoverID {
			orders++
		}
	}
	for _, e := range r.expenses {
		if e.handoverID != nil && *e.handoverID == handoverID {
			expenses++
		}
	}
	return orders, expenses
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.db.Clone()
	orders := cloneRows(r.orders)
	expenses := cloneRows(r.expenses)
	handovers := make(map[int64]Handover, len(r.handovers))
	for id, h := range r.handovers {
		handovers[id] = h
	}
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.db.Restore(snapshot)
		r.orders = orders
		r.expenses = expenses
		r.handovers = handovers
		r.nextID = nextID
		return err
	}
	return nil
}

func cloneRows[T any](rows []T) []T {
	return append([]T(nil), rows...)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Handover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handovers[id]
	if !ok {
		return Handover{}, ErrHandoverNotFound.Withf("cash handover %d not found", id)
	}
	return h, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListRequest) ([]Handover, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handover
	for _, h := range r.handovers {
		if req.DriverID != nil && h.DriverID != *req.DriverID {
			continue
		}
		if req.Status != nil && h.Status != *req.Status {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) Snapshot(ctx context.Context, driverID int64) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(driverID), nil
}

func (r *memoryRepo) snapshot(driverID int64) Snapshot {
	var orders []CashOrder
	for _, o := range r.orders {
		if o.driverID == driverID && o.status == "COMPLETED" && o.method == "CASH" && o.handoverID == nil {
			orders = append(orders, CashOrder{ID: o.id, CashCollected: o.cash})
		}
	}
	var expenses []CashExpense
	for _, e := range r.expenses {
		if e.driverID == driverID && e.status == "APPROVED" && e.method == "CASH_ON_HAND" && e.handoverID == nil {
			expenses = append(expenses, CashExpense{ID: e.id, Amount: e.amount})
		}
	}
	return NewSnapshot(driverID, orders, expenses)
}

func (r *memoryRepo) Pending(ctx context.Context, driverID int64) (*Handover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending(driverID), nil
}

func (r *memoryRepo) pending(driverID int64) *Handover {
	for _, h := range r.handovers {
		if h.DriverID == driverID && h.Status == StatusPending {
			found := h
			return &found
		}
	}
	return nil
}

func (r *memoryRepo) DriverBalance(ctx context.Context, driverID int64) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.db.Drivers[driverID]; !ok {
		return decimal.Zero, ErrDriverNotFound.Withf("driver %d not found", driverID)
	}
	return r.db.Balance(ledger.ScopeDriver, driverID), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) Ledger() ledger.TxStore { return t.repo.db }

func (t *memoryTx) LockDriver(ctx context.Context, driverID int64) error {
	if _, ok := t.repo.db.Drivers[driverID]; !ok {
		return ErrDriverNotFound.Withf("driver %d not found", driverID)
	}
	return nil
}

func (t *memoryTx) PendingForUpdate(ctx context.Context, driverID int64) (*Handover, error) {
	return t.repo.pending(driverID), nil
}

func (t *memoryTx) LockSnapshot(ctx context.Context, driverID int64) (Snapshot, error) {
	return t.repo.snapshot(driverID), nil
}

func (t *memoryTx) Insert(ctx context.Context, h Handover) (int64, error) {
	if t.repo.pending(h.DriverID) != nil {
		return 0, ErrDuplicatePendingHandover
	}
	t.repo.nextID++
	h.ID = t.repo.nextID
	t.repo.handovers[h.ID] = h
	return h.ID, nil
}

func (t *memoryTx) LinkOrders(ctx context.Context, handoverID int64, orderIDs []int64) (int64, error) {
	var n int64
	for _, id := range orderIDs {
		for i := range t.repo.orders {
			if t.repo.orders[i].id == id && t.repo.orders[i].handoverID == nil {
				hid := handoverID
				t.repo.orders[i].handoverID = &hid
				n++
			}
		}
	}
	return n, nil
}

func (t *memoryTx) LinkExpenses(ctx context.Context, handoverID int64, expenseIDs []int64) (int64, error) {
	var n int64
	for _, id := range expenseIDs {
		for i := range t.repo.expenses {
			if t.repo.expenses[i].id == id && t.repo.expenses[i].handoverID == nil {
				hid := handoverID
				t.repo.expenses[i].handoverID = &hid
				n++
			}
		}
	}
	return n, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Handover, error) {
	h, ok := t.repo.handovers[id]
	if !ok {
		return Handover{}, ErrHandoverNotFound.Withf("cash handover %d not found", id)
	}
	return h, nil
}

func (t *memoryTx) Unlink(ctx context.Context, handoverID int64) (int64, int64, error) {
	var orders, expenses int64
	for i := range t.repo.orders {
		if hid := t.repo.orders[i].handoverID; hid != nil && *hid == handoverID {
			t.repo.orders[i].handoverID = nil
			orders++
		}
	}
	for i := range t.repo.expenses {
		if hid := t.repo.expenses[i].handoverID; hid != nil && *hid == handoverID {
			t.repo.expenses[i].handoverID = nil
			expenses++
		}
	}
	return orders, expenses, nil
}

func (t *memoryTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.repo.handovers[id]; !ok {
		return ErrHandoverNotFound
	}
	delete(t.repo.handovers, id)
	return nil
}

func (t *memoryTx) Update(ctx context.Context, h Handover) error {
	if _, ok := t.repo.handovers[h.ID]; !ok {
		return ErrHandoverNotFound
	}
	t.repo.handovers[h.ID] = h
	return nil
}
