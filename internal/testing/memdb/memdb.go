// Package memdb is an in-memory stand-in for the balance, wallet and stock
// tables. It implements the ledger, wallet, inventory and gate store
// interfaces so service tests can run the real transaction steps without
// PostgreSQL.
package memdb

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/gate"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/wallet"
)

// Customer mirrors a customers row.
type Customer struct {
	ID          int64
	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
}

// Driver mirrors a drivers row.
type Driver struct {
	ID      int64
	Balance decimal.Decimal
}

// WalletKey identifies a container wallet.
type WalletKey struct {
	CustomerID int64
	ProductID  int64
}

// DB holds the rows. Restore swaps contents in place so pointers handed out
// earlier stay valid across a rollback.
type DB struct {
	Customers map[int64]Customer
	Drivers   map[int64]Driver
	Products  map[int64]inventory.Stock
	Wallets   map[WalletKey]wallet.Wallet
	Entries   []ledger.Entry
	Movements []inventory.Movement
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		Customers: make(map[int64]Customer),
		Drivers:   make(map[int64]Driver),
		Products:  make(map[int64]inventory.Stock),
		Wallets:   make(map[WalletKey]wallet.Wallet),
	}
}

// AddCustomer seeds a customer.
func (d *DB) AddCustomer(id int64, balance, creditLimit string) {
	d.Customers[id] = Customer{ID: id, Balance: decimal.RequireFromString(balance), CreditLimit: decimal.RequireFromString(creditLimit)}
}

// AddDriver seeds a driver with a zero balance.
func (d *DB) AddDriver(id int64) {
	d.Drivers[id] = Driver{ID: id}
}

// AddProduct seeds a product.
func (d *DB) AddProduct(id int64, price string, filled, empty int) {
	d.Products[id] = inventory.Stock{ProductID: id, Price: decimal.RequireFromString(price), Filled: filled, Empty: empty}
}

// Clone deep-copies the DB.
func (d *DB) Clone() *DB {
	c := New()
	for k, v := range d.Customers {
		c.Customers[k] = v
	}
	for k, v := range d.Drivers {
		c.Drivers[k] = v
	}
	for k, v := range d.Products {
		c.Products[k] = v
	}
	for k, v := range d.Wallets {
		c.Wallets[k] = v
	}
	c.Entries = append([]ledger.Entry(nil), d.Entries...)
	c.Movements = append([]inventory.Movement(nil), d.Movements...)
	return c
}

// Restore replaces d's contents with snapshot's.
func (d *DB) Restore(snapshot *DB) {
	*d = *snapshot.Clone()
}

// Balance returns the stored balance of a customer or driver.
func (d *DB) Balance(scope ledger.Scope, ownerID int64) decimal.Decimal {
	if scope == ledger.ScopeDriver {
		return d.Drivers[ownerID].Balance
	}
	return d.Customers[ownerID].Balance
}

// EntriesFor returns the owner's entries oldest first.
func (d *DB) EntriesFor(scope ledger.Scope, ownerID int64) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range d.Entries {
		if e.Scope == scope && e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WalletBalance returns a wallet balance and whether the wallet exists.
func (d *DB) WalletBalance(customerID, productID int64) (int, bool) {
	w, ok := d.Wallets[WalletKey{CustomerID: customerID, ProductID: productID}]
	return w.Balance, ok
}

// LockBalance implements ledger.TxStore.
func (d *DB) LockBalance(ctx context.Context, scope ledger.Scope, ownerID int64) (decimal.Decimal, error) {
	switch scope {
	case ledger.ScopeCustomer:
		c, ok := d.Customers[ownerID]
		if !ok {
			return decimal.Zero, ledger.ErrOwnerNotFound.Withf("customer %d not found", ownerID)
		}
		return c.Balance, nil
	case ledger.ScopeDriver:
		dr, ok := d.Drivers[ownerID]
		if !ok {
			return decimal.Zero, ledger.ErrOwnerNotFound.Withf("driver %d not found", ownerID)
		}
		return dr.Balance, nil
	default:
		return decimal.Zero, ledger.ErrInvalidScope
	}
}

// SetBalance implements ledger.TxStore.
func (d *DB) SetBalance(ctx context.Context, scope ledger.Scope, ownerID int64, balance decimal.Decimal) error {
	switch scope {
	case ledger.ScopeCustomer:
		c, ok := d.Customers[ownerID]
		if !ok {
			return ledger.ErrOwnerNotFound
		}
		c.Balance = balance
		d.Customers[ownerID] = c
	case ledger.ScopeDriver:
		dr, ok := d.Drivers[ownerID]
		if !ok {
			return ledger.ErrOwnerNotFound
		}
		dr.Balance = balance
		d.Drivers[ownerID] = dr
	default:
		return ledger.ErrInvalidScope
	}
	return nil
}

// InsertEntry implements ledger.TxStore.
func (d *DB) InsertEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	entry.ID = int64(len(d.Entries) + 1)
	d.Entries = append(d.Entries, entry)
	return entry.ID, nil
}

// GetWalletForUpdate implements wallet.TxStore.
func (d *DB) GetWalletForUpdate(ctx context.Context, customerID, productID int64) (wallet.Wallet, error) {
	w, ok := d.Wallets[WalletKey{CustomerID: customerID, ProductID: productID}]
	if !ok {
		return wallet.Wallet{}, wallet.ErrWalletNotFound
	}
	return w, nil
}

// SaveWallet implements wallet.TxStore.
func (d *DB) SaveWallet(ctx context.Context, w wallet.Wallet) error {
	d.Wallets[WalletKey{CustomerID: w.CustomerID, ProductID: w.ProductID}] = w
	return nil
}

// GetStockForUpdate implements inventory.TxStore.
func (d *DB) GetStockForUpdate(ctx context.Context, productID int64) (inventory.Stock, error) {
	s, ok := d.Products[productID]
	if !ok {
		return inventory.Stock{}, inventory.ErrProductNotFound.Withf("product %d not found", productID)
	}
	return s, nil
}

// SaveStock implements inventory.TxStore.
func (d *DB) SaveStock(ctx context.Context, stock inventory.Stock) error {
	d.Products[stock.ProductID] = stock
	return nil
}

// InsertMovement implements inventory.TxStore.
func (d *DB) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	m.ID = int64(len(d.Movements) + 1)
	d.Movements = append(d.Movements, m)
	return m.ID, nil
}

// CustomerCredit implements gate.Reader.
func (d *DB) CustomerCredit(ctx context.Context, customerID int64) (gate.Credit, error) {
	c, ok := d.Customers[customerID]
	if !ok {
		return gate.Credit{}, ledger.ErrOwnerNotFound.Withf("customer %d not found", customerID)
	}
	return gate.Credit{Balance: c.Balance, Limit: c.CreditLimit}, nil
}

// ProductStock implements gate.Reader.
func (d *DB) ProductStock(ctx context.Context, productID int64) (int, error) {
	s, ok := d.Products[productID]
	if !ok {
		return 0, inventory.ErrProductNotFound.Withf("product %d not found", productID)
	}
	return s.Filled, nil
}

var (
	_ ledger.TxStore    = (*DB)(nil)
	_ wallet.TxStore    = (*DB)(nil)
	_ inventory.TxStore = (*DB)(nil)
	_ gate.Reader       = (*DB)(nil)
)
