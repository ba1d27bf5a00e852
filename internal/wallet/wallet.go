// Package wallet tracks returnable containers held by each customer per product.
package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Wallet is the container balance of one customer for one product.
type Wallet struct {
	CustomerID int64     `json:"customer_id"`
	ProductID  int64     `json:"product_id"`
	Balance    int       `json:"balance"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrWalletNotFound indicates no wallet row exists yet.
	ErrWalletNotFound = errors.New("container wallet not found")
	// ErrNegativeContainerBalance aborts any change that would leave a wallet below zero.
	ErrNegativeContainerBalance = shared.NewError(shared.ErrInvariantViolation, "negative_container_balance", "container balance cannot go negative")
)

// TxStore is the transaction-scoped persistence used by Tracker.
type TxStore interface {
	GetWalletForUpdate(ctx context.Context, customerID, productID int64) (Wallet, error)
	SaveWallet(ctx context.Context, w Wallet) error
}

// Tracker applies container movements to wallets.
type Tracker struct {
	clock func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker() *Tracker {
	return &Tracker{clock: func() time.Time { return time.Now().UTC() }}
}

// Apply adds net (filled given minus empties taken) to the wallet, creating it
// at zero when missing.
func (t *Tracker) Apply(ctx context.Context, store TxStore, customerID, productID int64, net int) (Wallet, error) {
	w, err := store.GetWalletForUpdate(ctx, customerID, productID)
	if errors.Is(err, ErrWalletNotFound) {
		w = Wallet{CustomerID: customerID, ProductID: productID}
	} else if err != nil {
		return Wallet{}, err
	}
	next := w.Balance + net
	if next < 0 {
		return Wallet{}, ErrNegativeContainerBalance.Withf(
			"container balance for customer %d product %d would be %d (holding %d, change %d)",
			customerID, productID, next, w.Balance, net)
	}
	w.Balance = next
	w.UpdatedAt = t.clock()
	if err := store.SaveWallet(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}
