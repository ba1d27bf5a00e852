package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/shared"
)

type memoryRepo struct {
	stocks    map[int64]Stock
	movements []Movement
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(stocks ...Stock) *memoryRepo {
	repo := &memoryRepo{stocks: make(map[int64]Stock)}
	for _, s := range stocks {
		repo.stocks[s.ProductID] = s
	}
	return repo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	stocks := make(map[int64]Stock, len(r.stocks))
	for k, v := range r.stocks {
		stocks[k] = v
	}
	movements := append([]Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.stocks = stocks
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryRepo) GetStock(ctx context.Context, productID int64) (Stock, error) {
	s, ok := r.stocks[productID]
	if !ok {
		return Stock{}, ErrProductNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListStock(ctx context.Context) ([]Stock, error) {
	var out []Stock
	for _, s := range r.stocks {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetStockForUpdate(ctx context.Context, productID int64) (Stock, error) {
	return tx.repo.GetStock(ctx, productID)
}

func (tx *memoryTx) SaveStock(ctx context.Context, stock Stock) error {
	tx.repo.stocks[stock.ProductID] = stock
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	m.ID = int64(len(tx.repo.movements) + 1)
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

type recordingIntegration struct {
	events []MovementPostedEvent
	err    error
}

func (r *recordingIntegration) HandleStockMovementPosted(ctx context.Context, evt MovementPostedEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func gasCylinder(filled, empty, damaged int) Stock {
	return Stock{ProductID: 1, Name: "19L water", Price: decimal.NewFromInt(20), Filled: filled, Empty: empty, Damaged: damaged}
}

func TestRestockAddsBothBuckets(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(5, 2, 0))
	integration := &recordingIntegration{}
	audit := &recordingAudit{}
	svc := NewService(repo, audit, nil, integration, ServiceConfig{})

	res, err := svc.Restock(context.Background(), RestockInput{ProductID: 1, Filled: 10, Empty: 3, ActorID: 8})
	require.NoError(t, err)
	require.Equal(t, 15, res.Stock.Filled)
	require.Equal(t, 5, res.Stock.Empty)
	require.Equal(t, MovementRestock, res.Movement.Type)
	require.Equal(t, 10, res.Movement.FilledDelta)
	require.Len(t, integration.events, 1)
	require.Equal(t, 15, integration.events[0].Filled)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "inventory.RESTOCK", audit.logs[0].Action)
}

func TestRestockRequiresQuantity(t *testing.T) {
	svc := NewService(newMemoryRepo(gasCylinder(0, 0, 0)), nil, nil, nil, ServiceConfig{})
	_, err := svc.Restock(context.Background(), RestockInput{ProductID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Restock(context.Background(), RestockInput{ProductID: 1, Filled: -1})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
}

func TestRefillMovesEmptyToFilled(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(1, 4, 0))
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	res, err := svc.Refill(context.Background(), RefillInput{ProductID: 1, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 5, res.Stock.Filled)
	require.Equal(t, 0, res.Stock.Empty)

	_, err = svc.Refill(context.Background(), RefillInput{ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrInsufficientEmptyStock)
	require.ErrorIs(t, err, shared.ErrPreconditionFailed)
	require.EqualError(t, err, "insufficient empty stock for product 1, available 0, required 1")
	require.Len(t, repo.movements, 1)
}

func TestWriteOffDamageAndLoss(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(10, 0, 0))
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	ctx := context.Background()

	res, err := svc.WriteOff(ctx, WriteOffInput{ProductID: 1, Quantity: 3, Reason: MovementDamage})
	require.NoError(t, err)
	require.Equal(t, 7, res.Stock.Filled)
	require.Equal(t, 3, res.Stock.Damaged)

	res, err = svc.WriteOff(ctx, WriteOffInput{ProductID: 1, Quantity: 2, Reason: MovementLoss})
	require.NoError(t, err)
	require.Equal(t, 5, res.Stock.Filled)
	require.Equal(t, 3, res.Stock.Damaged)
	require.Equal(t, 0, res.Stock.Empty)

	_, err = svc.WriteOff(ctx, WriteOffInput{ProductID: 1, Quantity: 6, Reason: MovementDamage})
	require.ErrorIs(t, err, ErrInsufficientFilledStock)
	require.Equal(t, 5, repo.stocks[1].Filled)
}

func TestAdjustOverwrites(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(10, 4, 2))
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})

	res, err := svc.Adjust(context.Background(), AdjustInput{ProductID: 1, Filled: 7, Empty: 9, Damaged: 0})
	require.NoError(t, err)
	require.Equal(t, Stock{ProductID: 1, Name: "19L water", Price: decimal.NewFromInt(20), Filled: 7, Empty: 9, Damaged: 0, UpdatedAt: res.Stock.UpdatedAt}, res.Stock)
	require.Equal(t, -3, res.Movement.FilledDelta)
	require.Equal(t, 5, res.Movement.EmptyDelta)
	require.Equal(t, -2, res.Movement.DamagedDelta)

	_, err = svc.Adjust(context.Background(), AdjustInput{ProductID: 2, Filled: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyDeliveryConservesStock(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(10, 1, 0))
	tx := &memoryTx{repo: repo}
	l := NewLedger()

	res, err := l.ApplyDelivery(context.Background(), tx, 1, Exchange{Filled: 4, Empty: 3, Damaged: 1}, Meta{RefModule: "delivery_order", RefID: "12"})
	require.NoError(t, err)
	require.Equal(t, 6, res.Stock.Filled)
	require.Equal(t, 4, res.Stock.Empty)
	require.Equal(t, 1, res.Stock.Damaged)
	require.Equal(t, "12", res.Movement.RefID)
}

func TestApplyDeliveryInsufficientStock(t *testing.T) {
	repo := newMemoryRepo(Stock{ProductID: 7, Filled: 3})
	tx := &memoryTx{repo: repo}

	_, err := NewLedger().ApplyDelivery(context.Background(), tx, 7, Exchange{Filled: 5}, Meta{})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualError(t, err, "insufficient stock for product 7, available 3, required 5")
	require.Empty(t, repo.movements)
	require.Equal(t, 3, repo.stocks[7].Filled)
}

func TestApplyDeliveryZeroExchangeWritesNothing(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(2, 0, 0))
	res, err := NewLedger().ApplyDelivery(context.Background(), &memoryTx{repo: repo}, 1, Exchange{}, Meta{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Stock.Filled)
	require.Empty(t, repo.movements)
}

func TestIntegrationFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemoryRepo(gasCylinder(0, 5, 0))
	integration := &recordingIntegration{err: errors.New("redis down")}
	svc := NewService(repo, nil, nil, integration, ServiceConfig{})

	_, err := svc.Refill(context.Background(), RefillInput{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, 2, repo.stocks[1].Filled)
}
