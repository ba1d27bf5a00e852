package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/shared"
)

type fakeReader struct {
	credit   Credit
	stock    map[int64]int
	stockErr error
}

func (f fakeReader) CustomerCredit(ctx context.Context, customerID int64) (Credit, error) {
	return f.credit, nil
}

func (f fakeReader) ProductStock(ctx context.Context, productID int64) (int, error) {
	if f.stockErr != nil {
		return 0, f.stockErr
	}
	return f.stock[productID], nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestEvaluateAllowsWithinLimit(t *testing.T) {
	r := fakeReader{credit: Credit{Balance: dec("0"), Limit: dec("500")}, stock: map[int64]int{1: 10}}
	d, err := Evaluate(context.Background(), r, Candidate{CustomerID: 3, Amount: dec("500"), Lines: []Line{{ProductID: 1, Quantity: 10}}})
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NoError(t, d.Err())
}

func TestEvaluateDeniesCredit(t *testing.T) {
	r := fakeReader{credit: Credit{Balance: dec("-450"), Limit: dec("500")}, stock: map[int64]int{1: 10}}
	d, err := Evaluate(context.Background(), r, Candidate{CustomerID: 3, Amount: dec("50.01"), Lines: []Line{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.ErrorIs(t, d.Err(), ErrCreditLimitExceeded)
	require.ErrorIs(t, d.Err(), shared.ErrPreconditionFailed)
}

func TestEvaluateZeroLimitMeansNoDebt(t *testing.T) {
	r := fakeReader{credit: Credit{Balance: dec("20"), Limit: decimal.Zero}, stock: map[int64]int{1: 10}}
	d, err := Evaluate(context.Background(), r, Candidate{CustomerID: 3, Amount: dec("20"), Lines: []Line{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = Evaluate(context.Background(), r, Candidate{CustomerID: 3, Amount: dec("20.5"), Lines: []Line{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestEvaluateSumsLinesPerProduct(t *testing.T) {
	r := fakeReader{credit: Credit{Balance: dec("1000"), Limit: dec("0")}, stock: map[int64]int{1: 5, 2: 1}}
	d, err := Evaluate(context.Background(), r, Candidate{CustomerID: 3, Amount: dec("10"), Lines: []Line{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	}})
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.ErrorIs(t, d.Reason, ErrInsufficientStock)
	require.EqualError(t, d.Reason, "insufficient stock for product 1, available 5, required 6")
}

func TestEvaluateReturnsReadErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := fakeReader{stockErr: boom}
	_, err := Evaluate(context.Background(), r, Candidate{CustomerID: 3, Lines: []Line{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, boom)
}

func TestModeApply(t *testing.T) {
	denied := Decision{Reason: ErrCreditLimitExceeded}

	skip, err := ModeAdvise.Apply(denied)
	require.True(t, skip)
	require.NoError(t, err)

	skip, err = ModeEnforce.Apply(denied)
	require.False(t, skip)
	require.ErrorIs(t, err, ErrCreditLimitExceeded)

	skip, err = ModeEnforce.Apply(Decision{Allowed: true})
	require.False(t, skip)
	require.NoError(t, err)
}
