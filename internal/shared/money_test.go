package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCheckMoney(t *testing.T) {
	for _, ok := range []string{"0", "12", "1.5", "1.50", "1.500", "-3.25", "1000000"} {
		require.NoError(t, CheckMoney("amount", decimal.RequireFromString(ok)), ok)
	}

	err := CheckMoney("cash collected", decimal.RequireFromString("1.008"))
	require.ErrorIs(t, err, ErrAmountPrecision)
	require.ErrorIs(t, err, ErrValidation)
	require.EqualError(t, err, "cash collected 1.008 has more than 2 decimal places")
}
