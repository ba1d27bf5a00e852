package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainErrorMatchesKindAndCode(t *testing.T) {
	sentinel := NewError(ErrPreconditionFailed, "insufficient_stock", "insufficient stock")
	err := fmt.Errorf("cannot complete delivery: %w", sentinel.Withf("insufficient stock for product %d, available %d, required %d", 7, 3, 5))

	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.NotErrorIs(t, err, ErrInvariantViolation)
	require.Equal(t, ErrPreconditionFailed, KindOf(err))
	require.Equal(t, "cannot complete delivery: insufficient stock for product 7, available 3, required 5", err.Error())
}

func TestUserSafeMessageHidesUnclassified(t *testing.T) {
	require.Equal(t, "internal error", UserSafeMessage(errors.New("pq: connection reset")))
	require.Equal(t, "not found", UserSafeMessage(ErrNotFound))
	require.Empty(t, UserSafeMessage(nil))
}

func TestFingerprintStable(t *testing.T) {
	a, err := Fingerprint(map[string]int{"qty": 2})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]int{"qty": 2})
	require.NoError(t, err)
	c, err := Fingerprint(map[string]int{"qty": 3})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64)
}
