package shared

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money columns store.
const MoneyScale = 2

// ErrAmountPrecision rejects money finer than the stored scale.
var ErrAmountPrecision = NewError(ErrValidation, "amount_precision", "amount has more than two decimal places")

// CheckMoney reports whether v fits the stored scale. Trailing zeros are
// accepted, so 1.500 passes and 1.005 does not.
func CheckMoney(field string, v decimal.Decimal) error {
	if v.Exponent() >= -MoneyScale || v.Equal(v.Truncate(MoneyScale)) {
		return nil
	}
	return ErrAmountPrecision.Withf("%s %s has more than %d decimal places", field, v.String(), MoneyScale)
}
