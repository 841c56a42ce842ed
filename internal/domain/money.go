package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// MinorUnits converts the amount into the smallest unit of its currency
// (cents for USD), rounding half away from zero.
func (m Money) MinorUnits() int64 {
	scale, _ := currency.Standard.Rounding(m.Currency)

	return m.Amount.Shift(int32(scale)).Round(0).IntPart()
}
