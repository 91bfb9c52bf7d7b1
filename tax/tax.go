// Package tax converts between tax-inclusive and tax-exclusive prices at the
// standard consumption tax rate.
package tax

import (
	"errors"
	"math"
)

// Rate is the consumption tax rate folded into inclusive prices.
const Rate = 0.1

var (
	// ErrNegativePrice is returned for prices below zero.
	ErrNegativePrice = errors.New("price cannot be negative")

	// ErrPriceOutOfRange is returned for prices that do not fit in int64.
	ErrPriceOutOfRange = errors.New("price out of range")
)

// 2^63, the smallest float64 that does not convert to int64.
const yenLimit = float64(math.MaxInt64)

// Yen rounds a price to whole yen. Exact halves round to even.
func Yen(price float64) (int64, error) {
	switch {
	case price < 0 || math.IsNaN(price):
		return 0, ErrNegativePrice
	case math.IsInf(price, 1) || price >= yenLimit:
		return 0, ErrPriceOutOfRange
	}
	return int64(math.RoundToEven(price)), nil
}

// ExclusiveOf returns the tax-exclusive price for a tax-inclusive one,
// rounded to the nearest yen. Exact halves round to even.
func ExclusiveOf(inclusive float64) (int64, error) {
	if _, err := Yen(inclusive); err != nil {
		return 0, err
	}
	return Yen(inclusive / (1 + Rate))
}

// InclusiveSubtotal returns quantity * unitExclusive with tax added,
// truncated to whole yen.
func InclusiveSubtotal(quantity, unitExclusive int64) int64 {
	return int64(float64(quantity*unitExclusive) * (1 + Rate))
}

// Consumption returns the tax owed on quantity * unitExclusive, truncated.
func Consumption(quantity, unitExclusive int64) int64 {
	return int64(float64(quantity*unitExclusive) * Rate)
}
