// Package money defines the monetary unit for the blockchain and the
// issuance schedule arithmetic that every network shares.
package money

import (
	"errors"
	"fmt"
)

// Amount is a monetary value in the smallest unit. One coin is 10^8 units.
type Amount int64

// COIN is the number of smallest units in one coin.
const COIN Amount = 100_000_000

// MaxMoney is the upper bound for any amount moving through the system.
const MaxMoney Amount = 21_000_000_000 * COIN

// ErrValueOutOfRange is returned when amount arithmetic leaves the valid
// monetary range. It is fatal for the affected transaction only.
var ErrValueOutOfRange = errors.New("value out of range")

// Valid reports whether the amount is inside the accepted monetary range.
func (a Amount) Valid() bool {
	return a >= 0 && a <= MaxMoney
}

// Add returns the sum of two amounts, failing if either operand or the
// result falls outside the valid range.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.Valid() || !b.Valid() {
		return 0, ErrValueOutOfRange
	}
	sum := a + b
	if !sum.Valid() {
		return 0, ErrValueOutOfRange
	}
	return sum, nil
}

// Coins returns the amount expressed in whole coins as a float. This is for
// display only and never feeds back into consensus arithmetic.
func (a Amount) Coins() float64 {
	return float64(a) / float64(COIN)
}

// String implements fmt.Stringer with the fixed 8 decimal format used in
// logs and RPC output.
func (a Amount) String() string {
	sign := ""
	v := a
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%08d", sign, v/COIN, v%COIN)
}
