// Package units converts between human-readable decimal amounts and the
// integer base units used by contract calls.
package units

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the base-unit scale used when no decimals value is queried.
const DefaultDecimals = 18

// DefaultPrecision is the number of fractional digits ToDecimalAmount keeps.
const DefaultPrecision = 2

var (
	// ErrInvalidAmount is returned for strings that are not decimal numbers.
	ErrInvalidAmount = errors.New("invalid decimal amount")

	// ErrTooPrecise is returned when an amount has more fractional digits than the scale.
	ErrTooPrecise = errors.New("amount has more fractional digits than decimals")
)

// ToBaseUnits converts a decimal amount such as "0.02" into 18-decimal base units.
func ToBaseUnits(amount string) (*big.Int, error) {
	return ToBaseUnitsWithDecimals(amount, DefaultDecimals)
}

// ToBaseUnitsWithDecimals converts a decimal amount using the given decimals.
func ToBaseUnitsWithDecimals(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q at %d decimals", ErrTooPrecise, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// MustToBaseUnits is ToBaseUnits for constants; it panics on malformed input.
func MustToBaseUnits(amount string) *big.Int {
	v, err := ToBaseUnits(amount)
	if err != nil {
		panic(err)
	}
	return v
}

// ToDecimalAmount renders 18-decimal base units with precision fractional
// digits, rounding half away from zero.
func ToDecimalAmount(v *big.Int, precision int) string {
	return ToDecimalAmountWithDecimals(v, DefaultDecimals, precision)
}

// ToDecimalAmountWithDecimals renders base units at the given decimals.
func ToDecimalAmountWithDecimals(v *big.Int, decimals uint8, precision int) string {
	if v == nil {
		v = new(big.Int)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).StringFixed(int32(precision))
}

// Pow10 returns 10^n as a new big.Int.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
