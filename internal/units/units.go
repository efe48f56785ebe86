// Package units converts between on-chain integer amounts and decimal values.
//
// All conversions are exact: X96 fixed-point values and base-unit integers are
// carried as shopspring decimals and never pass through float64.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Q96Exponent is the binary exponent of the gas-price fixed-point format
const Q96Exponent = 96

// five96 = 5^96; x / 2^96 == x * 5^96 / 10^96
var five96 = new(big.Int).Exp(big.NewInt(5), big.NewInt(Q96Exponent), nil)

// GasRatio converts a gas price scaled by 2^96 into a plain decimal ratio.
// The result is exact (at most 96 fractional digits).
func GasRatio(rawX96 *big.Int) decimal.Decimal {
	if rawX96 == nil || rawX96.Sign() == 0 {
		return decimal.Zero
	}
	scaled := new(big.Int).Mul(rawX96, five96)
	return decimal.NewFromBigInt(scaled, -Q96Exponent)
}

// ParseAmount parses a positive base-unit integer string
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", s)
	}
	return v, nil
}

// FormatUnits renders a base-unit amount as a human readable decimal string with at most
// precision fractional digits. Extra digits are cut off, never rounded.
func FormatUnits(amount *big.Int, decimals, precision int32) string {
	if amount == nil {
		return "0"
	}
	if precision < 0 {
		precision = 0
	}
	return decimal.NewFromBigInt(amount, -decimals).Truncate(precision).String()
}

// FormatUnitsString is FormatUnits for a base-unit integer string
func FormatUnitsString(amount string, decimals, precision int32) (string, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return "", fmt.Errorf("invalid base-unit amount %q", amount)
	}
	return FormatUnits(v, decimals, precision), nil
}

// ParseUnits converts a human readable decimal string back into base units.
// Digits beyond the token's decimals are dropped.
func ParseUnits(display string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(display))
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", display, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", display)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// ToDecimal wraps a base-unit integer string as a decimal. Unparsable input yields ok=false.
func ToDecimal(amount string) (decimal.Decimal, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(v, 0), true
}
