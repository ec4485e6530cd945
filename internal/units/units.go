// Package units converts between decimal strings and the scaled integers the
// SQMU contracts work with. Amounts never pass through floating point.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

var (
	ErrEmpty           = errors.New("amount is empty")
	ErrMalformed       = errors.New("amount is not a decimal number")
	ErrTooManyDecimals = errors.New("amount has too many fractional digits")
	ErrNegative        = errors.New("amount must not be negative")
)

// ToFixedUnits parses a non-negative decimal string into an integer scaled by
// 10^decimals. More fractional digits than the scale allows is an error, not a
// rounding.
func ToFixedUnits(s string, decimals uint8) (*big.Int, error) {
	v, err := ToFixedUnitsSigned(s, decimals)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	return v, nil
}

// ToFixedUnitsSigned is ToFixedUnits with an optional leading '-'.
func ToFixedUnitsSigned(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || !isDigits(whole) {
		return nil, ErrMalformed
	}
	if hasDot && (frac == "" || !isDigits(frac)) {
		return nil, ErrMalformed
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: got %d, scale allows %d", ErrTooManyDecimals, len(frac), decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrMalformed
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

// FromFixedUnits renders v with exactly `decimals` fractional digits.
func FromFixedUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		v = new(big.Int)
	}

	abs := new(big.Int).Abs(v)
	base := Pow10(decimals)
	whole := new(big.Int).Quo(abs, base)
	frac := new(big.Int).Rem(abs, base)

	out := whole.String()
	if decimals > 0 {
		fs := frac.String()
		out += "." + strings.Repeat("0", int(decimals)-len(fs)) + fs
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// ConvertScale moves v from one power-of-ten scale to another. Widening
// multiplies; narrowing divides and truncates toward zero, matching on-chain
// integer division.
func ConvertScale(v *big.Int, from, to uint8) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	switch {
	case to > from:
		return new(big.Int).Mul(v, Pow10(to-from))
	case to < from:
		return new(big.Int).Quo(v, Pow10(from-to))
	default:
		return new(big.Int).Set(v)
	}
}

// RequiredPayment is the payment-token amount for buying sqmuAmount (2 dp)
// of a property priced at priceUSD (18 dp) per unit.
func RequiredPayment(priceUSD, sqmuAmount *big.Int, tokenDecimals uint8) *big.Int {
	if priceUSD == nil || sqmuAmount == nil {
		return new(big.Int)
	}
	product := new(big.Int).Mul(priceUSD, sqmuAmount)
	return ConvertScale(product, constants.USDPriceDecimals+constants.SQMUDecimals, tokenDecimals)
}

// USDTotalToToken converts a getPrice total (USD, 2 dp) into token units.
func USDTotalToToken(usdTotal *big.Int, tokenDecimals uint8) *big.Int {
	return ConvertScale(usdTotal, constants.USDTotalDecimals, tokenDecimals)
}

// ParseSQMU parses a user-entered SQMU quantity. Zero is rejected.
func ParseSQMU(s string) (*big.Int, error) {
	v, err := ToFixedUnits(s, constants.SQMUDecimals)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, errors.New("amount must be greater than zero")
	}
	return v, nil
}

func FormatSQMU(v *big.Int) string {
	return FromFixedUnits(v, constants.SQMUDecimals)
}

func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
