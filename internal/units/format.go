package units

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnitsTrim converts a token balance to a human string:
// - divides by 10^decimals
// - trims to maxFrac decimal places
// - removes trailing zeros
//
// Examples:
//
//	balance=1234500000000000000, decimals=18 -> "1.2345"
//	balance=1000000000000000000, decimals=18 -> "1"
//	balance=1, decimals=18 -> "0.000000000000000001"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	s := FromFixedUnits(amount, decimals)
	whole, frac, _ := strings.Cut(s, ".")
	if maxFrac <= 0 || frac == "" {
		return whole
	}
	if len(frac) > maxFrac {
		frac = frac[:maxFrac]
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// FormatUSD renders a USD amount held at `decimals` scale as "USD 1,234.50".
// Extra precision is truncated, never rounded up.
func FormatUSD(amount *big.Int, decimals uint8) string {
	if amount == nil {
		amount = new(big.Int)
	}
	d := decimal.NewFromBigInt(amount, -int32(decimals)).Truncate(2)
	fixed := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return "USD " + sign + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
