// Package fixedpoint implements the ledger's fixed-point arithmetic.
//
// Currency amounts are Micros: signed 64-bit integers carrying six decimal
// places (1 unit == 1_000_000 micros). The rent accumulator is scaled by
// 1e18 and kept in math/big.Int because shares × accumulator products exceed
// 64 bits long before they exceed the lifetime rent of a booking.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Micros is a currency amount with 6 decimal places.
type Micros int64

const (
	// Scale is the number of micros per whole currency unit.
	Scale = 1_000_000

	// BpsDenominator is the basis-point denominator: 10000 bps == 100%.
	BpsDenominator = 10_000
)

// AccScale returns the 1e18 accumulator scale factor.
func AccScale() *big.Int {
	return new(big.Int).SetInt64(1_000_000_000_000_000_000)
}

// FromUnits converts whole currency units to Micros.
func FromUnits(units int64) Micros {
	return Micros(units * Scale)
}

// Parse reads a decimal string such as "100.000000" or "99.5" into Micros.
func Parse(s string) (Micros, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("amount %q has more than 6 decimal places", s)
	}
	frac += strings.Repeat("0", 6-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	m := w*Scale + f
	if negative {
		m = -m
	}
	return Micros(m), nil
}

// String renders the amount with all six decimal places.
func (m Micros) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/Scale, v%Scale)
}

func (m Micros) Int64() int64 {
	return int64(m)
}

// ApplyBps returns amount × bps / 10000, rounded toward zero. The product is
// computed in big.Int so large amounts cannot overflow.
func ApplyBps(amount Micros, bps int64) Micros {
	p := new(big.Int).SetInt64(int64(amount))
	p.Mul(p, new(big.Int).SetInt64(bps))
	p.Quo(p, new(big.Int).SetInt64(BpsDenominator))
	return Micros(p.Int64())
}

// MulDays returns rate × days with overflow detection. Rent computation is
// the only place external input can push a product past 64 bits.
func MulDays(rate Micros, days int64) (Micros, error) {
	p := new(big.Int).SetInt64(int64(rate))
	p.Mul(p, new(big.Int).SetInt64(days))
	if !p.IsInt64() {
		return 0, fmt.Errorf("rent %s × %d days overflows", rate, days)
	}
	return Micros(p.Int64()), nil
}

// AccrueDelta returns net × 1e18 / totalShares, the accumulator increment
// for one rent payment. Integer division leaves up to totalShares−1 micros
// of dust per payment unclaimed.
func AccrueDelta(net Micros, totalShares int64) *big.Int {
	d := new(big.Int).SetInt64(int64(net))
	d.Mul(d, AccScale())
	d.Quo(d, new(big.Int).SetInt64(totalShares))
	return d
}

// Entitlement returns shares × acc / 1e18: the gross amount a position of
// the given size has ever been entitled to under accumulator value acc.
func Entitlement(shares int64, acc *big.Int) *big.Int {
	e := new(big.Int).SetInt64(shares)
	e.Mul(e, acc)
	e.Quo(e, AccScale())
	return e
}

// PendingMicros returns entitlement − debt clamped into Micros. The result
// is bounded by the net rent ever paid into the booking, so it always fits.
func PendingMicros(shares int64, acc, debt *big.Int) Micros {
	p := Entitlement(shares, acc)
	p.Sub(p, debt)
	if p.Sign() < 0 {
		return 0
	}
	return Micros(p.Int64())
}

// FormatBig renders an accumulator or debt value for storage. Zero and nil
// both render as "0".
func FormatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ParseBig reads a stored accumulator or debt value. Empty strings decode
// as zero so documents created before tokenisation round-trip cleanly.
func ParseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid accumulator value %q", s)
	}
	return v, nil
}
