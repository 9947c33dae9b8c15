// Package money fixes the decimal arithmetic used across the simulator.
// All monetary values and percentages are shopspring decimals; percentages
// are stored as whole numbers (4.5 means 4.5%). Addition and subtraction are
// exact; fractional exponentiation is computed at 28 significant digits so
// results are identical across platforms. Rounding, where applied, is
// bankers rounding (HALF_EVEN).
package money

import (
	"github.com/shopspring/decimal"
)

// PowPrecision is the significant-digit precision used for fractional
// exponentiation and division.
const PowPrecision = 28

func init() {
	decimal.DivisionPrecision = PowPrecision
}

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
	Twelve  = decimal.NewFromInt(12)
)

// FromString parses a decimal literal, panicking on malformed input. Only
// for constants in code; user input goes through decimal.NewFromString.
func FromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// GrowthFactor returns (1 + ratePct/100)^exp at PowPrecision digits.
// ratePct must be greater than -100 so the base is positive; Sanitize
// enforces that bound on every percentage AmountFreq.
func GrowthFactor(ratePct, exp decimal.Decimal) (decimal.Decimal, error) {
	base := One.Add(ratePct.Div(Hundred))
	return base.PowWithPrecision(exp, PowPrecision)
}

// CompoundDelta returns basis × ((1 + ratePct/100)^exp − 1).
func CompoundDelta(basis, ratePct, exp decimal.Decimal) (decimal.Decimal, error) {
	factor, err := GrowthFactor(ratePct, exp)
	if err != nil {
		return decimal.Zero, err
	}
	return basis.Mul(factor.Sub(One)), nil
}

// Cents rounds to 2 decimal places with bankers rounding. Applied only at
// presentation boundaries; internal state stays unrounded.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Pct returns amount × pct / 100.
func Pct(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}
