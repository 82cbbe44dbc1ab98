package split

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)

	// percentageTolerance is the allowed drift of a percentage total from 100
	percentageTolerance = decimal.RequireFromString("0.001")
	// customTolerance is the allowed drift of custom shares from the amount
	customTolerance = decimal.RequireFromString("0.01")
)

// RoundMoney rounds to cents, half away from zero (half-up for the
// non-negative values money takes here)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func within(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
