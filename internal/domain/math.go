package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns amount * pct / 100.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// LegRatioSatisfied reports whether either leg dominates the other by at
// least the given ratio (1 for 1:1 plans, 2 for 2:1 plans). A zero leg
// contributes a zero ratio, matching the qualification arithmetic of the
// plan: with an empty opposite leg no ratio is formed at all.
func LegRatioSatisfied(a, b decimal.Decimal, ratio int) bool {
	req := decimal.NewFromInt(int64(ratio))
	aToB := decimal.Zero
	if b.IsPositive() {
		aToB = a.Div(b)
	}
	bToA := decimal.Zero
	if a.IsPositive() {
		bToA = b.Div(a)
	}
	return aToB.GreaterThanOrEqual(req) || bToA.GreaterThanOrEqual(req)
}
