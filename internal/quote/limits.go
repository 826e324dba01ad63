package quote

import "github.com/shopspring/decimal"

var (
	limitUpRatio   = decimal.RequireFromString("1.10")
	limitDownRatio = decimal.RequireFromString("0.90")
)

// Limits are the next-session price bounds derived from a close.
type Limits struct {
	LimitUp   decimal.Decimal `json:"limitUp"`
	LimitDown decimal.Decimal `json:"limitDown"`
}

// ComputeLimits returns close±10% rounded to two places, half away from zero.
// Exchange tick sizes are not applied.
func ComputeLimits(close decimal.Decimal) Limits {
	return Limits{
		LimitUp:   close.Mul(limitUpRatio).Round(2),
		LimitDown: close.Mul(limitDownRatio).Round(2),
	}
}
