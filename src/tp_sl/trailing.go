package tp_sl

import (
	"github.com/shopspring/decimal"

	"perptrader/src/model"
)

// RiskUnit is the initial risk per unit, |entry - original stop|.
// ok is false when there is no usable risk distance.
func RiskUnit(entry, originalStop decimal.Decimal) (decimal.Decimal, bool) {
	r := entry.Sub(originalStop).Abs()
	return r, r.IsPositive()
}

// RMultiple expresses open profit in multiples of the initial risk.
func RMultiple(side model.Side, entry, current, risk decimal.Decimal) decimal.Decimal {
	if !risk.IsPositive() {
		return decimal.Zero
	}
	if side == model.SideShort {
		return entry.Sub(current).Div(risk)
	}
	return current.Sub(entry).Div(risk)
}

// TargetReached reports whether price is at or beyond a take-profit target.
func TargetReached(side model.Side, price, target decimal.Decimal) bool {
	if side == model.SideShort {
		return price.LessThanOrEqual(target)
	}
	return price.GreaterThanOrEqual(target)
}

// StopBreached reports whether price is at or through the stop.
func StopBreached(side model.Side, price, stop decimal.Decimal) bool {
	if side == model.SideShort {
		return price.GreaterThanOrEqual(stop)
	}
	return price.LessThanOrEqual(stop)
}

// NextTrailingStop returns the trailed stop for the current price.
//
// Long:
// - candidate = current - risk*trailR
// - update: SL = max(SL, candidate)
//
// Short:
// - candidate = current + risk*trailR
// - update: SL = min(SL, candidate)
//
// A stop that is not set yet is replaced by any candidate.
func NextTrailingStop(
	side model.Side,
	current decimal.Decimal,
	currentSL decimal.NullDecimal,
	risk decimal.Decimal,
	trailR float64,
) (newSL decimal.Decimal, moved bool) {
	distance := risk.Mul(decimal.NewFromFloat(trailR))

	switch side {
	case model.SideLong:
		candidate := current.Sub(distance)
		if !currentSL.Valid || candidate.GreaterThan(currentSL.Decimal) {
			return candidate, true
		}
		return currentSL.Decimal, false

	case model.SideShort:
		candidate := current.Add(distance)
		// stop only moves down for shorts
		if !currentSL.Valid || candidate.LessThan(currentSL.Decimal) {
			return candidate, true
		}
		return currentSL.Decimal, false

	default:
		return currentSL.Decimal, false
	}
}
