package indicators

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"perptrader/src/model"
)

const (
	DefaultATRPeriod = 14

	// FallbackVolatility is used by callers when candles are missing or too short.
	FallbackVolatility = 2.0
)

var ErrInsufficientData = errors.New("insufficient candles")

// TrueRange = max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(current model.Candle, prevClose decimal.Decimal) decimal.Decimal {
	hl := current.High.Sub(current.Low)
	hc := current.High.Sub(prevClose).Abs()
	lc := current.Low.Sub(prevClose).Abs()
	return decimal.Max(hl, hc, lc)
}

// ATR is the Average True Range with Wilder's smoothing: seeded with the mean
// of the first period true ranges, then atr = (atr*(n-1) + tr) / n.
// Needs at least period+1 candles, oldest first.
func ATR(candles []model.Candle, period int) (decimal.Decimal, error) {
	if period <= 0 || len(candles) < period+1 {
		return decimal.Zero, ErrInsufficientData
	}

	ranges := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		ranges = append(ranges, TrueRange(candles[i], candles[i-1].Close))
	}

	n := decimal.NewFromInt(int64(period))
	atr := decimal.Sum(ranges[0], ranges[1:period]...).Div(n)
	for _, tr := range ranges[period:] {
		atr = atr.Mul(n.Sub(decimal.NewFromInt(1))).Add(tr).Div(n)
	}
	return atr, nil
}

// ATRPercent is ATR relative to the last close, in percent.
func ATRPercent(candles []model.Candle, period int) (float64, error) {
	atr, err := ATR(candles, period)
	if err != nil {
		return 0, err
	}
	last := candles[len(candles)-1].Close
	if !last.IsPositive() {
		return 0, ErrInsufficientData
	}
	return atr.Div(last).Mul(decimal.NewFromInt(100)).InexactFloat64(), nil
}

// RealizedVolatility is the population standard deviation of close-to-close
// returns, in percent.
func RealizedVolatility(candles []model.Candle) (float64, error) {
	if len(candles) < 2 {
		return 0, ErrInsufficientData
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if !prev.IsPositive() {
			continue
		}
		r := candles[i].Close.Sub(prev).Div(prev).InexactFloat64()
		returns = append(returns, r)
	}
	if len(returns) == 0 {
		return 0, ErrInsufficientData
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * 100, nil
}

// VolatilityOrFallback returns ATR % over the default period, or
// FallbackVolatility when it cannot be computed.
func VolatilityOrFallback(candles []model.Candle) float64 {
	v, err := ATRPercent(candles, DefaultATRPeriod)
	if err != nil || v <= 0 || math.IsNaN(v) {
		return FallbackVolatility
	}
	return v
}
