package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perptrader/src/model"
)

func candle(h, l, c string) model.Candle {
	return model.Candle{
		High:  decimal.RequireFromString(h),
		Low:   decimal.RequireFromString(l),
		Close: decimal.RequireFromString(c),
	}
}

func closes(values ...string) []model.Candle {
	out := make([]model.Candle, 0, len(values))
	for _, v := range values {
		out = append(out, candle(v, v, v))
	}
	return out
}

func TestTrueRange(t *testing.T) {
	tests := []struct {
		name      string
		c         model.Candle
		prevClose string
		want      string
	}{
		{"range dominates", candle("12", "9", "11"), "10", "3"},
		{"gap up", candle("15", "14", "14.5"), "10", "5"},
		{"gap down", candle("8", "7", "7.5"), "10", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrueRange(tt.c, decimal.RequireFromString(tt.prevClose))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("TrueRange = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestATRWilder(t *testing.T) {
	candles := []model.Candle{
		candle("10", "8", "9"),
		candle("11", "9", "10"),
		candle("12", "9", "11"),
		candle("14", "10", "13"),
	}

	atr, err := ATR(candles, 2)
	require.NoError(t, err)
	assert.True(t, atr.Equal(decimal.RequireFromString("3.25")), "got %s", atr)

	pct, err := ATRPercent(candles, 2)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, pct, 1e-9)

	_, err = ATR(candles, 4)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestRealizedVolatility(t *testing.T) {
	v, err := RealizedVolatility(closes("100", "110", "99"))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)

	v, err = RealizedVolatility(closes("100", "100", "100", "100"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = RealizedVolatility(closes("100", "101"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = RealizedVolatility(closes("100"))
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestVolatilityOrFallback(t *testing.T) {
	assert.Equal(t, FallbackVolatility, VolatilityOrFallback(nil))
	assert.Equal(t, FallbackVolatility, VolatilityOrFallback(closes("100", "100")))

	candles := make([]model.Candle, 0, 20)
	for i := 0; i < 20; i++ {
		candles = append(candles, candle("102", "98", "100"))
	}
	assert.InDelta(t, 4.0, VolatilityOrFallback(candles), 1e-9)
}
