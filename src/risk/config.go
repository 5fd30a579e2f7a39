package risk

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	MaxPositionSize        decimal.Decimal `envconfig:"MAX_POSITION_SIZE" default:"10000"`
	RiskPerTrade           float64         `envconfig:"RISK_PER_TRADE" default:"0.02"`
	MaxExposure            float64         `envconfig:"MAX_EXPOSURE" default:"0.7"`
	DailyLossLimit         float64         `envconfig:"DAILY_LOSS_LIMIT" default:"0.05"`
	MaxDrawdown            float64         `envconfig:"MAX_DRAWDOWN_THRESHOLD" default:"0.20"`
	EmergencyDrawdown      float64         `envconfig:"EMERGENCY_DRAWDOWN" default:"0.20"`
	MaxConcurrentPositions int             `envconfig:"MAX_CONCURRENT_POSITIONS" default:"3"`
	MaxCorrelatedPositions int             `envconfig:"MAX_CORRELATED_POSITIONS" default:"2"`
	MinAvailableBalance    decimal.Decimal `envconfig:"MIN_AVAILABLE_BALANCE" default:"100"`
	MinMarginSafety        float64         `envconfig:"MIN_MARGIN_SAFETY" default:"40"`
	MinRiskReward          float64         `envconfig:"MIN_RISK_REWARD" default:"2.2"`
	TradeCooldown          time.Duration   `envconfig:"TRADE_COOLDOWN" default:"60m"`
	MajorMaxLeverage       int             `envconfig:"BTC_ETH_MAX_LEVERAGE" default:"10"`
	AltMaxLeverage         int             `envconfig:"LARGE_CAP_MAX_LEVERAGE" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// DefaultConfig mirrors the env defaults, handy for tests and tooling.
func DefaultConfig() Config {
	return Config{
		MaxPositionSize:        decimal.NewFromInt(10000),
		RiskPerTrade:           0.02,
		MaxExposure:            0.7,
		DailyLossLimit:         0.05,
		MaxDrawdown:            0.20,
		EmergencyDrawdown:      0.20,
		MaxConcurrentPositions: 3,
		MaxCorrelatedPositions: 2,
		MinAvailableBalance:    decimal.NewFromInt(100),
		MinMarginSafety:        40,
		MinRiskReward:          2.2,
		TradeCooldown:          60 * time.Minute,
		MajorMaxLeverage:       10,
		AltMaxLeverage:         5,
	}
}
