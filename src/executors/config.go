package executors

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"perptrader/src/decision"
	"perptrader/src/security"
)

type Config struct {
	ServiceName string        `envconfig:"APP_NAME" default:"perptrader"`
	Assets      []string      `envconfig:"TRADING_ASSETS" default:"BTC,ETH,SOL"`
	LoopPeriod  time.Duration `envconfig:"TRADING_INTERVAL" default:"300s"`

	RiskPerTrade  float64 `envconfig:"RISK_PER_TRADE" default:"0.02"`
	MinConfidence float64 `envconfig:"MIN_CONFIDENCE" default:"0.6"`
	MinConfluence int     `envconfig:"MIN_CONFLUENCE_SCORE" default:"4"`
	MinRiskReward float64 `envconfig:"MIN_RISK_REWARD" default:"2.2"`

	MaxSpreadBps   float64       `envconfig:"MAX_SPREAD_BPS" default:"10"`
	LatencyGuard   time.Duration `envconfig:"AI_LATENCY_GUARD" default:"20s"`
	CandleLimit    int           `envconfig:"CANDLE_LIMIT" default:"100"`
	OrderbookDepth int           `envconfig:"ORDERBOOK_DEPTH" default:"20"`
	ReduceFraction float64       `envconfig:"REDUCE_FRACTION" default:"0.5"`

	WalletAddress string `envconfig:"HYPERLIQUID_WALLET_ADDRESS"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) Thresholds() decision.Thresholds {
	return decision.Thresholds{
		MinConfidence: c.MinConfidence,
		MinConfluence: c.MinConfluence,
		MinRiskReward: c.MinRiskReward,
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate(sec security.Config) error {
	var errs []error
	if c.WalletAddress == "" {
		errs = append(errs, errors.New("HYPERLIQUID_WALLET_ADDRESS is required"))
	} else if err := sec.CheckWallet(c.WalletAddress); err != nil {
		errs = append(errs, fmt.Errorf("HYPERLIQUID_WALLET_ADDRESS: %w", err))
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 0.05 {
		errs = append(errs, errors.New("RISK_PER_TRADE must be between 0 and 0.05 (5%)"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, errors.New("MIN_CONFIDENCE must be between 0 and 1"))
	}
	if len(c.Assets) == 0 {
		errs = append(errs, errors.New("TRADING_ASSETS must list at least one asset"))
	}
	if c.LoopPeriod <= 0 {
		errs = append(errs, errors.New("TRADING_INTERVAL must be positive"))
	}
	if c.ReduceFraction <= 0 || c.ReduceFraction > 1 {
		errs = append(errs, errors.New("REDUCE_FRACTION must be in (0, 1]"))
	}
	return errors.Join(errs...)
}
