package decision

import (
	"context"

	"github.com/shopspring/decimal"

	"perptrader/src/model"
)

// MarketSnapshot is everything a decision source gets to see for one asset.
type MarketSnapshot struct {
	Asset      string           `json:"asset"`
	Price      decimal.Decimal  `json:"price"`
	Candles1h  []model.Candle   `json:"candles_1h"`
	Candles4h  []model.Candle   `json:"candles_4h"`
	Orderbook  *model.Orderbook `json:"orderbook,omitempty"`
	SpreadBps  float64          `json:"spread_bps"`
	ATRPct     float64          `json:"atr_pct"`
	Volatility float64          `json:"realized_volatility"`
	Portfolio  model.Portfolio  `json:"portfolio"`
}

// Source produces a validated decision for a snapshot. Payloads that fail
// Parse are returned as errors and never reach the risk layer.
type Source interface {
	Decide(ctx context.Context, snapshot MarketSnapshot) (*model.TradingDecision, error)
}
