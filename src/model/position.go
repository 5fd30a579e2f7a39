package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideForDecision maps an entry decision to the side it opens.
func SideForDecision(d Decision) Side {
	if d == DecisionSell {
		return SideShort
	}
	return SideLong
}

type Position struct {
	Asset            string              `json:"asset"`
	Side             Side                `json:"side"`
	Size             decimal.Decimal     `json:"size"`
	EntryPrice       decimal.Decimal     `json:"entry_price"`
	CurrentPrice     decimal.Decimal     `json:"current_price"`
	Leverage         int                 `json:"leverage"`
	MarginUsed       decimal.Decimal     `json:"margin_used"`
	UnrealizedPnL    decimal.Decimal     `json:"unrealized_pnl"`
	UnrealizedPnLPct float64             `json:"unrealized_pnl_pct"`
	LiquidationPrice decimal.NullDecimal `json:"liquidation_price"`
	StopLoss         decimal.NullDecimal `json:"stop_loss"`
	TakeProfit1      decimal.NullDecimal `json:"take_profit_1"`
	TakeProfit2      decimal.NullDecimal `json:"take_profit_2"`
	TakeProfit3      decimal.NullDecimal `json:"take_profit_3"`
	EntryTime        time.Time           `json:"entry_time"`
}

// Notional is |size * current price|.
func (p Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.CurrentPrice).Abs()
}

// TakeProfits returns the configured targets in order, skipping unset slots.
func (p Position) TakeProfits() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, 3)
	for _, tp := range []decimal.NullDecimal{p.TakeProfit1, p.TakeProfit2, p.TakeProfit3} {
		if tp.Valid {
			out = append(out, tp.Decimal)
		}
	}
	return out
}

// PositionMetadata is the bot-side bookkeeping kept alongside an open position.
type PositionMetadata struct {
	Decision       TradingDecision     `json:"decision"`
	Action         SuggestedAction     `json:"action"`
	TradeID        string              `json:"trade_id,omitempty"`
	OriginalStop   decimal.NullDecimal `json:"original_stop"`
	TPLevelsHit    []int               `json:"tp_levels_hit"`
	TrailingActive bool                `json:"trailing_active"`
	TrailingPrice  decimal.NullDecimal `json:"trailing_price"`
}

// LevelHit reports whether take-profit level (1-based) already triggered.
func (m PositionMetadata) LevelHit(level int) bool {
	for _, l := range m.TPLevelsHit {
		if l == level {
			return true
		}
	}
	return false
}
