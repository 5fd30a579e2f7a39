package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"

	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// OrderSideForDecision is the order side that opens an entry decision.
func OrderSideForDecision(d Decision) string {
	if d == DecisionSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderRequest is what the bot hands to an order executor.
type OrderRequest struct {
	Asset      string              `json:"asset"`
	Side       string              `json:"side"`
	Size       decimal.Decimal     `json:"size"`
	OrderType  string              `json:"order_type"`
	LimitPrice decimal.NullDecimal `json:"limit_price"`
	ReduceOnly bool                `json:"reduce_only"`
	Leverage   int                 `json:"leverage"`
	TradeID    string              `json:"trade_id,omitempty"`
}

type OrderResult struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	FilledSz  decimal.Decimal `json:"filled_size"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Timestamp time.Time       `json:"timestamp"`
}
