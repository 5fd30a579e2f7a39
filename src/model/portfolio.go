package model

import "github.com/shopspring/decimal"

// Portfolio is an immutable account snapshot taken once per loop iteration.
type Portfolio struct {
	TotalValue       decimal.Decimal `json:"total_value"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	UsedMargin       decimal.Decimal `json:"used_margin"`
	MarginUsagePct   float64         `json:"margin_usage_pct"`
	ExposurePct      float64         `json:"exposure_pct"`
	Positions        []Position      `json:"positions"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
}

// TotalNotional sums |size * current price| across open positions.
func (p Portfolio) TotalNotional() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.Notional())
	}
	return total
}

func (p Portfolio) HasPosition(asset string) bool {
	_, ok := p.Position(asset)
	return ok
}

func (p Portfolio) Position(asset string) (Position, bool) {
	for _, pos := range p.Positions {
		if pos.Asset == asset {
			return pos, true
		}
	}
	return Position{}, false
}
