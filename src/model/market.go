package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	Symbol   string          `json:"symbol"`
}

type BookLevel struct {
	Price decimal.Decimal `json:"px"`
	Size  decimal.Decimal `json:"sz"`
}

type Orderbook struct {
	Asset string      `json:"asset"`
	Bids  []BookLevel `json:"bids"`
	Asks  []BookLevel `json:"asks"`
}

// SpreadBps returns the top-of-book spread in basis points of the mid.
// ok is false when either side of the book is empty.
func (o *Orderbook) SpreadBps() (float64, bool) {
	if o == nil || len(o.Bids) == 0 || len(o.Asks) == 0 {
		return 0, false
	}
	bid, ask := o.Bids[0].Price, o.Asks[0].Price
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	if !mid.IsPositive() {
		return 0, false
	}
	return ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(10000)).InexactFloat64(), true
}
