package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPerformance is the persisted record of one trading day.
type DailyPerformance struct {
	ID                uint            `gorm:"primaryKey" json:"-"`
	Date              string          `gorm:"size:10;uniqueIndex" json:"date"`
	StartingBalance   decimal.Decimal `gorm:"type:numeric" json:"starting_balance"`
	CurrentBalance    decimal.Decimal `gorm:"type:numeric" json:"current_balance"`
	DailyPnL          decimal.Decimal `gorm:"type:numeric" json:"daily_pnl"`
	DailyPnLPct       float64         `json:"daily_pnl_pct"`
	TradesToday       int             `json:"trades_today"`
	WinsToday         int             `json:"wins_today"`
	LossesToday       int             `json:"losses_today"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	TradingHalted     bool            `json:"is_trading_stopped"`
	HaltReason        string          `gorm:"size:255" json:"stop_reason"`
	LastTradeTime     *time.Time      `json:"last_trade_time"`
	Archived          bool            `gorm:"index" json:"-"`
	UpdatedAt         time.Time       `json:"-"`
}

func (DailyPerformance) TableName() string {
	return "daily_performance"
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (d *DailyPerformance) Clone() *DailyPerformance {
	if d == nil {
		return nil
	}
	c := *d
	if d.LastTradeTime != nil {
		t := *d.LastTradeTime
		c.LastTradeTime = &t
	}
	return &c
}

// WinRate is wins over closed trades, in percent.
func (d *DailyPerformance) WinRate() float64 {
	closed := d.WinsToday + d.LossesToday
	if closed == 0 {
		return 0
	}
	return float64(d.WinsToday) / float64(closed) * 100
}

const (
	TradeStatusOpen = "OPEN"
	TradeStatusWin  = "WIN"
	TradeStatusLoss = "LOSS"
)

// TradeRecord is one ledger entry. TradeID is the stable identifier used to
// match the close with its entry.
type TradeRecord struct {
	ID              uint                `gorm:"primaryKey" json:"-"`
	TradeID         string              `gorm:"size:36;uniqueIndex" json:"trade_id"`
	Timestamp       time.Time           `json:"timestamp"`
	Date            string              `gorm:"size:10;index" json:"date"`
	Asset           string              `gorm:"size:30;index" json:"asset"`
	Side            string              `gorm:"size:10" json:"side"`
	EntryPrice      decimal.Decimal     `gorm:"type:numeric" json:"entry_price"`
	Size            decimal.Decimal     `gorm:"type:numeric" json:"size"`
	StopLoss        decimal.NullDecimal `gorm:"type:numeric" json:"stop_loss"`
	TakeProfit      []decimal.Decimal   `gorm:"serializer:json" json:"take_profit"`
	Confidence      float64             `json:"confidence"`
	ConfluenceScore int                 `json:"confluence_score"`
	Reason          string              `gorm:"type:text" json:"reason"`
	Status          string              `gorm:"size:10;index" json:"status"`
	ExitPrice       decimal.NullDecimal `gorm:"type:numeric" json:"exit_price,omitempty"`
	PnL             decimal.NullDecimal `gorm:"type:numeric" json:"pnl,omitempty"`
	PnLPct          *float64            `json:"pnl_pct,omitempty"`
	CloseTimestamp  *time.Time          `json:"close_timestamp,omitempty"`
	CreatedAt       time.Time           `json:"-"`
	UpdatedAt       time.Time           `json:"-"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// DailyStats is the read model returned to the status API and CLI.
type DailyStats struct {
	Date              string          `json:"date"`
	StartingBalance   decimal.Decimal `json:"starting_balance"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	DailyPnLPct       float64         `json:"daily_pnl_pct"`
	TradesToday       int             `json:"trades_today"`
	WinsToday         int             `json:"wins_today"`
	LossesToday       int             `json:"losses_today"`
	WinRate           float64         `json:"win_rate"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	TradingHalted     bool            `json:"is_trading_stopped"`
	HaltReason        string          `json:"stop_reason"`
}

func (d *DailyPerformance) Stats() DailyStats {
	return DailyStats{
		Date:              d.Date,
		StartingBalance:   d.StartingBalance,
		CurrentBalance:    d.CurrentBalance,
		DailyPnL:          d.DailyPnL,
		DailyPnLPct:       d.DailyPnLPct,
		TradesToday:       d.TradesToday,
		WinsToday:         d.WinsToday,
		LossesToday:       d.LossesToday,
		WinRate:           d.WinRate(),
		ConsecutiveLosses: d.ConsecutiveLosses,
		TradingHalted:     d.TradingHalted,
		HaltReason:        d.HaltReason,
	}
}
