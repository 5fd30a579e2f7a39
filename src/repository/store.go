package repository

import (
	"context"
	"errors"

	"perptrader/src/model"
)

var ErrTradeNotFound = errors.New("trade not found")

// PerformanceStore persists the current trading day, its archives and the
// trade ledger. Implementations must make each call durable before returning.
type PerformanceStore interface {
	// LoadCurrentDay returns (nil, nil) when nothing was saved yet.
	LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error)
	SaveCurrentDay(ctx context.Context, day *model.DailyPerformance) error
	ArchiveDay(ctx context.Context, day *model.DailyPerformance) error
	// FindArchivedDay returns (nil, nil) when the date was never archived.
	FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error)

	AppendTrade(ctx context.Context, trade *model.TradeRecord) error
	UpdateTrade(ctx context.Context, trade *model.TradeRecord) error
	// FindTrade returns (nil, nil) for unknown ids.
	FindTrade(ctx context.Context, tradeID string) (*model.TradeRecord, error)
	ListTrades(ctx context.Context, options TradeSearchOptions) ([]model.TradeRecord, error)

	// OpenTrade appends trade and saves day as one unit: both are stored or
	// neither is.
	OpenTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error
	// CloseTrade updates an existing trade and saves day as one unit.
	CloseTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error
}

// TradeSearchOptions filters the ledger. Zero values mean "no filter".
// Results are ordered newest first.
type TradeSearchOptions struct {
	Date   string
	Asset  string
	Status string
	Limit  int
	Offset int
}

func (o TradeSearchOptions) matches(t *model.TradeRecord) bool {
	if o.Date != "" && t.Date != o.Date {
		return false
	}
	if o.Asset != "" && t.Asset != o.Asset {
		return false
	}
	if o.Status != "" && t.Status != o.Status {
		return false
	}
	return true
}
