package connectors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNoPosition   = errors.New("no open position")
)

const paperMode = "paper"

// OrderLogStore persists each order attempt.
type OrderLogStore interface {
	Create(ctx context.Context, entry *model.OrderLog) error
}

type paperPosition struct {
	size     decimal.Decimal // signed, positive is long
	entry    decimal.Decimal
	leverage int
}

// PaperExecutor fills orders at the current mid against a simulated account
// and doubles as the account source in paper mode.
type PaperExecutor struct {
	prices TickerSource
	logs   OrderLogStore
	now    func() time.Time

	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]*paperPosition
}

// NewPaperExecutor starts with the given cash balance. logs may be nil.
func NewPaperExecutor(prices TickerSource, logs OrderLogStore, startingBalance decimal.Decimal) *PaperExecutor {
	return &PaperExecutor{
		prices:    prices,
		logs:      logs,
		now:       time.Now,
		cash:      startingBalance,
		positions: make(map[string]*paperPosition),
	}
}

func (e *PaperExecutor) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	entry := &model.OrderLog{
		OrderID:    uuid.NewString(),
		TradeID:    req.TradeID,
		Asset:      req.Asset,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Size:       req.Size,
		Leverage:   req.Leverage,
		ReduceOnly: req.ReduceOnly,
		Mode:       paperMode,
		Status:     model.OrderExecutionStatusPending,
	}

	result, err := e.fill(ctx, req, entry)
	if err != nil {
		entry.Status = model.OrderExecutionStatusRejected
		if !errors.Is(err, ErrInvalidOrder) && !errors.Is(err, ErrNoPosition) {
			entry.Status = model.OrderExecutionStatusError
		}
		entry.Reason = err.Error()
	} else {
		entry.Status = model.OrderExecutionStatusFilled
	}
	e.record(ctx, entry)

	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"asset":       req.Asset,
		"side":        req.Side,
		"size":        result.FilledSz.String(),
		"price":       result.AvgPrice.String(),
		"reduce_only": req.ReduceOnly,
		"mode":        paperMode,
	}).Info("Order filled")
	return result, nil
}

func (e *PaperExecutor) fill(ctx context.Context, req model.OrderRequest, entry *model.OrderLog) (*model.OrderResult, error) {
	if !req.Size.IsPositive() {
		return nil, fmt.Errorf("%w: size must be positive", ErrInvalidOrder)
	}
	var dir decimal.Decimal
	switch req.Side {
	case model.OrderSideBuy:
		dir = decimal.NewFromInt(1)
	case model.OrderSideSell:
		dir = decimal.NewFromInt(-1)
	default:
		return nil, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, req.Side)
	}

	price, err := e.fillPrice(ctx, req)
	if err != nil {
		return nil, err
	}
	entry.Price = price

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions[req.Asset]
	qty := req.Size
	if req.ReduceOnly {
		if pos == nil || pos.size.Sign() == dir.Sign() {
			return nil, fmt.Errorf("%w: reduce-only %s %s", ErrNoPosition, req.Side, req.Asset)
		}
		qty = decimal.Min(qty, pos.size.Abs())
	}
	e.apply(req.Asset, pos, qty.Mul(dir), price, req.Leverage)

	return &model.OrderResult{
		OrderID:   entry.OrderID,
		Status:    model.OrderExecutionStatusFilled,
		FilledSz:  qty,
		AvgPrice:  price,
		Timestamp: e.now(),
	}, nil
}

func (e *PaperExecutor) fillPrice(ctx context.Context, req model.OrderRequest) (decimal.Decimal, error) {
	if req.OrderType == model.OrderTypeLimit && req.LimitPrice.Valid && req.LimitPrice.Decimal.IsPositive() {
		return req.LimitPrice.Decimal, nil
	}
	px, err := e.prices.Ticker(ctx, req.Asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w", req.Asset, err)
	}
	if !px.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", ErrInvalidOrder, req.Asset)
	}
	return px, nil
}

// apply nets a signed fill into the position, realizing pnl on the closed part.
func (e *PaperExecutor) apply(asset string, pos *paperPosition, signed, price decimal.Decimal, leverage int) {
	if leverage <= 0 {
		leverage = 1
	}
	if pos == nil {
		e.positions[asset] = &paperPosition{size: signed, entry: price, leverage: leverage}
		return
	}

	if pos.size.Sign() == signed.Sign() {
		total := pos.size.Add(signed)
		pos.entry = pos.entry.Mul(pos.size.Abs()).Add(price.Mul(signed.Abs())).Div(total.Abs())
		pos.size = total
		return
	}

	closed := decimal.Min(pos.size.Abs(), signed.Abs())
	sign := decimal.NewFromInt(int64(pos.size.Sign()))
	e.cash = e.cash.Add(price.Sub(pos.entry).Mul(closed).Mul(sign))

	remaining := pos.size.Add(signed)
	switch {
	case remaining.IsZero():
		delete(e.positions, asset)
	case remaining.Sign() == pos.size.Sign():
		pos.size = remaining
	default:
		// flipped through zero
		e.positions[asset] = &paperPosition{size: remaining, entry: price, leverage: leverage}
	}
}

// ClosePosition flattens the asset with a reduce-only market order.
func (e *PaperExecutor) ClosePosition(ctx context.Context, asset, tradeID string) (*model.OrderResult, error) {
	e.mu.Lock()
	pos := e.positions[asset]
	var req model.OrderRequest
	if pos != nil {
		side := model.OrderSideSell
		if pos.size.IsNegative() {
			side = model.OrderSideBuy
		}
		req = model.OrderRequest{
			Asset:      asset,
			Side:       side,
			Size:       pos.size.Abs(),
			OrderType:  model.OrderTypeMarket,
			ReduceOnly: true,
			Leverage:   pos.leverage,
			TradeID:    tradeID,
		}
	}
	e.mu.Unlock()

	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, asset)
	}
	return e.PlaceOrder(ctx, req)
}

// AccountState marks the simulated account to market.
func (e *PaperExecutor) AccountState(ctx context.Context) (model.Portfolio, error) {
	e.mu.Lock()
	assets := make([]string, 0, len(e.positions))
	snapshot := make(map[string]paperPosition, len(e.positions))
	for asset, p := range e.positions {
		assets = append(assets, asset)
		snapshot[asset] = *p
	}
	cash := e.cash
	e.mu.Unlock()
	sort.Strings(assets)

	p := model.Portfolio{UnrealizedPnL: decimal.Zero, UsedMargin: decimal.Zero}
	for _, asset := range assets {
		sp := snapshot[asset]
		mark, err := e.prices.Ticker(ctx, asset)
		if err != nil || !mark.IsPositive() {
			mark = sp.entry
		}
		size := sp.size.Abs()
		pnl := mark.Sub(sp.entry).Mul(sp.size)
		margin := size.Mul(sp.entry).Div(decimal.NewFromInt(int64(sp.leverage)))

		side := model.SideLong
		if sp.size.IsNegative() {
			side = model.SideShort
		}
		pct := 0.0
		if basis := size.Mul(sp.entry); basis.IsPositive() {
			pct = pnl.Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}

		p.Positions = append(p.Positions, model.Position{
			Asset:            asset,
			Side:             side,
			Size:             size,
			EntryPrice:       sp.entry,
			CurrentPrice:     mark,
			Leverage:         sp.leverage,
			MarginUsed:       margin,
			UnrealizedPnL:    pnl,
			UnrealizedPnLPct: pct,
		})
		p.UnrealizedPnL = p.UnrealizedPnL.Add(pnl)
		p.UsedMargin = p.UsedMargin.Add(margin)
	}

	p.TotalValue = cash.Add(p.UnrealizedPnL)
	p.AvailableBalance = p.TotalValue.Sub(p.UsedMargin)
	if p.TotalValue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		p.MarginUsagePct = p.UsedMargin.Div(p.TotalValue).Mul(hundred).InexactFloat64()
		p.ExposurePct = p.TotalNotional().Div(p.TotalValue).Mul(hundred).InexactFloat64()
	}
	return p, nil
}

func (e *PaperExecutor) record(ctx context.Context, entry *model.OrderLog) {
	if e.logs == nil {
		return
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		logger.WithFields(map[string]interface{}{
			"order_id": entry.OrderID,
			"asset":    entry.Asset,
		}).WithError(err).Warn("Failed to persist order log")
	}
}
