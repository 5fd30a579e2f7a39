package connectors

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perptrader/src/model"
)

type memoryOrderLogs struct {
	mu   sync.Mutex
	logs []model.OrderLog
	err  error
}

func (m *memoryOrderLogs) Create(ctx context.Context, entry *model.OrderLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return m.err
}

func (m *memoryOrderLogs) last() model.OrderLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[len(m.logs)-1]
}

func market(asset, side, size string) model.OrderRequest {
	return model.OrderRequest{Asset: asset, Side: side, Size: d(size), OrderType: model.OrderTypeMarket, Leverage: 5}
}

func TestPaperOpenAndMarkToMarket(t *testing.T) {
	ctx := context.Background()
	prices := staticTicker{"BTC": d("100")}
	logs := &memoryOrderLogs{}
	ex := NewPaperExecutor(prices, logs, d("10000"))

	req := market("BTC", model.OrderSideBuy, "10")
	req.TradeID = "trade-1"
	res, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.AvgPrice.Equal(d("100")))
	assert.True(t, res.FilledSz.Equal(d("10")))

	entry := logs.last()
	assert.Equal(t, model.OrderExecutionStatusFilled, entry.Status)
	assert.Equal(t, "trade-1", entry.TradeID)
	assert.Equal(t, "paper", entry.Mode)
	assert.Equal(t, res.OrderID, entry.OrderID)

	prices["BTC"] = d("110")
	p, err := ex.AccountState(ctx)
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, model.SideLong, p.Positions[0].Side)
	assert.True(t, p.UnrealizedPnL.Equal(d("100")))
	assert.True(t, p.TotalValue.Equal(d("10100")))
	// margin = 10 * 100 / 5
	assert.True(t, p.UsedMargin.Equal(d("200")))
	assert.True(t, p.AvailableBalance.Equal(d("9900")))
	assert.InDelta(t, 10.0, p.Positions[0].UnrealizedPnLPct, 1e-9)
}

func TestPaperPartialCloseRealizesPnL(t *testing.T) {
	ctx := context.Background()
	prices := staticTicker{"ETH": d("200")}
	ex := NewPaperExecutor(prices, nil, d("1000"))

	_, err := ex.PlaceOrder(ctx, market("ETH", model.OrderSideSell, "2"))
	require.NoError(t, err)

	prices["ETH"] = d("180")
	reduce := market("ETH", model.OrderSideBuy, "1")
	reduce.ReduceOnly = true
	_, err = ex.PlaceOrder(ctx, reduce)
	require.NoError(t, err)

	p, _ := ex.AccountState(ctx)
	require.Len(t, p.Positions, 1)
	assert.True(t, p.Positions[0].Size.Equal(d("1")))
	// 20 realized + 20 unrealized
	assert.True(t, p.TotalValue.Equal(d("1040")))

	res, err := ex.ClosePosition(ctx, "ETH", "trade-x")
	require.NoError(t, err)
	assert.True(t, res.FilledSz.Equal(d("1")))

	p, _ = ex.AccountState(ctx)
	assert.Empty(t, p.Positions)
	assert.True(t, p.TotalValue.Equal(d("1040")))
}

func TestPaperAveragesAndClampsReduceOnly(t *testing.T) {
	ctx := context.Background()
	prices := staticTicker{"SOL": d("10")}
	ex := NewPaperExecutor(prices, nil, d("1000"))

	_, err := ex.PlaceOrder(ctx, market("SOL", model.OrderSideBuy, "1"))
	require.NoError(t, err)
	prices["SOL"] = d("20")
	_, err = ex.PlaceOrder(ctx, market("SOL", model.OrderSideBuy, "1"))
	require.NoError(t, err)

	p, _ := ex.AccountState(ctx)
	assert.True(t, p.Positions[0].EntryPrice.Equal(d("15")))

	over := market("SOL", model.OrderSideSell, "5")
	over.ReduceOnly = true
	res, err := ex.PlaceOrder(ctx, over)
	require.NoError(t, err)
	assert.True(t, res.FilledSz.Equal(d("2")))

	p, _ = ex.AccountState(ctx)
	assert.Empty(t, p.Positions)
	assert.True(t, p.TotalValue.Equal(d("1010")))
}

func TestPaperLimitUsesLimitPrice(t *testing.T) {
	ex := NewPaperExecutor(staticTicker{"BTC": d("100")}, nil, d("1000"))
	req := market("BTC", model.OrderSideBuy, "1")
	req.OrderType = model.OrderTypeLimit
	req.LimitPrice = decimal.NewNullDecimal(d("95"))

	res, err := ex.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.AvgPrice.Equal(d("95")))
}

func TestPaperRejections(t *testing.T) {
	ctx := context.Background()
	logs := &memoryOrderLogs{}
	ex := NewPaperExecutor(staticTicker{"BTC": d("100")}, logs, d("1000"))

	_, err := ex.PlaceOrder(ctx, market("BTC", model.OrderSideBuy, "0"))
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, model.OrderExecutionStatusRejected, logs.last().Status)

	_, err = ex.PlaceOrder(ctx, market("BTC", "HODL", "1"))
	require.ErrorIs(t, err, ErrInvalidOrder)

	reduce := market("BTC", model.OrderSideSell, "1")
	reduce.ReduceOnly = true
	_, err = ex.PlaceOrder(ctx, reduce)
	require.ErrorIs(t, err, ErrNoPosition)

	_, err = ex.ClosePosition(ctx, "BTC", "")
	require.ErrorIs(t, err, ErrNoPosition)

	_, err = ex.PlaceOrder(ctx, market("DOGE", model.OrderSideBuy, "1"))
	require.Error(t, err)
	assert.Equal(t, model.OrderExecutionStatusError, logs.last().Status)
}

func TestPaperOrderLogFailureDoesNotFailOrder(t *testing.T) {
	logs := &memoryOrderLogs{err: errors.New("db down")}
	ex := NewPaperExecutor(staticTicker{"BTC": d("100")}, logs, d("1000"))

	_, err := ex.PlaceOrder(context.Background(), market("BTC", model.OrderSideBuy, "1"))
	require.NoError(t, err)
}
