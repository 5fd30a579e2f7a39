package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perptrader/src/model"
	"perptrader/src/repository"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *clock, repository.PerformanceStore) {
	t.Helper()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	c := &clock{t: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)}
	tr, err := newTracker(context.Background(), DefaultConfig(), store, c.now)
	require.NoError(t, err)
	return tr, c, store
}

func openTrade(t *testing.T, tr *Tracker, asset string) string {
	t.Helper()
	id, err := tr.LogTrade(context.Background(), TradeEntry{
		Asset:      asset,
		Side:       model.OrderSideBuy,
		EntryPrice: d("100"),
		Size:       d("1"),
		StopLoss:   decimal.NewNullDecimal(d("95")),
		TakeProfit: []decimal.Decimal{d("110")},
		Confidence: 0.8,
		Confluence: 6,
		Reason:     "test",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func TestUpdateBalanceThresholds(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	ok, err := tr.UpdateBalance(ctx, d("10000"))
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := tr.DailyStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.StartingBalance.Equal(d("10000")))

	ok, err = tr.UpdateBalance(ctx, d("9790"))
	require.NoError(t, err)
	require.True(t, ok, "-2.1% only warns")

	allowed, _, err := tr.CanTrade(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	ok, err = tr.UpdateBalance(ctx, d("9690"))
	require.NoError(t, err)
	require.False(t, ok, "-3.1% halts")

	allowed, reason, err := tr.CanTrade(ctx)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Contains(t, reason, "Daily loss limit")

	stats, _ = tr.DailyStats(ctx)
	assert.InDelta(t, -3.1, stats.DailyPnLPct, 1e-9)
	assert.True(t, stats.DailyPnL.Equal(d("-310")))
	assert.True(t, stats.TradingHalted)
}

func TestUpdateBalanceExactlyMinusThree(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	_, err := tr.UpdateBalance(ctx, d("10000"))
	require.NoError(t, err)

	ok, err := tr.UpdateBalance(ctx, d("9700"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConsecutiveLossHaltPersistsAfterWin(t *testing.T) {
	ctx := context.Background()
	tr, c, _ := newTestTracker(t)

	for i := 0; i < 4; i++ {
		id := openTrade(t, tr, "BTC")
		require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))
	}
	c.advance(5 * time.Hour)

	allowed, reason, err := tr.CanTrade(ctx)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, "4 consecutive losses", reason)

	id := openTrade(t, tr, "BTC")
	require.NoError(t, tr.LogTradeClose(ctx, id, d("110"), d("10"), 10))

	stats, _ := tr.DailyStats(ctx)
	require.Equal(t, 0, stats.ConsecutiveLosses)

	allowed, reason, err = tr.CanTrade(ctx)
	require.NoError(t, err)
	require.False(t, allowed, "halt is only cleared by a new day")
	require.Contains(t, reason, "consecutive losses")

	c.advance(24 * time.Hour)
	allowed, _, err = tr.CanTrade(ctx)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLossCooldowns(t *testing.T) {
	ctx := context.Background()
	tr, c, _ := newTestTracker(t)

	for i := 0; i < 2; i++ {
		id := openTrade(t, tr, "BTC")
		require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))
	}

	c.advance(time.Hour)
	allowed, reason, err := tr.CanTrade(ctx)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, "Cooldown: 2h after 2 losses", reason)

	c.advance(time.Hour + time.Second)
	allowed, _, _ = tr.CanTrade(ctx)
	require.True(t, allowed)

	id := openTrade(t, tr, "ETH")
	require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))

	c.advance(3 * time.Hour)
	allowed, reason, _ = tr.CanTrade(ctx)
	require.False(t, allowed)
	require.Equal(t, "Cooldown: 4h after 3 losses", reason)

	c.advance(time.Hour + time.Second)
	allowed, _, _ = tr.CanTrade(ctx)
	require.True(t, allowed)
}

func TestPositionSizeModifier(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh day", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		m, err := tr.PositionSizeModifier(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1.0, m)
	})

	t.Run("three losses", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		for i := 0; i < 3; i++ {
			id := openTrade(t, tr, "BTC")
			require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))
		}
		m, _ := tr.PositionSizeModifier(ctx)
		assert.Equal(t, 0.5, m)
	})

	t.Run("inside warning band", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		_, _ = tr.UpdateBalance(ctx, d("10000"))
		_, _ = tr.UpdateBalance(ctx, d("9780"))
		m, _ := tr.PositionSizeModifier(ctx)
		assert.Equal(t, 0.5, m)

		_, _ = tr.UpdateBalance(ctx, d("9740"))
		m, _ = tr.PositionSizeModifier(ctx)
		assert.Equal(t, 1.0, m, "-2.6% is outside the band")
	})

	t.Run("busy day", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		for i := 0; i < 6; i++ {
			openTrade(t, tr, "BTC")
		}
		m, _ := tr.PositionSizeModifier(ctx)
		assert.Equal(t, 0.75, m)

		aplus, err := tr.ShouldOnlyTradeAPlusSetups(ctx)
		require.NoError(t, err)
		assert.True(t, aplus)
	})

	t.Run("floored", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		_, _ = tr.UpdateBalance(ctx, d("10000"))
		for i := 0; i < 3; i++ {
			id := openTrade(t, tr, "BTC")
			require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))
		}
		for i := 0; i < 3; i++ {
			openTrade(t, tr, "ETH")
		}
		_, _ = tr.UpdateBalance(ctx, d("9780"))
		m, _ := tr.PositionSizeModifier(ctx)
		assert.Equal(t, 0.25, m)
	})
}

func TestShouldOnlyTradeAPlusSetupsBelowThreshold(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	for i := 0; i < 5; i++ {
		openTrade(t, tr, "BTC")
	}
	aplus, err := tr.ShouldOnlyTradeAPlusSetups(context.Background())
	require.NoError(t, err)
	assert.False(t, aplus)
}

func TestLogTradeCloseMatchesByID(t *testing.T) {
	ctx := context.Background()
	tr, _, store := newTestTracker(t)

	first := openTrade(t, tr, "BTC")
	second := openTrade(t, tr, "BTC")

	require.NoError(t, tr.LogTradeClose(ctx, first, d("110"), d("10"), 10))

	rec, err := store.FindTrade(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, model.TradeStatusWin, rec.Status)
	assert.True(t, rec.ExitPrice.Decimal.Equal(d("110")))
	require.NotNil(t, rec.CloseTimestamp)

	rec, _ = store.FindTrade(ctx, second)
	assert.Equal(t, model.TradeStatusOpen, rec.Status)

	err = tr.LogTradeClose(ctx, first, d("110"), d("10"), 10)
	require.ErrorIs(t, err, ErrTradeClosed)

	err = tr.LogTradeClose(ctx, "unknown", d("1"), d("1"), 1)
	require.ErrorIs(t, err, repository.ErrTradeNotFound)

	// zero pnl counts as a loss
	require.NoError(t, tr.LogTradeClose(ctx, second, d("100"), decimal.Zero, 0))
	rec, _ = store.FindTrade(ctx, second)
	assert.Equal(t, model.TradeStatusLoss, rec.Status)

	stats, _ := tr.DailyStats(ctx)
	assert.Equal(t, 2, stats.TradesToday)
	assert.Equal(t, 1, stats.WinsToday)
	assert.Equal(t, 1, stats.LossesToday)
	assert.Equal(t, 50.0, stats.WinRate)
}

func TestRolloverArchivesAndCarriesBalance(t *testing.T) {
	ctx := context.Background()
	tr, c, store := newTestTracker(t)

	_, _ = tr.UpdateBalance(ctx, d("10000"))
	_, _ = tr.UpdateBalance(ctx, d("9650"))
	openTrade(t, tr, "BTC")

	c.advance(24 * time.Hour)
	rolled, err := tr.ResetIfNewDay(ctx)
	require.NoError(t, err)
	require.True(t, rolled)

	stats, _ := tr.DailyStats(ctx)
	assert.Equal(t, "2025-03-05", stats.Date)
	assert.True(t, stats.StartingBalance.Equal(d("9650")))
	assert.Equal(t, 0, stats.TradesToday)
	assert.False(t, stats.TradingHalted)

	archived, err := tr.ArchivedDay(ctx, "2025-03-04")
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.True(t, archived.TradingHalted)
	assert.Equal(t, 1, archived.TradesToday)

	rolled, err = tr.ResetIfNewDay(ctx)
	require.NoError(t, err)
	require.False(t, rolled)

	// a restarted tracker picks up the persisted day
	reloaded, err := newTracker(ctx, DefaultConfig(), store, c.now)
	require.NoError(t, err)
	stats, _ = reloaded.DailyStats(ctx)
	assert.Equal(t, "2025-03-05", stats.Date)
}

type failingStore struct {
	repository.PerformanceStore
	failSave bool
}

func (f *failingStore) SaveCurrentDay(ctx context.Context, day *model.DailyPerformance) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.PerformanceStore.SaveCurrentDay(ctx, day)
}

func (f *failingStore) OpenTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.PerformanceStore.OpenTrade(ctx, day, trade)
}

func (f *failingStore) CloseTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.PerformanceStore.CloseTrade(ctx, day, trade)
}

func TestFailedCloseCanBeRetried(t *testing.T) {
	ctx := context.Background()
	inner, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &failingStore{PerformanceStore: inner}
	c := &clock{t: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)}

	tr, err := newTracker(ctx, DefaultConfig(), store, c.now)
	require.NoError(t, err)
	id := openTrade(t, tr, "BTC")

	store.failSave = true
	err = tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5)
	require.Error(t, err)

	trade, err := inner.FindTrade(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TradeStatusOpen, trade.Status)
	stats, _ := tr.DailyStats(ctx)
	assert.Equal(t, 0, stats.LossesToday)

	store.failSave = false
	require.NoError(t, tr.LogTradeClose(ctx, id, d("95"), d("-5"), -5))

	trade, err = inner.FindTrade(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TradeStatusLoss, trade.Status)
	stats, _ = tr.DailyStats(ctx)
	assert.Equal(t, 1, stats.LossesToday)
	assert.Equal(t, 1, stats.ConsecutiveLosses)
}

func TestFailedOpenLeavesNoTrade(t *testing.T) {
	ctx := context.Background()
	inner, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &failingStore{PerformanceStore: inner}
	c := &clock{t: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)}

	tr, err := newTracker(ctx, DefaultConfig(), store, c.now)
	require.NoError(t, err)

	store.failSave = true
	id, err := tr.LogTrade(ctx, TradeEntry{Asset: "ETH", Side: model.OrderSideBuy, EntryPrice: d("100"), Size: d("1")})
	require.Error(t, err)
	assert.Empty(t, id)

	store.failSave = false
	trades, err := inner.ListTrades(ctx, repository.TradeSearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, trades)
	stats, _ := tr.DailyStats(ctx)
	assert.Equal(t, 0, stats.TradesToday)
}

func TestPersistenceFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	inner, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &failingStore{PerformanceStore: inner}
	c := &clock{t: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)}

	tr, err := newTracker(ctx, DefaultConfig(), store, c.now)
	require.NoError(t, err)
	_, err = tr.UpdateBalance(ctx, d("10000"))
	require.NoError(t, err)

	store.failSave = true
	_, err = tr.UpdateBalance(ctx, d("9000"))
	require.Error(t, err)

	require.Error(t, tr.StopTrading(ctx, "manual"))

	store.failSave = false
	stats, err := tr.DailyStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.CurrentBalance.Equal(d("10000")))
	assert.False(t, stats.TradingHalted)
}
