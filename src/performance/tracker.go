package performance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perptrader/src/model"
	"perptrader/src/repository"
)

const dateLayout = "2006-01-02"

var ErrTradeClosed = errors.New("trade already closed")

// TradeEntry is what the loop reports when a new position is opened.
type TradeEntry struct {
	Asset      string
	Side       string
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	StopLoss   decimal.NullDecimal
	TakeProfit []decimal.Decimal
	Confidence float64
	Confluence int
	Reason     string
}

// Tracker is the daily circuit breaker. It owns the current day record and
// the trade ledger, and persists every change before acknowledging it.
type Tracker struct {
	cfg    Config
	store  repository.PerformanceStore
	logger *logrus.Entry
	now    func() time.Time
	loc    *time.Location

	mu  sync.Mutex
	day *model.DailyPerformance
}

// NewTracker loads the persisted day, or starts a fresh one.
func NewTracker(ctx context.Context, cfg Config, store repository.PerformanceStore) (*Tracker, error) {
	return newTracker(ctx, cfg, store, time.Now)
}

func newTracker(ctx context.Context, cfg Config, store repository.PerformanceStore, now func() time.Time) (*Tracker, error) {
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("load trading day timezone %q: %w", cfg.TimeZone, err)
		}
		loc = l
	}

	t := &Tracker{
		cfg:    cfg,
		store:  store,
		logger: logrus.WithField("component", "performance_tracker"),
		now:    now,
		loc:    loc,
	}

	day, err := store.LoadCurrentDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("load daily performance: %w", err)
	}
	if day == nil {
		day = &model.DailyPerformance{Date: t.today()}
		if err := store.SaveCurrentDay(ctx, day); err != nil {
			return nil, fmt.Errorf("persist daily performance: %w", err)
		}
	}
	t.day = day
	return t, nil
}

func (t *Tracker) today() string {
	return t.now().In(t.loc).Format(dateLayout)
}

// commit applies fn to a copy of the day record and swaps it in only once
// the store accepted it.
func (t *Tracker) commit(ctx context.Context, fn func(day *model.DailyPerformance)) error {
	return t.commitWith(fn, func(next *model.DailyPerformance) error {
		if err := t.store.SaveCurrentDay(ctx, next); err != nil {
			return fmt.Errorf("persist daily performance: %w", err)
		}
		return nil
	})
}

// commitWith is commit with a custom write, used when the ledger changes
// together with the day record.
func (t *Tracker) commitWith(fn func(day *model.DailyPerformance), save func(next *model.DailyPerformance) error) error {
	next := t.day.Clone()
	fn(next)
	if err := save(next); err != nil {
		return err
	}
	t.day = next
	return nil
}

// ResetIfNewDay archives the finished day and starts a new one carrying the
// ending balance forward. Returns true when a rollover happened.
func (t *Tracker) ResetIfNewDay(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetIfNewDayLocked(ctx)
}

func (t *Tracker) resetIfNewDayLocked(ctx context.Context) (bool, error) {
	today := t.today()
	if t.day.Date == today {
		return false, nil
	}

	if t.day.Date != "" {
		if err := t.store.ArchiveDay(ctx, t.day); err != nil {
			return false, fmt.Errorf("archive %s: %w", t.day.Date, err)
		}
	}

	balance := t.day.CurrentBalance
	next := &model.DailyPerformance{
		Date:            today,
		StartingBalance: balance,
		CurrentBalance:  balance,
	}
	if err := t.store.SaveCurrentDay(ctx, next); err != nil {
		return false, fmt.Errorf("persist daily performance: %w", err)
	}

	t.logger.WithFields(map[string]interface{}{
		"previous": t.day.Date,
		"date":     today,
		"balance":  balance.String(),
	}).Info("new trading day")
	t.day = next
	return true, nil
}

// UpdateBalance records the latest equity. Returns false once the daily loss
// reaches the halt threshold; trading is then stopped for the day.
func (t *Tracker) UpdateBalance(ctx context.Context, balance decimal.Decimal) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return false, err
	}

	err := t.commit(ctx, func(day *model.DailyPerformance) {
		day.CurrentBalance = balance
		if day.StartingBalance.IsZero() {
			day.StartingBalance = balance
		}
		day.DailyPnL = balance.Sub(day.StartingBalance)
		day.DailyPnLPct = 0
		if day.StartingBalance.IsPositive() {
			day.DailyPnLPct = day.DailyPnL.Div(day.StartingBalance).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	})
	if err != nil {
		return false, err
	}

	pct := t.day.DailyPnLPct
	if pct <= t.cfg.HaltLossPct {
		if err := t.stopTradingLocked(ctx, fmt.Sprintf("Daily loss limit reached: %.1f%%", t.cfg.HaltLossPct)); err != nil {
			return false, err
		}
		return false, nil
	}
	if pct <= t.cfg.WarnLossPct {
		t.logger.WithField("daily_pnl_pct", pct).Warn("daily loss warning, next trades will be smaller")
	}
	return true, nil
}

// CanTrade applies the halt flag, the consecutive-loss halt and the post-loss
// cooldowns. The reason is empty when trading is allowed.
func (t *Tracker) CanTrade(ctx context.Context) (bool, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return false, "", err
	}

	if t.day.TradingHalted {
		return false, t.day.HaltReason, nil
	}

	losses := t.day.ConsecutiveLosses
	if losses >= t.cfg.MaxConsecutiveLosses {
		if err := t.stopTradingLocked(ctx, fmt.Sprintf("Too many consecutive losses (%d)", losses)); err != nil {
			return false, "", err
		}
		return false, fmt.Sprintf("%d consecutive losses", losses), nil
	}

	if losses >= 2 && t.day.LastTradeTime != nil {
		required := t.cfg.ShortCooldown
		if losses > 2 {
			required = t.cfg.LongCooldown
		}
		if t.now().Sub(*t.day.LastTradeTime) < required {
			return false, fmt.Sprintf("Cooldown: %s after %d losses", formatHours(required), losses), nil
		}
	}
	return true, "", nil
}

// PositionSizeModifier scales new entries down after losing streaks, near
// the warning drawdown and late in a busy day. Never below the configured floor.
func (t *Tracker) PositionSizeModifier(ctx context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return 0, err
	}

	modifier := 1.0
	if t.day.ConsecutiveLosses >= 3 {
		modifier *= 0.5
	}
	if pct := t.day.DailyPnLPct; pct > -2.5 && pct <= t.cfg.WarnLossPct {
		modifier *= 0.5
	}
	if t.day.TradesToday >= t.cfg.APlusAfterTrades {
		modifier *= 0.75
	}
	if modifier < t.cfg.MinSizeModifier {
		modifier = t.cfg.MinSizeModifier
	}
	return modifier, nil
}

// ShouldOnlyTradeAPlusSetups is true once the day's trade count reaches the
// A+ threshold.
func (t *Tracker) ShouldOnlyTradeAPlusSetups(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return false, err
	}
	return t.day.TradesToday >= t.cfg.APlusAfterTrades, nil
}

// LogTrade appends an OPEN ledger entry and returns its id.
func (t *Tracker) LogTrade(ctx context.Context, entry TradeEntry) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return "", err
	}

	now := t.now()
	trade := &model.TradeRecord{
		TradeID:         uuid.NewString(),
		Timestamp:       now,
		Date:            t.day.Date,
		Asset:           entry.Asset,
		Side:            entry.Side,
		EntryPrice:      entry.EntryPrice,
		Size:            entry.Size,
		StopLoss:        entry.StopLoss,
		TakeProfit:      entry.TakeProfit,
		Confidence:      entry.Confidence,
		ConfluenceScore: entry.Confluence,
		Reason:          entry.Reason,
		Status:          model.TradeStatusOpen,
	}
	err := t.commitWith(func(day *model.DailyPerformance) {
		day.TradesToday++
		day.LastTradeTime = &now
	}, func(next *model.DailyPerformance) error {
		if err := t.store.OpenTrade(ctx, next, trade); err != nil {
			return fmt.Errorf("open trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	t.logger.WithFields(map[string]interface{}{
		"trade_id": trade.TradeID,
		"asset":    entry.Asset,
		"side":     entry.Side,
		"entry":    entry.EntryPrice.String(),
		"count":    t.day.TradesToday,
	}).Info("trade logged")
	return trade.TradeID, nil
}

// LogTradeClose settles the ledger entry with the given id. A positive pnl is a
// win and resets the loss streak; anything else is a loss.
func (t *Tracker) LogTradeClose(ctx context.Context, tradeID string, exitPrice, pnl decimal.Decimal, pnlPct float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return err
	}

	trade, err := t.store.FindTrade(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("find trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return fmt.Errorf("%w: %s", repository.ErrTradeNotFound, tradeID)
	}
	if trade.Status != model.TradeStatusOpen {
		return fmt.Errorf("%w: %s", ErrTradeClosed, tradeID)
	}

	now := t.now()
	win := pnl.IsPositive()
	trade.ExitPrice = decimal.NewNullDecimal(exitPrice)
	trade.PnL = decimal.NewNullDecimal(pnl)
	trade.PnLPct = &pnlPct
	trade.CloseTimestamp = &now
	trade.Status = model.TradeStatusLoss
	if win {
		trade.Status = model.TradeStatusWin
	}

	// ledger row and loss counters are written as one unit
	err = t.commitWith(func(day *model.DailyPerformance) {
		if win {
			day.WinsToday++
			day.ConsecutiveLosses = 0
		} else {
			day.LossesToday++
			day.ConsecutiveLosses++
		}
		day.LastTradeTime = &now
	}, func(next *model.DailyPerformance) error {
		if err := t.store.CloseTrade(ctx, next, trade); err != nil {
			return fmt.Errorf("close trade %s: %w", tradeID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"trade_id": tradeID,
		"asset":    trade.Asset,
		"pnl":      pnl.StringFixed(2),
		"pnl_pct":  pnlPct,
	}
	if win {
		t.logger.WithFields(fields).Info("trade closed in profit")
	} else {
		fields["consecutive_losses"] = t.day.ConsecutiveLosses
		t.logger.WithFields(fields).Warn("trade closed at a loss")
	}
	return nil
}

// StopTrading halts new entries until the next trading day.
func (t *Tracker) StopTrading(ctx context.Context, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopTradingLocked(ctx, reason)
}

func (t *Tracker) stopTradingLocked(ctx context.Context, reason string) error {
	err := t.commit(ctx, func(day *model.DailyPerformance) {
		day.TradingHalted = true
		day.HaltReason = reason
	})
	if err != nil {
		return err
	}
	t.logger.WithFields(map[string]interface{}{
		"reason": reason,
		"date":   t.day.Date,
	}).Error("TRADING STOPPED")
	return nil
}

func (t *Tracker) DailyStats(ctx context.Context) (model.DailyStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.resetIfNewDayLocked(ctx); err != nil {
		return model.DailyStats{}, err
	}
	return t.day.Stats(), nil
}

// ArchivedDay returns a previous day's record, or nil when none was archived.
func (t *Tracker) ArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error) {
	return t.store.FindArchivedDay(ctx, date)
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%gh", d.Hours())
}
