package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"perptrader/src/connectors"
	"perptrader/src/decision"
	"perptrader/src/indicators"
	"perptrader/src/model"
	"perptrader/src/monitoring"
	"perptrader/src/performance"
	"perptrader/src/position"
	"perptrader/src/repository"
	"perptrader/src/risk"
)

const loopModule = "trading_loop"

var (
	// ErrEmergencyStop ends the loop: every position was flattened and the
	// process needs a manual restart.
	ErrEmergencyStop = errors.New("emergency stop triggered")
	// ErrPersistence marks a failed performance write; the iteration is aborted.
	ErrPersistence = errors.New("performance persistence failed")
)

type AccountSource interface {
	AccountState(ctx context.Context) (model.Portfolio, error)
}

type MarketData interface {
	Candles(ctx context.Context, asset, interval string, limit int) ([]model.Candle, error)
	Orderbook(ctx context.Context, asset string, depth int) (*model.Orderbook, error)
}

type OrderExecutor interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
	ClosePosition(ctx context.Context, asset, tradeID string) (*model.OrderResult, error)
}

// Deps are the collaborators a Bot drives.
type Deps struct {
	Account    AccountSource
	Market     MarketData
	Prices     connectors.TickerSource
	Orders     OrderExecutor
	Decider    decision.Source
	Risk       *risk.Manager
	Positions  *position.Manager
	Tracker    *performance.Tracker
	Exceptions ExceptionStore
}

// openTrade keeps what the exit path needs to settle a trade: the filled size
// at entry and P&L already realized by partial closes.
type openTrade struct {
	size     decimal.Decimal
	realized decimal.Decimal
}

// pendingClose is a settled exit whose ledger write failed.
type pendingClose struct {
	asset   string
	tradeID string
	exit    decimal.Decimal
	pnl     decimal.Decimal
	pnlPct  float64
}

// Bot runs one trading iteration at a time. RunIteration must not be called
// concurrently.
type Bot struct {
	cfg Config
	Deps
	now func() time.Time

	trades  map[string]*openTrade
	pending []pendingClose
}

func NewBot(cfg Config, deps Deps) *Bot {
	return &Bot{
		cfg:    cfg,
		Deps:   deps,
		now:    time.Now,
		trades: map[string]*openTrade{},
	}
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (b *Bot) capture(ctx context.Context, method string, err error, data map[string]interface{}) {
	Capture(ctx, b.Exceptions, b.cfg.ServiceName, loopModule, method, "error", err, data)
}

// RunIteration executes one pass: account refresh, daily circuit breaker,
// position monitoring, emergency stop, then one decision per asset.
func (b *Bot) RunIteration(ctx context.Context) error {
	started := b.now()
	logger.WithField("at", started.UTC().Format(time.RFC3339)).Info("--- Trading loop ---")

	rolled, err := b.Tracker.ResetIfNewDay(ctx)
	if err != nil {
		return persistence(err)
	}
	if rolled {
		b.Risk.ResetDailyStats()
	}

	if err := b.retryPendingCloses(ctx); err != nil {
		return err
	}

	portfolio, err := b.Account.AccountState(ctx)
	if err != nil {
		return fmt.Errorf("account state: %w", err)
	}
	b.Risk.UpdatePeakEquity(portfolio.TotalValue)
	monitoring.UpdateEquity(portfolio.TotalValue.InexactFloat64())

	if drift := b.Positions.DetectDrift(portfolio); len(drift) > 0 {
		logger.WithField("assets", drift).Warn("Tracked positions missing on exchange")
	}

	keepGoing, err := b.Tracker.UpdateBalance(ctx, portfolio.TotalValue)
	if err != nil {
		return persistence(err)
	}
	if !keepGoing {
		monitoring.RecordHalt("daily_loss")
		logger.Error("Daily loss limit hit, closing all positions for today")
		return b.closeAll(ctx, "daily_halt")
	}

	allowed, reason, err := b.Tracker.CanTrade(ctx)
	if err != nil {
		return persistence(err)
	}

	// exits keep running while new entries are blocked
	if err := b.monitorPositions(ctx); err != nil {
		return err
	}

	if b.Risk.EmergencyStop() {
		monitoring.RecordHalt("emergency")
		logger.Error("EMERGENCY STOP, closing all positions")
		closeErr := b.closeAll(ctx, "emergency_stop")
		dd := b.Risk.CurrentDrawdown(portfolio.TotalValue) * 100
		if err := b.Tracker.StopTrading(ctx, fmt.Sprintf("Emergency stop: drawdown %.1f%%", dd)); err != nil {
			return errors.Join(ErrEmergencyStop, closeErr, persistence(err))
		}
		return errors.Join(ErrEmergencyStop, closeErr)
	}

	if !allowed {
		monitoring.RecordRejection("performance")
		monitoring.UpdateOpenPositions(len(b.Positions.Positions()))
		b.logDailySummary(ctx, logger.WithField("reason", reason), "Trading not allowed")
		return nil
	}

	for _, asset := range b.cfg.Assets {
		if ctx.Err() != nil {
			return nil
		}
		traded, err := b.tradeAsset(ctx, asset, portfolio)
		if errors.Is(err, ErrPersistence) {
			return err
		}
		if err != nil {
			b.capture(ctx, "tradeAsset", err, map[string]interface{}{"asset": asset})
			continue
		}
		if traded {
			// later assets are gated against the post-trade account
			if fresh, err := b.Account.AccountState(ctx); err == nil {
				portfolio = fresh
			} else {
				logger.WithError(err).Warn("Could not refresh account after trade")
			}
		}
	}

	monitoring.UpdateOpenPositions(len(b.Positions.Positions()))
	b.logDailySummary(ctx, logger.WithField("took", b.now().Sub(started).String()), "Daily summary")
	return nil
}

func (b *Bot) logDailySummary(ctx context.Context, entry *logger.Entry, msg string) {
	stats, err := b.Tracker.DailyStats(ctx)
	if err != nil {
		entry.WithError(err).Warn(msg)
		return
	}
	monitoring.UpdateDailyPnLPct(stats.DailyPnLPct)
	entry.WithFields(map[string]interface{}{
		"trades_today":  stats.TradesToday,
		"wins":          stats.WinsToday,
		"losses":        stats.LossesToday,
		"daily_pnl_pct": fmt.Sprintf("%+.2f", stats.DailyPnLPct),
	}).Info(msg)
}

// monitorPositions walks every tracked position in the required order:
// price update, stop, take profit, trailing stop, time exit.
func (b *Bot) monitorPositions(ctx context.Context) error {
	positions := b.Positions.Positions()
	if len(positions) == 0 {
		return nil
	}
	logger.WithField("count", len(positions)).Info("Monitoring open positions")

	for _, pos := range positions {
		asset := pos.Asset
		log := logger.WithField("asset", asset)

		price, err := b.Prices.Ticker(ctx, asset)
		if err != nil {
			log.WithError(err).Warn("No price for open position, skipping this tick")
			continue
		}
		b.Positions.UpdatePosition(asset, price)

		if b.Positions.CheckStopLoss(asset) {
			if err := b.closePosition(ctx, asset, "stop_loss"); err != nil {
				if errors.Is(err, ErrPersistence) {
					return err
				}
				b.capture(ctx, "closePosition", err, map[string]interface{}{"asset": asset, "kind": "stop_loss"})
			}
			continue
		}

		if hit := b.Positions.CheckTakeProfitLevels(asset); hit != nil {
			log.WithFields(map[string]interface{}{
				"tp_level": hit.Level,
				"close":    hit.ClosePercentage,
			}).Info("Take profit hit")
			if err := b.reduce(ctx, asset, hit.ClosePercentage/100, hit.Price, "take_profit"); err != nil {
				if errors.Is(err, ErrPersistence) {
					return err
				}
				b.capture(ctx, "reduce", err, map[string]interface{}{"asset": asset, "tp_level": hit.Level})
			}
			if _, open := b.Positions.GetPosition(asset); !open {
				continue
			}
		}

		b.Positions.UpdateTrailingStop(asset)

		if b.Positions.ShouldCloseByTime(asset, 0) {
			if err := b.closePosition(ctx, asset, "time_exit"); err != nil {
				if errors.Is(err, ErrPersistence) {
					return err
				}
				b.capture(ctx, "closePosition", err, map[string]interface{}{"asset": asset, "kind": "time_exit"})
			}
			continue
		}

		current, _ := b.Positions.GetPosition(asset)
		if reduce, why := b.Risk.ShouldReducePosition(current, price); reduce {
			log.WithField("reason", why).Warn("Position at risk")
		}
		if stats, ok := b.Positions.GetPositionStats(asset); ok {
			log.WithFields(map[string]interface{}{
				"pnl":      stats.UnrealizedPnL.StringFixed(2),
				"pnl_pct":  fmt.Sprintf("%+.2f", stats.UnrealizedPnLPct),
				"hours":    fmt.Sprintf("%.1f", stats.DurationHours),
				"trailing": stats.TrailingActive,
			}).Info("Position status")
		}
	}
	return nil
}

// tradeAsset runs the decision pipeline for one asset. traded is true when
// an order was filled.
func (b *Bot) tradeAsset(ctx context.Context, asset string, portfolio model.Portfolio) (bool, error) {
	log := logger.WithField("asset", asset)

	var candles1h, candles4h []model.Candle
	var book *model.Orderbook
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := b.Market.Candles(gctx, asset, "1h", b.cfg.CandleLimit)
		candles1h = c
		return err
	})
	g.Go(func() error {
		c, err := b.Market.Candles(gctx, asset, "4h", b.cfg.CandleLimit)
		candles4h = c
		return err
	})
	g.Go(func() error {
		ob, err := b.Market.Orderbook(gctx, asset, b.cfg.OrderbookDepth)
		book = ob
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("market data for %s: %w", asset, err)
	}

	spread, hasSpread := book.SpreadBps()
	if hasSpread && spread > b.cfg.MaxSpreadBps {
		monitoring.RecordRejection("spread")
		log.WithField("spread_bps", fmt.Sprintf("%.1f", spread)).Warn("Spread too wide, skipping")
		return false, nil
	}

	atrPct, err := indicators.ATRPercent(candles1h, indicators.DefaultATRPeriod)
	if err != nil || atrPct <= 0 {
		atrPct = indicators.FallbackVolatility
	}
	realized, _ := indicators.RealizedVolatility(candles1h)

	snapshot := decision.MarketSnapshot{
		Asset:      asset,
		Price:      lastPrice(candles1h, book),
		Candles1h:  candles1h,
		Candles4h:  candles4h,
		Orderbook:  book,
		SpreadBps:  spread,
		ATRPct:     atrPct,
		Volatility: realized,
		Portfolio:  portfolio,
	}

	askedAt := b.now()
	d, err := b.Decider.Decide(ctx, snapshot)
	latency := b.now().Sub(askedAt)
	if err != nil {
		monitoring.RecordRejection("decision")
		return false, fmt.Errorf("decision for %s: %w", asset, err)
	}
	if b.cfg.LatencyGuard > 0 && latency > b.cfg.LatencyGuard {
		monitoring.RecordRejection("latency")
		log.WithField("latency", latency.String()).Warn("Decision too slow, holding")
		return false, nil
	}

	log.WithFields(map[string]interface{}{
		"decision":   d.Decision,
		"quality":    d.SetupQuality,
		"confidence": d.Confidence,
		"confluence": d.ConfluenceScore,
		"regime":     d.MarketRegime.Primary,
	}).Info("Decision received")

	if ok, msg := decision.ValidateDecision(d, b.cfg.Thresholds()); !ok {
		monitoring.RecordRejection("validation")
		log.WithField("reason", msg).Warn("Decision rejected")
		return false, nil
	}

	if d.Decision.IsEntry() {
		aplusOnly, err := b.Tracker.ShouldOnlyTradeAPlusSetups(ctx)
		if err != nil {
			return false, persistence(err)
		}
		if aplusOnly && !decision.IsAPlus(d) {
			monitoring.RecordRejection("aplus")
			log.Warn("Busy day, skipping setup below A+")
			return false, nil
		}
	}

	if ok, msg := b.Risk.ValidateTrade(d, portfolio, asset); !ok {
		monitoring.RecordRejection("risk")
		log.WithField("reason", msg).Warn("Risk check failed")
		return false, nil
	}

	switch {
	case d.Decision.IsEntry():
		return b.executeEntry(ctx, asset, d, portfolio, atrPct, snapshot.Price)
	case d.Decision.IsClose():
		return b.executeClose(ctx, asset, d)
	case d.Decision == model.DecisionReduceLong || d.Decision == model.DecisionReduceShort:
		return b.executeReduce(ctx, asset, d)
	default:
		log.Info("Holding, no trade signal")
		return false, nil
	}
}

func lastPrice(candles []model.Candle, book *model.Orderbook) decimal.Decimal {
	if n := len(candles); n > 0 {
		return candles[n-1].Close
	}
	if book != nil && len(book.Bids) > 0 && len(book.Asks) > 0 {
		return book.Bids[0].Price.Add(book.Asks[0].Price).Div(decimal.NewFromInt(2))
	}
	return decimal.Zero
}

func (b *Bot) executeEntry(ctx context.Context, asset string, d *model.TradingDecision, portfolio model.Portfolio, volatility float64, marketPrice decimal.Decimal) (bool, error) {
	log := logger.WithField("asset", asset)
	action := d.SuggestedAction

	if _, tracked := b.Positions.GetPosition(asset); tracked {
		log.Info("Position already open, not adding")
		return false, nil
	}

	sizeUSD, sizing := b.Risk.CalculatePositionSize(d, portfolio, volatility)
	modifier, err := b.Tracker.PositionSizeModifier(ctx)
	if err != nil {
		return false, persistence(err)
	}
	if modifier < 1 {
		sizeUSD = sizeUSD.Mul(decimal.NewFromFloat(modifier))
		log.WithField("modifier", modifier).Warn("Position size reduced after losses")
	}

	entryPrice := action.EntryPrice
	if !entryPrice.IsPositive() {
		entryPrice = marketPrice
	}
	if !sizeUSD.IsPositive() || !entryPrice.IsPositive() {
		monitoring.RecordRejection("sizing")
		log.WithField("reason", sizing).Warn("Nothing to trade after sizing")
		return false, nil
	}
	// the decision's own quantity may be missing, so the cap is applied to
	// the notional actually being sent
	if ok, msg := b.Risk.CheckExposure(portfolio, d.MarketRegime.Primary, sizeUSD); !ok {
		monitoring.RecordRejection("exposure")
		log.WithFields(map[string]interface{}{
			"size_usd": sizeUSD.StringFixed(2),
			"reason":   msg,
		}).Warn("Sized entry rejected")
		return false, nil
	}
	qty := sizeUSD.Div(entryPrice).Truncate(8)
	leverage := b.Risk.CalculateLeverage(asset, volatility, d.Confidence)

	log.WithFields(map[string]interface{}{
		"size_usd": sizeUSD.StringFixed(2),
		"qty":      qty.String(),
		"leverage": leverage,
		"sizing":   sizing,
	}).Info("Placing entry")

	orderType := action.Type
	if orderType != model.OrderTypeLimit {
		orderType = model.OrderTypeMarket
	}
	req := model.OrderRequest{
		Asset:     asset,
		Side:      model.OrderSideForDecision(d.Decision),
		Size:      qty,
		OrderType: orderType,
		Leverage:  leverage,
	}
	if orderType == model.OrderTypeLimit {
		req.LimitPrice = decimal.NewNullDecimal(entryPrice)
	}

	res, err := b.Orders.PlaceOrder(ctx, req)
	if err != nil {
		return false, fmt.Errorf("entry order for %s: %w", asset, err)
	}
	b.Risk.MarkAssetTrade(asset)

	fillPrice, filled := entryPrice, qty
	if res.AvgPrice.IsPositive() {
		fillPrice = res.AvgPrice
	}
	if res.FilledSz.IsPositive() {
		filled = res.FilledSz
	}

	var stop decimal.NullDecimal
	if action.StopLoss.Price.IsPositive() {
		stop = decimal.NewNullDecimal(action.StopLoss.Price)
	}
	targets := make([]decimal.Decimal, 0, len(action.TakeProfitTargets))
	for _, tp := range action.TakeProfitTargets {
		targets = append(targets, tp.Price)
	}

	tradeID, logErr := b.Tracker.LogTrade(ctx, performance.TradeEntry{
		Asset:      asset,
		Side:       req.Side,
		EntryPrice: fillPrice,
		Size:       filled,
		StopLoss:   stop,
		TakeProfit: targets,
		Confidence: d.Confidence,
		Confluence: d.ConfluenceScore,
		Reason:     truncate(d.Reasoning, 200),
	})

	// the fill is real, so the position is tracked even when the ledger write failed
	pos := model.Position{
		Asset:        asset,
		Side:         model.SideForDecision(d.Decision),
		Size:         filled,
		EntryPrice:   fillPrice,
		CurrentPrice: fillPrice,
		Leverage:     leverage,
		MarginUsed:   sizeUSD.Div(decimal.NewFromInt(int64(leverage))),
	}
	if err := b.Positions.AddPosition(pos, *d, action, tradeID); err != nil {
		log.WithError(err).Error("Filled entry could not be tracked")
	} else if tradeID != "" {
		b.trades[tradeID] = &openTrade{size: filled, realized: decimal.Zero}
	}
	b.Risk.UpdateDailyStats(decimal.Zero)
	monitoring.RecordTrade(asset, req.Side, "entry", sizeUSD.InexactFloat64())

	if logErr != nil {
		return true, persistence(logErr)
	}
	return true, nil
}

func (b *Bot) executeClose(ctx context.Context, asset string, d *model.TradingDecision) (bool, error) {
	pos, tracked := b.Positions.GetPosition(asset)
	want := model.SideLong
	if d.Decision == model.DecisionCloseShort {
		want = model.SideShort
	}
	if !tracked || pos.Side != want {
		logger.WithFields(map[string]interface{}{
			"asset":    asset,
			"decision": d.Decision,
		}).Info("No matching tracked position to close")
		return false, nil
	}
	if err := b.closePosition(ctx, asset, "close"); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Bot) executeReduce(ctx context.Context, asset string, d *model.TradingDecision) (bool, error) {
	pos, tracked := b.Positions.GetPosition(asset)
	want := model.SideLong
	if d.Decision == model.DecisionReduceShort {
		want = model.SideShort
	}
	if !tracked || pos.Side != want {
		logger.WithField("asset", asset).Info("No matching tracked position to reduce")
		return false, nil
	}
	if err := b.reduce(ctx, asset, b.cfg.ReduceFraction, pos.CurrentPrice, "reduce"); err != nil {
		return false, err
	}
	return true, nil
}

// reduce closes fraction of the tracked size with a reduce-only market
// order. A fraction of 1 or more closes the whole position; a non-positive
// one does nothing.
func (b *Bot) reduce(ctx context.Context, asset string, fraction float64, fallbackPrice decimal.Decimal, kind string) error {
	pos, ok := b.Positions.GetPosition(asset)
	if !ok || fraction <= 0 {
		return nil
	}
	if fraction >= 1 {
		return b.closePosition(ctx, asset, kind)
	}
	meta, _ := b.Positions.Metadata(asset)

	closeSize := pos.Size.Mul(decimal.NewFromFloat(fraction)).Truncate(8)
	if !closeSize.IsPositive() {
		return nil
	}
	res, err := b.Orders.PlaceOrder(ctx, model.OrderRequest{
		Asset:      asset,
		Side:       exitSide(pos.Side),
		Size:       closeSize,
		OrderType:  model.OrderTypeMarket,
		ReduceOnly: true,
		Leverage:   pos.Leverage,
		TradeID:    meta.TradeID,
	})
	if err != nil {
		return fmt.Errorf("%s order for %s: %w", kind, asset, err)
	}

	price, filled := fallbackPrice, closeSize
	if res.AvgPrice.IsPositive() {
		price = res.AvgPrice
	}
	if res.FilledSz.IsPositive() {
		filled = res.FilledSz
	}
	pnl := pnlOf(pos.Side, pos.EntryPrice, price, filled)

	trade := b.trade(meta.TradeID, pos.Size)
	trade.realized = trade.realized.Add(pnl)
	monitoring.RecordTrade(asset, exitSide(pos.Side), kind, 0)

	remaining := b.Positions.ReducePosition(asset, filled)
	logger.WithFields(map[string]interface{}{
		"asset":     asset,
		"kind":      kind,
		"closed":    filled.String(),
		"remaining": remaining.String(),
		"pnl":       pnl.StringFixed(2),
	}).Info("Partial close filled")

	if remaining.IsZero() {
		return b.settle(ctx, asset, meta.TradeID, pos.EntryPrice, price, decimal.Zero)
	}
	return nil
}

// closePosition flattens the asset and settles its trade.
func (b *Bot) closePosition(ctx context.Context, asset, kind string) error {
	pos, ok := b.Positions.GetPosition(asset)
	if !ok {
		return nil
	}
	meta, _ := b.Positions.Metadata(asset)

	price := pos.CurrentPrice
	res, err := b.Orders.ClosePosition(ctx, asset, meta.TradeID)
	switch {
	case errors.Is(err, connectors.ErrNoPosition):
		logger.WithField("asset", asset).Warn("Exchange shows no position, dropping local state")
	case err != nil:
		return fmt.Errorf("%s close for %s: %w", kind, asset, err)
	case res.AvgPrice.IsPositive():
		price = res.AvgPrice
	}

	b.Positions.RemovePosition(asset)
	monitoring.RecordTrade(asset, exitSide(pos.Side), kind, 0)
	logger.WithFields(map[string]interface{}{
		"asset": asset,
		"kind":  kind,
		"exit":  price.String(),
	}).Info("Position closed")

	return b.settle(ctx, asset, meta.TradeID, pos.EntryPrice, price, pnlOf(pos.Side, pos.EntryPrice, price, pos.Size))
}

// settle books the trade's total P&L (partials plus the final leg) with the
// risk manager and the performance ledger.
func (b *Bot) settle(ctx context.Context, asset, tradeID string, entry, exit, finalLeg decimal.Decimal) error {
	trade := b.trade(tradeID, decimal.Zero)
	delete(b.trades, tradeID)

	pnl := trade.realized.Add(finalLeg)
	pct := 0.0
	if basis := entry.Mul(trade.size); basis.IsPositive() {
		pct = pnl.Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	b.Risk.UpdateDailyStats(pnl)

	if tradeID == "" {
		logger.WithField("asset", asset).Warn("Closed position has no ledger entry")
		return nil
	}
	p := pendingClose{asset: asset, tradeID: tradeID, exit: exit, pnl: pnl, pnlPct: pct}
	if err := b.recordClose(ctx, p); err != nil {
		b.pending = append(b.pending, p)
		return err
	}
	return nil
}

func (b *Bot) recordClose(ctx context.Context, p pendingClose) error {
	err := b.Tracker.LogTradeClose(ctx, p.tradeID, p.exit, p.pnl, p.pnlPct)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTradeNotFound), errors.Is(err, performance.ErrTradeClosed):
		logger.WithField("trade_id", p.tradeID).WithError(err).Warn("Trade close not recorded")
		return nil
	default:
		return persistence(err)
	}
}

// retryPendingCloses books exits whose ledger write failed earlier, before
// the loss limits are consulted again.
func (b *Bot) retryPendingCloses(ctx context.Context) error {
	for len(b.pending) > 0 {
		p := b.pending[0]
		if err := b.recordClose(ctx, p); err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"asset":    p.asset,
			"trade_id": p.tradeID,
		}).Info("Pending trade close recorded")
		b.pending = b.pending[1:]
	}
	return nil
}

func (b *Bot) trade(tradeID string, size decimal.Decimal) *openTrade {
	t, ok := b.trades[tradeID]
	if !ok {
		t = &openTrade{size: size, realized: decimal.Zero}
		if tradeID != "" {
			b.trades[tradeID] = t
		}
	}
	return t
}

// closeAll flattens every tracked position. Failures are captured and the
// remaining positions are still attempted.
func (b *Bot) closeAll(ctx context.Context, kind string) error {
	var errs []error
	for _, pos := range b.Positions.Positions() {
		if err := b.closePosition(ctx, pos.Asset, kind); err != nil {
			if errors.Is(err, ErrPersistence) {
				errs = append(errs, err)
				continue
			}
			b.capture(ctx, "closeAll", err, map[string]interface{}{"asset": pos.Asset, "kind": kind})
		}
	}
	monitoring.UpdateOpenPositions(len(b.Positions.Positions()))
	return errors.Join(errs...)
}

func exitSide(side model.Side) string {
	if side == model.SideShort {
		return model.OrderSideBuy
	}
	return model.OrderSideSell
}

func pnlOf(side model.Side, entry, exit, size decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(entry)
	if side == model.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(size)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
