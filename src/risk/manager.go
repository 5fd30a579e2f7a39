package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perptrader/src/model"
)

const (
	highVolatilityATR   = 3.0
	fallbackStopPct     = 0.03
	highVolExposureMult = 0.6
	rangingExposureMult = 0.7
)

// Manager sizes trades, gates them and keeps the peak-equity and daily
// counters the gate needs.
type Manager struct {
	cfg        Config
	correlator Correlator
	logger     *logrus.Entry
	now        func() time.Time

	mu          sync.Mutex
	dailyTrades int
	dailyPnL    decimal.Decimal
	peakEquity  decimal.Decimal
	lastEquity  decimal.Decimal
	lastTradeAt map[string]time.Time
}

func NewManager(cfg Config, correlator Correlator) *Manager {
	if correlator == nil {
		correlator = NewGroupCorrelator(DefaultSectors())
	}
	return &Manager{
		cfg:         cfg,
		correlator:  correlator,
		logger:      logrus.WithField("component", "risk_manager"),
		now:         time.Now,
		lastTradeAt: map[string]time.Time{},
	}
}

// CalculatePositionSize returns the USD notional for a new entry and a
// human readable rationale. It never returns more than
// min(MaxPositionSize, equity*MaxExposure) and never a negative value.
func (m *Manager) CalculatePositionSize(d *model.TradingDecision, p model.Portfolio, volatility float64) (decimal.Decimal, string) {
	equity := p.TotalValue
	if !equity.IsPositive() {
		return decimal.Zero, "Invalid equity, no position"
	}

	m.mu.Lock()
	peak := m.peakEquity
	m.mu.Unlock()

	fraction := m.cfg.RiskPerTrade
	switch {
	case d.Confidence > 0.75:
	case d.Confidence > 0.65:
		fraction *= 0.75
	default:
		fraction *= 0.5
	}

	volNote := "Normal volatility"
	if volatility > highVolatilityATR {
		fraction *= 0.5
		volNote = "High volatility: reduced size by 50%"
	}

	regimeNote := "Trending market"
	switch d.MarketRegime.Primary {
	case model.RegimeRanging:
		fraction *= 0.5
		regimeNote = "Ranging market: reduced size"
	case model.RegimeHighVolatility:
		fraction *= 0.6
		regimeNote = "High volatility regime: reduced size"
	}

	ddNote := "No significant drawdown"
	if peak.IsPositive() {
		switch {
		case equity.LessThan(peak.Mul(decimal.NewFromFloat(0.85))):
			fraction *= 0.3
			ddNote = "Significant drawdown: reduced size by 70%"
		case equity.LessThan(peak.Mul(decimal.NewFromFloat(0.9))):
			fraction *= 0.5
			ddNote = "In drawdown: reduced size by 50%"
		}
	}

	fraction *= d.RiskAssessment.PositionSizeModifier
	if fraction < 0 || math.IsNaN(fraction) {
		fraction = 0
	}

	dollarRisk := equity.Mul(decimal.NewFromFloat(fraction))
	maxPosition := decimal.Min(m.cfg.MaxPositionSize, equity.Mul(decimal.NewFromFloat(m.cfg.MaxExposure)))
	if maxPosition.IsNegative() {
		maxPosition = decimal.Zero
	}

	var stopPct float64
	if d.SuggestedAction != nil {
		stopPct = d.SuggestedAction.StopLoss.DistancePct / 100
	}
	if stopPct <= 0 {
		size := decimal.Min(dollarRisk.Div(decimal.NewFromFloat(fallbackStopPct)), maxPosition)
		return size, "No stop loss defined, using conservative sizing"
	}

	size := decimal.Min(dollarRisk.Div(decimal.NewFromFloat(stopPct)), maxPosition)
	reason := fmt.Sprintf("Risk: %.2f%% ($%s). %s. %s. %s. Max position: $%s",
		fraction*100, dollarRisk.StringFixed(0), volNote, regimeNote, ddNote, maxPosition.StringFixed(0))
	return size, reason
}

// ValidateTrade runs the ordered risk gate. The first failing check wins.
func (m *Manager) ValidateTrade(d *model.TradingDecision, p model.Portfolio, asset string) (bool, string) {
	if d == nil {
		return false, "Missing decision"
	}
	if d.Decision == model.DecisionHold {
		return true, "HOLD decision"
	}
	if !d.Decision.Valid() {
		return false, fmt.Sprintf("Unknown decision %q", d.Decision)
	}
	entry := d.Decision.IsEntry()
	if entry && d.SuggestedAction == nil {
		return false, "Missing suggested action"
	}
	if !p.TotalValue.IsPositive() {
		return false, "Invalid portfolio equity"
	}

	m.mu.Lock()
	dailyPnL := m.dailyPnL
	peak := m.peakEquity
	lastTrade, traded := m.lastTradeAt[asset]
	m.mu.Unlock()

	if entry && !p.HasPosition(asset) && traded {
		elapsed := m.now().Sub(lastTrade)
		if elapsed < m.cfg.TradeCooldown {
			remaining := m.cfg.TradeCooldown - elapsed
			waitMin := int(remaining/time.Minute) + 1
			return false, fmt.Sprintf("Cooldown active for %s: wait ~%d min", asset, waitMin)
		}
	}

	lossLimit := p.TotalValue.Mul(decimal.NewFromFloat(m.cfg.DailyLossLimit))
	if dailyPnL.LessThan(lossLimit.Neg()) {
		return false, fmt.Sprintf("Daily loss limit reached ($%s)", lossLimit.StringFixed(0))
	}

	if peak.IsPositive() {
		dd := peak.Sub(p.TotalValue).Div(peak).InexactFloat64()
		if dd > m.cfg.MaxDrawdown {
			return false, fmt.Sprintf("Maximum drawdown exceeded (%.1f%%)", dd*100)
		}
	}

	if p.AvailableBalance.LessThan(m.cfg.MinAvailableBalance) {
		return false, "Insufficient balance"
	}

	if len(p.Positions) >= m.cfg.MaxConcurrentPositions && !d.Decision.IsClose() {
		return false, fmt.Sprintf("Max concurrent positions reached (%d)", m.cfg.MaxConcurrentPositions)
	}

	if entry {
		if ok, msg := m.CheckExposure(p, d.MarketRegime.Primary, d.SuggestedAction.Notional()); !ok {
			return false, msg
		}
	}

	if d.RiskAssessment.LiquidityCheck == model.LiquidityFail {
		return false, "Liquidity check failed"
	}

	if d.RiskAssessment.MarginSafety < m.cfg.MinMarginSafety {
		return false, fmt.Sprintf("Margin safety too low (%.1f%%)", d.RiskAssessment.MarginSafety)
	}

	if d.RiskAssessment.RiskRewardRatio < m.cfg.MinRiskReward {
		return false, fmt.Sprintf("R:R ratio too low (%.2f)", d.RiskAssessment.RiskRewardRatio)
	}

	if entry && len(p.Positions) > 0 {
		correlated := 0
		for _, pos := range p.Positions {
			if m.correlator.IsCorrelated(pos.Asset, asset) {
				correlated++
			}
		}
		if correlated >= m.cfg.MaxCorrelatedPositions {
			return false, fmt.Sprintf("Too many correlated positions (%d)", correlated)
		}
	}

	return true, "All risk checks passed"
}

// CheckExposure gates a proposed notional against the regime exposure cap.
// Landing exactly on the cap is allowed.
func (m *Manager) CheckExposure(p model.Portfolio, regime model.Regime, proposed decimal.Decimal) (bool, string) {
	maxExposure := m.maxExposureFor(regime)
	if m.newExposure(p, proposed).GreaterThan(maxExposure) {
		return false, fmt.Sprintf("Would exceed max exposure (%s%%)", maxExposure.Mul(decimal.NewFromInt(100)).StringFixed(0))
	}
	return true, ""
}

func (m *Manager) maxExposureFor(regime model.Regime) decimal.Decimal {
	limit := decimal.NewFromFloat(m.cfg.MaxExposure)
	switch regime {
	case model.RegimeHighVolatility:
		return limit.Mul(decimal.NewFromFloat(highVolExposureMult))
	case model.RegimeRanging:
		return limit.Mul(decimal.NewFromFloat(rangingExposureMult))
	}
	return limit
}

func (m *Manager) newExposure(p model.Portfolio, proposed decimal.Decimal) decimal.Decimal {
	if !p.TotalValue.IsPositive() {
		return decimal.Zero
	}
	return p.TotalNotional().Add(proposed.Abs()).Div(p.TotalValue)
}

// CalculateNewExposure returns (open notional + proposed notional) / equity.
func (m *Manager) CalculateNewExposure(p model.Portfolio, proposed decimal.Decimal) float64 {
	return m.newExposure(p, proposed).InexactFloat64()
}

// CalculateLeverage picks the tier cap and halves it for high volatility and
// again for low confidence, never going below 1x.
func (m *Manager) CalculateLeverage(asset string, volatility, confidence float64) int {
	lev := m.cfg.AltMaxLeverage
	if IsMajor(asset) {
		lev = m.cfg.MajorMaxLeverage
	}
	if volatility > highVolatilityATR {
		lev = maxInt(1, lev/2)
	}
	if confidence < 0.7 {
		lev = maxInt(1, lev/2)
	}
	return maxInt(1, lev)
}

// ShouldReducePosition flags positions that are deep underwater or sitting
// close to their stop or liquidation price.
func (m *Manager) ShouldReducePosition(pos model.Position, price decimal.Decimal) (bool, string) {
	if pos.UnrealizedPnLPct < -3.0 {
		return true, fmt.Sprintf("Position down %.2f%%", pos.UnrealizedPnLPct)
	}
	if !price.IsPositive() {
		return false, ""
	}
	if pos.StopLoss.Valid {
		dist := price.Sub(pos.StopLoss.Decimal).Abs().Div(price).InexactFloat64()
		if dist < 0.005 {
			return true, "Price within 0.5% of stop loss"
		}
	}
	if pos.LiquidationPrice.Valid && pos.LiquidationPrice.Decimal.IsPositive() {
		dist := price.Sub(pos.LiquidationPrice.Decimal).Abs().Div(price).InexactFloat64()
		if dist < 0.10 {
			return true, "Price within 10% of liquidation"
		}
	}
	return false, ""
}

// UpdatePeakEquity records the latest equity. Peak only ever moves up.
func (m *Manager) UpdatePeakEquity(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEquity = equity
	if equity.GreaterThan(m.peakEquity) {
		m.peakEquity = equity
	}
}

func (m *Manager) PeakEquity() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakEquity
}

// CurrentDrawdown is the fractional drop of equity from peak.
func (m *Manager) CurrentDrawdown(equity decimal.Decimal) float64 {
	m.mu.Lock()
	peak := m.peakEquity
	m.mu.Unlock()
	if !peak.IsPositive() {
		return 0
	}
	return peak.Sub(equity).Div(peak).InexactFloat64()
}

// EmergencyStop is true once the last observed equity is more than the
// emergency threshold below peak.
func (m *Manager) EmergencyStop() bool {
	m.mu.Lock()
	last := m.lastEquity
	m.mu.Unlock()
	dd := m.CurrentDrawdown(last)
	if dd > m.cfg.EmergencyDrawdown {
		m.logger.WithFields(logrus.Fields{
			"drawdown_pct": dd * 100,
			"equity":       last.String(),
		}).Error("emergency stop triggered")
		return true
	}
	return false
}

// MarkAssetTrade starts the per-asset entry cooldown.
func (m *Manager) MarkAssetTrade(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTradeAt[asset] = m.now()
}

func (m *Manager) UpdateDailyStats(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyTrades++
	m.dailyPnL = m.dailyPnL.Add(pnl)
}

func (m *Manager) ResetDailyStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyTrades = 0
	m.dailyPnL = decimal.Zero
}

func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
