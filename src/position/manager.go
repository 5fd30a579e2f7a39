package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perptrader/src/model"
	"perptrader/src/tp_sl"
)

var (
	ErrPositionExists = errors.New("position already tracked for asset")
	ErrInvalidAction  = errors.New("suggested action is required")
	ErrInvalidSize    = errors.New("position size must be positive")
)

// TakeProfitHit describes a target that triggered on the latest price.
type TakeProfitHit struct {
	Level           int             `json:"tp_level"`
	Price           decimal.Decimal `json:"tp_price"`
	ClosePercentage float64         `json:"percentage_to_close"`
	RiskReward      float64         `json:"rr_ratio"`
	Reasoning       string          `json:"reasoning"`
}

type Stats struct {
	Asset            string              `json:"asset"`
	Side             model.Side          `json:"side"`
	Size             decimal.Decimal     `json:"size"`
	EntryPrice       decimal.Decimal     `json:"entry_price"`
	CurrentPrice     decimal.Decimal     `json:"current_price"`
	UnrealizedPnL    decimal.Decimal     `json:"unrealized_pnl"`
	UnrealizedPnLPct float64             `json:"unrealized_pnl_pct"`
	DurationHours    float64             `json:"duration_hours"`
	TPLevelsHit      []int               `json:"tp_levels_hit"`
	TrailingActive   bool                `json:"trailing_stop_active"`
	StopLoss         decimal.NullDecimal `json:"stop_loss"`
	TradeID          string              `json:"trade_id,omitempty"`
}

type tracked struct {
	pos  model.Position
	meta model.PositionMetadata
}

// Manager tracks the bot's own view of open positions and runs the exit
// state machine (stop, take-profit ladder, trailing stop, time exit).
// At most one position per asset.
type Manager struct {
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time

	mu        sync.RWMutex
	positions map[string]*tracked
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logrus.WithField("component", "position_manager"),
		now:       time.Now,
		positions: map[string]*tracked{},
	}
}

// AddPosition registers a freshly opened position together with the decision
// and action that produced it.
func (m *Manager) AddPosition(p model.Position, decision model.TradingDecision, action *model.SuggestedAction, tradeID string) error {
	if action == nil {
		return ErrInvalidAction
	}
	if !p.Size.IsPositive() {
		return ErrInvalidSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[p.Asset]; ok {
		return fmt.Errorf("%w: %s", ErrPositionExists, p.Asset)
	}

	p.EntryTime = m.now()
	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = p.EntryPrice
	}

	slots := []*decimal.NullDecimal{&p.TakeProfit1, &p.TakeProfit2, &p.TakeProfit3}
	for i, tp := range action.TakeProfitTargets {
		if i >= len(slots) {
			break
		}
		*slots[i] = decimal.NewNullDecimal(tp.Price)
	}

	var originalStop decimal.NullDecimal
	if action.StopLoss.Price.IsPositive() {
		originalStop = decimal.NewNullDecimal(action.StopLoss.Price)
	}
	p.StopLoss = originalStop

	m.positions[p.Asset] = &tracked{
		pos: p,
		meta: model.PositionMetadata{
			Decision:     decision,
			Action:       *action,
			TradeID:      tradeID,
			OriginalStop: originalStop,
			TPLevelsHit:  []int{},
		},
	}

	m.logger.WithFields(map[string]interface{}{
		"asset":    p.Asset,
		"side":     p.Side,
		"size":     p.Size.String(),
		"entry":    p.EntryPrice.String(),
		"trade_id": tradeID,
	}).Info("position added")
	return nil
}

// UpdatePosition marks the position to market. Returns false for unknown assets.
func (m *Manager) UpdatePosition(asset string, price decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.positions[asset]
	if !ok {
		return false
	}
	p := &t.pos
	p.CurrentPrice = price

	diff := price.Sub(p.EntryPrice)
	if p.Side == model.SideShort {
		diff = diff.Neg()
	}
	p.UnrealizedPnL = diff.Mul(p.Size)

	basis := p.EntryPrice.Mul(p.Size)
	if basis.IsPositive() {
		p.UnrealizedPnLPct = p.UnrealizedPnL.Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()
	} else {
		p.UnrealizedPnLPct = 0
	}
	return true
}

// CheckTakeProfitLevels returns the first not-yet-hit target that the current
// price satisfies and marks it hit. Each level fires at most once.
func (m *Manager) CheckTakeProfitLevels(asset string) *TakeProfitHit {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.positions[asset]
	if !ok {
		return nil
	}

	for i, target := range t.meta.Action.TakeProfitTargets {
		level := i + 1
		if t.meta.LevelHit(level) {
			continue
		}
		if !tp_sl.TargetReached(t.pos.Side, t.pos.CurrentPrice, target.Price) {
			continue
		}
		t.meta.TPLevelsHit = append(t.meta.TPLevelsHit, level)

		m.logger.WithFields(map[string]interface{}{
			"asset": asset,
			"level": level,
			"price": target.Price.String(),
			"rr":    target.RiskReward,
		}).Info("take profit hit")

		return &TakeProfitHit{
			Level:           level,
			Price:           target.Price,
			ClosePercentage: target.ClosePercentage,
			RiskReward:      target.RiskReward,
			Reasoning:       target.Reasoning,
		}
	}
	return nil
}

// CheckStopLoss compares the current price with the live (possibly trailed) stop.
func (m *Manager) CheckStopLoss(asset string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.positions[asset]
	if !ok || !t.pos.StopLoss.Valid {
		return false
	}
	hit := tp_sl.StopBreached(t.pos.Side, t.pos.CurrentPrice, t.pos.StopLoss.Decimal)
	if hit {
		m.logger.WithFields(map[string]interface{}{
			"asset":   asset,
			"stop":    t.pos.StopLoss.Decimal.String(),
			"current": t.pos.CurrentPrice.String(),
		}).Warn("stop loss hit")
	}
	return hit
}

// UpdateTrailingStop activates the trailing stop once open profit reaches the
// activation R and then ratchets the stop in the favourable direction only.
// Returns true when the stop moved.
func (m *Manager) UpdateTrailingStop(asset string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.positions[asset]
	if !ok || !t.meta.OriginalStop.Valid {
		return false
	}
	risk, ok := tp_sl.RiskUnit(t.pos.EntryPrice, t.meta.OriginalStop.Decimal)
	if !ok {
		return false
	}

	activateR, trailR := m.cfg.DefaultActivateR, m.cfg.DefaultTrailR
	if ts := t.meta.Action.TrailingStop; ts != nil {
		activateR, trailR = ts.ActivateAtR, ts.TrailByR
	}

	currentR := tp_sl.RMultiple(t.pos.Side, t.pos.EntryPrice, t.pos.CurrentPrice, risk)
	if !t.meta.TrailingActive && currentR.GreaterThanOrEqual(decimal.NewFromFloat(activateR)) {
		t.meta.TrailingActive = true
		m.logger.WithFields(map[string]interface{}{
			"asset":     asset,
			"current_r": currentR.StringFixed(2),
		}).Info("trailing stop activated")
	}
	if !t.meta.TrailingActive {
		return false
	}

	newSL, moved := tp_sl.NextTrailingStop(t.pos.Side, t.pos.CurrentPrice, t.pos.StopLoss, risk, trailR)
	if !moved {
		return false
	}
	t.pos.StopLoss = decimal.NewNullDecimal(newSL)
	t.meta.TrailingPrice = decimal.NewNullDecimal(newSL)
	m.logger.WithFields(map[string]interface{}{
		"asset": asset,
		"stop":  newSL.String(),
	}).Debug("trailing stop updated")
	return true
}

// ShouldCloseByTime is true for a position older than maxDuration whose P&L
// is still inside the flat band. maxDuration <= 0 uses the configured default.
func (m *Manager) ShouldCloseByTime(asset string, maxDuration time.Duration) bool {
	if maxDuration <= 0 {
		maxDuration = m.cfg.MaxHoldDuration
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.positions[asset]
	if !ok {
		return false
	}
	age := m.now().Sub(t.pos.EntryTime)
	pnl := t.pos.UnrealizedPnLPct
	if pnl < 0 {
		pnl = -pnl
	}
	if age > maxDuration && pnl < m.cfg.FlatPnLThreshold {
		m.logger.WithFields(map[string]interface{}{
			"asset":          asset,
			"duration_hours": age.Hours(),
		}).Info("stagnant position held too long")
		return true
	}
	return false
}

// ReducePosition shrinks the tracked size after a partial close. A position
// reduced to zero is removed. Returns the remaining size.
func (m *Manager) ReducePosition(asset string, closeSize decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.positions[asset]
	if !ok {
		return decimal.Zero
	}
	remaining := t.pos.Size.Sub(closeSize)
	if !remaining.IsPositive() {
		delete(m.positions, asset)
		return decimal.Zero
	}
	t.pos.Size = remaining
	return remaining
}

// RemovePosition forgets the asset. Safe to call for unknown assets.
func (m *Manager) RemovePosition(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[asset]; ok {
		delete(m.positions, asset)
		m.logger.WithField("asset", asset).Info("position removed")
	}
}

func (m *Manager) GetPosition(asset string) (model.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.positions[asset]
	if !ok {
		return model.Position{}, false
	}
	return t.pos, true
}

func (m *Manager) Metadata(asset string) (model.PositionMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.positions[asset]
	if !ok {
		return model.PositionMetadata{}, false
	}
	meta := t.meta
	meta.TPLevelsHit = append([]int(nil), t.meta.TPLevelsHit...)
	return meta, true
}

// Positions returns a snapshot of all tracked positions ordered by asset.
func (m *Manager) Positions() []model.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, t := range m.positions {
		out = append(out, t.pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (m *Manager) GetPositionStats(asset string) (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.positions[asset]
	if !ok {
		return Stats{}, false
	}
	return Stats{
		Asset:            asset,
		Side:             t.pos.Side,
		Size:             t.pos.Size,
		EntryPrice:       t.pos.EntryPrice,
		CurrentPrice:     t.pos.CurrentPrice,
		UnrealizedPnL:    t.pos.UnrealizedPnL,
		UnrealizedPnLPct: t.pos.UnrealizedPnLPct,
		DurationHours:    m.now().Sub(t.pos.EntryTime).Hours(),
		TPLevelsHit:      append([]int(nil), t.meta.TPLevelsHit...),
		TrailingActive:   t.meta.TrailingActive,
		StopLoss:         t.pos.StopLoss,
		TradeID:          t.meta.TradeID,
	}, true
}

// DetectDrift lists assets tracked locally that the exchange snapshot no
// longer shows, e.g. closed by liquidation or by hand.
func (m *Manager) DetectDrift(p model.Portfolio) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var drift []string
	for asset := range m.positions {
		if !p.HasPosition(asset) {
			drift = append(drift, asset)
		}
	}
	sort.Strings(drift)
	return drift
}
