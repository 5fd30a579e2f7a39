package model

import "github.com/shopspring/decimal"

type Decision string

const (
	DecisionBuy         Decision = "BUY"
	DecisionSell        Decision = "SELL"
	DecisionHold        Decision = "HOLD"
	DecisionCloseLong   Decision = "CLOSE_LONG"
	DecisionCloseShort  Decision = "CLOSE_SHORT"
	DecisionReduceLong  Decision = "REDUCE_LONG"
	DecisionReduceShort Decision = "REDUCE_SHORT"
)

// IsEntry reports whether the decision opens or adds to a position.
func (d Decision) IsEntry() bool {
	return d == DecisionBuy || d == DecisionSell
}

func (d Decision) IsClose() bool {
	return d == DecisionCloseLong || d == DecisionCloseShort
}

func (d Decision) Valid() bool {
	switch d {
	case DecisionBuy, DecisionSell, DecisionHold,
		DecisionCloseLong, DecisionCloseShort,
		DecisionReduceLong, DecisionReduceShort:
		return true
	}
	return false
}

type SetupQuality string

const (
	SetupAPlus   SetupQuality = "A+"
	SetupA       SetupQuality = "A"
	SetupB       SetupQuality = "B"
	SetupC       SetupQuality = "C"
	SetupNoSetup SetupQuality = "NO_SETUP"
)

func (q SetupQuality) Valid() bool {
	switch q {
	case SetupAPlus, SetupA, SetupB, SetupC, SetupNoSetup:
		return true
	}
	return false
}

type Regime string

const (
	RegimeTrendingBull   Regime = "TRENDING_BULL"
	RegimeTrendingBear   Regime = "TRENDING_BEAR"
	RegimeRanging        Regime = "RANGING"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeLowVolatility  Regime = "LOW_VOLATILITY"
	RegimeBreakout       Regime = "BREAKOUT"
	RegimeBreakdown      Regime = "BREAKDOWN"
)

func (r Regime) Valid() bool {
	switch r {
	case RegimeTrendingBull, RegimeTrendingBear, RegimeRanging, RegimeHighVolatility,
		RegimeLowVolatility, RegimeBreakout, RegimeBreakdown:
		return true
	}
	return false
}

type LiquidityCheck string

const (
	LiquidityPass     LiquidityCheck = "PASS"
	LiquidityMarginal LiquidityCheck = "MARGINAL"
	LiquidityFail     LiquidityCheck = "FAIL"
)

func (l LiquidityCheck) Valid() bool {
	return l == LiquidityPass || l == LiquidityMarginal || l == LiquidityFail
}

type MarketRegime struct {
	Primary   Regime  `json:"primary"`
	Strength  float64 `json:"strength"`
	Alignment bool    `json:"timeframe_alignment"`
}

type RiskAssessment struct {
	LiquidityCheck       LiquidityCheck `json:"liquidity_check"`
	RiskRewardRatio      float64        `json:"risk_reward_ratio"`
	MarginSafety         float64        `json:"margin_safety"`
	PositionSizeModifier float64        `json:"position_size_modifier"`
	OverallRisk          string         `json:"overall_risk,omitempty"`
}

type StopLoss struct {
	Price       decimal.Decimal `json:"price"`
	DistancePct float64         `json:"distance_pct"`
	Reasoning   string          `json:"reasoning,omitempty"`
}

type TakeProfitTarget struct {
	Target          string          `json:"target"`
	Price           decimal.Decimal `json:"price"`
	ClosePercentage float64         `json:"close_percentage"`
	RiskReward      float64         `json:"rr_ratio"`
	Reasoning       string          `json:"reasoning,omitempty"`
}

type TrailingStop struct {
	ActivateAtR float64 `json:"activate_at_r"`
	TrailByR    float64 `json:"trail_by_r"`
	Method      string  `json:"method,omitempty"`
}

type SuggestedAction struct {
	Type              string             `json:"type"`
	Side              string             `json:"side"`
	Quantity          decimal.Decimal    `json:"quantity"`
	EntryPrice        decimal.Decimal    `json:"entry_price"`
	StopLoss          StopLoss           `json:"stop_loss"`
	TakeProfitTargets []TakeProfitTarget `json:"take_profit_targets"`
	TrailingStop      *TrailingStop      `json:"trailing_stop,omitempty"`
}

// Notional is the quote value of the suggested entry.
func (a *SuggestedAction) Notional() decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return a.Quantity.Mul(a.EntryPrice).Abs()
}

// TradingDecision is the validated output of a decision source.
type TradingDecision struct {
	Decision        Decision         `json:"decision"`
	Confidence      float64          `json:"confidence"`
	ConfluenceScore int              `json:"confluence_score"`
	SetupQuality    SetupQuality     `json:"setup_quality"`
	MarketRegime    MarketRegime     `json:"market_regime"`
	RiskAssessment  RiskAssessment   `json:"risk_assessment"`
	Reasoning       string           `json:"reasoning"`
	SuggestedAction *SuggestedAction `json:"suggested_action,omitempty"`
}
