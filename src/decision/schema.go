package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"perptrader/src/model"
)

// Supported payload versions. Version 1 carries explicit stop_loss and
// take_profit_targets objects; version 2 is the concise level-based shape
// (entry_level, invalidation_level, tp_levels).
const (
	SchemaV1 = "1"
	SchemaV2 = "2"
)

var (
	ErrUnsupportedSchema = errors.New("unsupported decision schema version")
	ErrMalformedPayload  = errors.New("malformed decision payload")
)

// header is the part of the payload shared by every version.
type header struct {
	SchemaVersion   string          `json:"schema_version"`
	Decision        string          `json:"decision"`
	Confidence      *float64        `json:"confidence"`
	ConfluenceScore int             `json:"confluence_score"`
	SetupQuality    string          `json:"setup_quality"`
	MarketRegime    wireRegime      `json:"market_regime"`
	RiskAssessment  wireRisk        `json:"risk_assessment"`
	Reasoning       string          `json:"reasoning"`
	Rationale       string          `json:"rationale"`
	Evidence        []string        `json:"evidence"`
	SuggestedAction json.RawMessage `json:"suggested_action"`
}

type wireRegime struct {
	Primary   string  `json:"primary"`
	Strength  float64 `json:"strength"`
	Alignment bool    `json:"regime_aligned"`
}

type wireRisk struct {
	LiquidityCheck       string   `json:"liquidity_check"`
	RiskRewardRatio      float64  `json:"risk_reward_ratio"`
	MarginSafety         *float64 `json:"margin_safety"`
	PositionSizeModifier *float64 `json:"position_size_modifier"`
	OverallRisk          string   `json:"overall_risk"`
}

type wireActionV1 struct {
	Type     string          `json:"type"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Entry    decimal.Decimal `json:"entry_price"`
	StopLoss struct {
		Price       decimal.Decimal `json:"price"`
		DistancePct float64         `json:"distance_pct"`
		Reasoning   string          `json:"reasoning"`
	} `json:"stop_loss"`
	Targets []struct {
		Target    json.RawMessage `json:"target"`
		Price     decimal.Decimal `json:"price"`
		ClosePct  *float64        `json:"percentage_to_close"`
		RR        float64         `json:"rr_ratio"`
		Reasoning string          `json:"reasoning"`
	} `json:"take_profit_targets"`
	Trailing *struct {
		ActivateAtRR float64 `json:"activate_at_rr"`
		TrailAtRR    float64 `json:"trail_at_rr"`
		Method       string  `json:"method"`
	} `json:"trailing_stop"`
}

type wireActionV2 struct {
	Type         string             `json:"type"`
	Side         string             `json:"side"`
	Quantity     decimal.Decimal    `json:"quantity"`
	EntryLevel   decimal.Decimal    `json:"entry_level"`
	Invalidation decimal.Decimal    `json:"invalidation_level"`
	TPLevels     []decimal.Decimal  `json:"tp_levels"`
	RRSnapshot   map[string]float64 `json:"rr_snapshot"`
}

const maxTargets = 3

// Parse decodes a raw decision payload, dispatching on schema_version, and
// rejects anything that does not describe a well-formed decision.
func Parse(raw []byte) (*model.TradingDecision, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var parseAction func(json.RawMessage) (*model.SuggestedAction, error)
	switch strings.TrimSpace(h.SchemaVersion) {
	case SchemaV1:
		parseAction = parseActionV1
	case SchemaV2:
		parseAction = parseActionV2
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSchema, h.SchemaVersion)
	}

	d, err := h.toDecision()
	if err != nil {
		return nil, err
	}

	// HOLD never carries an action
	if d.Decision != model.DecisionHold && !isEmpty(h.SuggestedAction) {
		action, err := parseAction(h.SuggestedAction)
		if err != nil {
			return nil, err
		}
		if d.Decision.IsEntry() {
			if action.Side != model.OrderSideForDecision(d.Decision) {
				return nil, malformed("action side %s contradicts decision %s", action.Side, d.Decision)
			}
			if err := checkLevels(action); err != nil {
				return nil, err
			}
		}
		d.SuggestedAction = action
	}
	return d, nil
}

func (h *header) toDecision() (*model.TradingDecision, error) {
	dec := model.Decision(strings.ToUpper(strings.TrimSpace(h.Decision)))
	if !dec.Valid() {
		return nil, malformed("unknown decision %q", h.Decision)
	}
	if h.Confidence == nil {
		return nil, malformed("confidence is required")
	}
	if *h.Confidence < 0 || *h.Confidence > 1 {
		return nil, malformed("confidence %.2f out of range", *h.Confidence)
	}
	if h.ConfluenceScore < 0 || h.ConfluenceScore > 10 {
		return nil, malformed("confluence score %d out of range", h.ConfluenceScore)
	}

	quality := normalizeQuality(h.SetupQuality)
	if !quality.Valid() {
		return nil, malformed("unknown setup quality %q", h.SetupQuality)
	}

	regime := model.Regime(strings.ToUpper(strings.TrimSpace(h.MarketRegime.Primary)))
	if regime == "" {
		regime = model.RegimeRanging
	}
	if !regime.Valid() {
		return nil, malformed("unknown regime %q", h.MarketRegime.Primary)
	}

	risk, err := h.RiskAssessment.toModel()
	if err != nil {
		return nil, err
	}

	return &model.TradingDecision{
		Decision:        dec,
		Confidence:      *h.Confidence,
		ConfluenceScore: h.ConfluenceScore,
		SetupQuality:    quality,
		MarketRegime: model.MarketRegime{
			Primary:   regime,
			Strength:  h.MarketRegime.Strength,
			Alignment: h.MarketRegime.Alignment,
		},
		RiskAssessment: risk,
		Reasoning:      h.reasoning(),
	}, nil
}

func (r wireRisk) toModel() (model.RiskAssessment, error) {
	out := model.RiskAssessment{
		LiquidityCheck:       model.LiquidityPass,
		RiskRewardRatio:      r.RiskRewardRatio,
		MarginSafety:         100,
		PositionSizeModifier: 1,
		OverallRisk:          "MEDIUM",
	}
	if r.LiquidityCheck != "" {
		out.LiquidityCheck = model.LiquidityCheck(strings.ToUpper(strings.TrimSpace(r.LiquidityCheck)))
		if !out.LiquidityCheck.Valid() {
			return out, malformed("unknown liquidity check %q", r.LiquidityCheck)
		}
	}
	if r.MarginSafety != nil {
		out.MarginSafety = *r.MarginSafety
	}
	if r.PositionSizeModifier != nil {
		if *r.PositionSizeModifier < 0 {
			return out, malformed("negative position size modifier")
		}
		out.PositionSizeModifier = *r.PositionSizeModifier
	}
	if r.OverallRisk != "" {
		out.OverallRisk = strings.ToUpper(r.OverallRisk)
	}
	return out, nil
}

// reasoning falls back to rationale plus evidence bullets.
func (h *header) reasoning() string {
	if h.Reasoning != "" {
		return h.Reasoning
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(h.Rationale))
	for _, e := range h.Evidence {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(e)
	}
	return b.String()
}

func parseActionV1(raw json.RawMessage) (*model.SuggestedAction, error) {
	var w wireActionV1
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: suggested_action: %v", ErrMalformedPayload, err)
	}

	action := &model.SuggestedAction{
		Quantity:   w.Quantity,
		EntryPrice: w.Entry,
		StopLoss: model.StopLoss{
			Price:       w.StopLoss.Price,
			DistancePct: w.StopLoss.DistancePct,
			Reasoning:   w.StopLoss.Reasoning,
		},
	}
	if err := fillOrderFields(action, w.Type, w.Side); err != nil {
		return nil, err
	}

	for i, t := range w.Targets {
		if i == maxTargets {
			break
		}
		closePct := 100.0
		if t.ClosePct != nil {
			closePct = *t.ClosePct
		}
		if closePct <= 0 || closePct > 100 {
			return nil, malformed("take profit close percentage %.1f out of range", closePct)
		}
		action.TakeProfitTargets = append(action.TakeProfitTargets, model.TakeProfitTarget{
			Target:          targetLabel(t.Target, i),
			Price:           t.Price,
			ClosePercentage: closePct,
			RiskReward:      t.RR,
			Reasoning:       t.Reasoning,
		})
	}

	if w.Trailing != nil {
		action.TrailingStop = &model.TrailingStop{
			ActivateAtR: w.Trailing.ActivateAtRR,
			TrailByR:    w.Trailing.TrailAtRR,
			Method:      w.Trailing.Method,
		}
	}
	return finishAction(action)
}

func parseActionV2(raw json.RawMessage) (*model.SuggestedAction, error) {
	var w wireActionV2
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: suggested_action: %v", ErrMalformedPayload, err)
	}

	action := &model.SuggestedAction{
		Quantity:   w.Quantity,
		EntryPrice: w.EntryLevel,
		StopLoss: model.StopLoss{
			Price:     w.Invalidation,
			Reasoning: "invalidation_level",
		},
		TrailingStop: &model.TrailingStop{ActivateAtR: 2, TrailByR: 1, Method: "EMA_20"},
	}
	if err := fillOrderFields(action, w.Type, w.Side); err != nil {
		return nil, err
	}

	for i, price := range w.TPLevels {
		if i == maxTargets {
			break
		}
		label := fmt.Sprintf("tp%d", i+1)
		action.TakeProfitTargets = append(action.TakeProfitTargets, model.TakeProfitTarget{
			Target:          strings.ToUpper(label),
			Price:           price,
			ClosePercentage: 33,
			RiskReward:      w.RRSnapshot[label],
			Reasoning:       "level",
		})
	}
	return finishAction(action)
}

func fillOrderFields(action *model.SuggestedAction, orderType, side string) error {
	action.Type = strings.ToUpper(strings.TrimSpace(orderType))
	if action.Type == "" {
		action.Type = model.OrderTypeLimit
	}
	if action.Type != model.OrderTypeMarket && action.Type != model.OrderTypeLimit {
		return malformed("unknown order type %q", orderType)
	}
	action.Side = strings.ToUpper(strings.TrimSpace(side))
	if action.Side != model.OrderSideBuy && action.Side != model.OrderSideSell {
		return malformed("unknown order side %q", side)
	}
	return nil
}

// finishAction checks prices and derives the stop distance when it was omitted.
func finishAction(action *model.SuggestedAction) (*model.SuggestedAction, error) {
	if action.Quantity.IsNegative() {
		return nil, malformed("negative quantity")
	}
	if !action.EntryPrice.IsPositive() {
		return nil, malformed("entry price must be positive")
	}
	if action.StopLoss.Price.IsNegative() {
		return nil, malformed("negative stop loss")
	}
	for _, tp := range action.TakeProfitTargets {
		if !tp.Price.IsPositive() {
			return nil, malformed("take profit price must be positive")
		}
	}
	if action.StopLoss.DistancePct == 0 && action.StopLoss.Price.IsPositive() {
		action.StopLoss.DistancePct = action.EntryPrice.Sub(action.StopLoss.Price).Abs().
			Div(action.EntryPrice).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return action, nil
}

func normalizeQuality(raw string) model.SetupQuality {
	q := strings.ToUpper(strings.TrimSpace(raw))
	switch q {
	case "":
		return model.SetupNoSetup
	case "A_PLUS", "APLUS":
		return model.SetupAPlus
	case "NONE":
		return model.SetupNoSetup
	}
	return model.SetupQuality(q)
}

// targetLabel accepts both numeric (1) and string ("TP1") target ids.
func targetLabel(raw json.RawMessage, idx int) string {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("TP%d", n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return fmt.Sprintf("TP%d", idx+1)
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// checkLevels rejects an entry whose stop or targets sit on the wrong side of
// the entry price. A missing stop is allowed.
func checkLevels(a *model.SuggestedAction) error {
	long := a.Side == model.OrderSideBuy
	if stop := a.StopLoss.Price; stop.IsPositive() {
		if long && !stop.LessThan(a.EntryPrice) {
			return malformed("stop loss %s must be below entry %s for BUY", stop, a.EntryPrice)
		}
		if !long && !stop.GreaterThan(a.EntryPrice) {
			return malformed("stop loss %s must be above entry %s for SELL", stop, a.EntryPrice)
		}
	}
	for _, tp := range a.TakeProfitTargets {
		if long && !tp.Price.GreaterThan(a.EntryPrice) {
			return malformed("take profit %s must be above entry %s for BUY", tp.Price, a.EntryPrice)
		}
		if !long && !tp.Price.LessThan(a.EntryPrice) {
			return malformed("take profit %s must be below entry %s for SELL", tp.Price, a.EntryPrice)
		}
	}
	return nil
}
