package decision

import (
	"strings"
	"testing"

	"perptrader/src/model"
)

func validBuy() *model.TradingDecision {
	return &model.TradingDecision{
		Decision:        model.DecisionBuy,
		Confidence:      0.8,
		ConfluenceScore: 7,
		SetupQuality:    model.SetupA,
		RiskAssessment: model.RiskAssessment{
			LiquidityCheck:  model.LiquidityPass,
			RiskRewardRatio: 2.5,
		},
		SuggestedAction: &model.SuggestedAction{Side: model.OrderSideBuy},
	}
}

func TestValidateDecision(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name   string
		mutate func(d *model.TradingDecision)
		ok     bool
		reason string
	}{
		{"valid", func(d *model.TradingDecision) {}, true, "Decision validated"},
		{"hold skips checks", func(d *model.TradingDecision) {
			d.Decision = model.DecisionHold
			d.Confidence = 0
			d.SuggestedAction = nil
		}, true, "HOLD decision"},
		{"low confidence", func(d *model.TradingDecision) { d.Confidence = 0.59 }, false, "Confidence too low"},
		{"confidence at threshold", func(d *model.TradingDecision) { d.Confidence = 0.6 }, true, "Decision validated"},
		{"low confluence", func(d *model.TradingDecision) { d.ConfluenceScore = 3 }, false, "Insufficient confluence"},
		{"setup C", func(d *model.TradingDecision) { d.SetupQuality = model.SetupC }, false, "Setup quality too low"},
		{"no setup", func(d *model.TradingDecision) { d.SetupQuality = model.SetupNoSetup }, false, "Setup quality too low"},
		{"liquidity fail", func(d *model.TradingDecision) { d.RiskAssessment.LiquidityCheck = model.LiquidityFail }, false, "Liquidity check failed"},
		{"marginal liquidity", func(d *model.TradingDecision) { d.RiskAssessment.LiquidityCheck = model.LiquidityMarginal }, true, "Decision validated"},
		{"low rr", func(d *model.TradingDecision) { d.RiskAssessment.RiskRewardRatio = 2.0 }, false, "R:R ratio too low"},
		{"missing action", func(d *model.TradingDecision) { d.SuggestedAction = nil }, false, "No suggested action"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := validBuy()
			tc.mutate(d)
			ok, reason := ValidateDecision(d, th)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (%s)", tc.ok, ok, reason)
			}
			if !strings.HasPrefix(reason, tc.reason) {
				t.Fatalf("expected reason starting with %q, got %q", tc.reason, reason)
			}
		})
	}

	if ok, _ := ValidateDecision(nil, th); ok {
		t.Fatalf("nil decision must be rejected")
	}
}

func TestIsAPlus(t *testing.T) {
	tests := []struct {
		confidence float64
		confluence int
		want       bool
	}{
		{0.75, 7, false},
		{0.76, 8, true},
		{0.75, 9, false},
		{0.9, 7, false},
		{0.9, 9, true},
		{0.74, 9, false},
		{0.9, 6, false},
	}
	for _, tc := range tests {
		d := &model.TradingDecision{Confidence: tc.confidence, ConfluenceScore: tc.confluence}
		if got := IsAPlus(d); got != tc.want {
			t.Fatalf("IsAPlus(%v, %d) = %v, want %v", tc.confidence, tc.confluence, got, tc.want)
		}
	}
	if IsAPlus(nil) {
		t.Fatalf("nil decision is never A+")
	}
}
