package decision

import (
	"fmt"

	"perptrader/src/model"
)

// Thresholds gate decisions before they reach the risk manager.
type Thresholds struct {
	MinConfidence float64
	MinConfluence int
	MinRiskReward float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence: 0.6,
		MinConfluence: 4,
		MinRiskReward: 2.2,
	}
}

// ValidateDecision applies the quality gate. HOLD always passes.
func ValidateDecision(d *model.TradingDecision, th Thresholds) (bool, string) {
	if d == nil {
		return false, "Missing decision"
	}
	if d.Decision == model.DecisionHold {
		return true, "HOLD decision"
	}

	if d.Confidence < th.MinConfidence {
		return false, fmt.Sprintf("Confidence too low: %.2f < %g", d.Confidence, th.MinConfidence)
	}
	if d.ConfluenceScore < th.MinConfluence {
		return false, fmt.Sprintf("Insufficient confluence: %d < %d", d.ConfluenceScore, th.MinConfluence)
	}
	if d.SetupQuality == model.SetupC || d.SetupQuality == model.SetupNoSetup {
		return false, fmt.Sprintf("Setup quality too low: %s", d.SetupQuality)
	}
	if d.RiskAssessment.LiquidityCheck == model.LiquidityFail {
		return false, "Liquidity check failed"
	}
	if d.RiskAssessment.RiskRewardRatio < th.MinRiskReward {
		return false, fmt.Sprintf("R:R ratio too low: %.2f < %.2f", d.RiskAssessment.RiskRewardRatio, th.MinRiskReward)
	}
	if d.SuggestedAction == nil {
		return false, "No suggested action provided"
	}
	return true, "Decision validated"
}

// IsAPlus reports whether a decision clears the stricter bar used once the
// day's trade count is high: confidence above 0.75 and confluence above 7.
func IsAPlus(d *model.TradingDecision) bool {
	if d == nil {
		return false
	}
	return d.Confidence > 0.75 && d.ConfluenceScore > 7
}
