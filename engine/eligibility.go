package engine

import (
	"fmt"

	"github.com/pyama86/YARO/domain/entity"
)

// RiskPolicy supplies the configurable gates of the eligibility model.
type RiskPolicy interface {
	ConfidenceFloor() float64
	RiskCeiling(entity.Severity) float64
}

// Decision is the outcome of the eligibility & risk model.
type Decision struct {
	Eligible           bool
	EffectiveRiskScore float64
	Reason             string
}

// riskEpsilon absorbs float64 representation error so that a plan landing
// exactly on the ceiling (e.g. 0.2 × 1.5 vs a 0.3 ceiling) stays eligible.
const riskEpsilon = 1e-9

// severityMultiplier inflates a plan's base risk for high-severity incidents
// so that P1 faces a stricter gate than P4 on top of its lower ceiling.
func severityMultiplier(severity entity.Severity) float64 {
	switch severity {
	case entity.SeverityP1:
		return 1.5
	case entity.SeverityP2:
		return 1.2
	default:
		return 1.0
	}
}

// Decide applies the eligibility rules in order; the first matching rule
// decides. It is pure and deterministic, and may only narrow the
// classification's own eligibility, never widen it.
func Decide(policy RiskPolicy, classification *entity.Classification, template *entity.PlaybookTemplate) Decision {
	if classification.Eligibility == entity.EligibilityHumanOnly {
		return Decision{
			Eligible:           false,
			EffectiveRiskScore: template.RiskScore,
			Reason:             "classification marks human-only",
		}
	}

	if classification.Confidence < policy.ConfidenceFloor() {
		return Decision{
			Eligible:           false,
			EffectiveRiskScore: template.RiskScore,
			Reason: fmt.Sprintf("low classification confidence (%.2f < %.2f)",
				classification.Confidence, policy.ConfidenceFloor()),
		}
	}

	effective := template.RiskScore * severityMultiplier(classification.Severity)
	if effective > 1.0 {
		effective = 1.0
	}

	if ceiling := policy.RiskCeiling(classification.Severity); effective-ceiling > riskEpsilon {
		return Decision{
			Eligible:           false,
			EffectiveRiskScore: effective,
			Reason: fmt.Sprintf("risk score %.2f exceeds ceiling %.2f for severity %s",
				effective, ceiling, classification.Severity),
		}
	}

	return Decision{
		Eligible:           true,
		EffectiveRiskScore: effective,
		Reason:             "within risk ceiling",
	}
}
