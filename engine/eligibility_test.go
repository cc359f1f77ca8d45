package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

func classificationWith(severity entity.Severity, eligibility entity.Eligibility, confidence float64) *entity.Classification {
	return &entity.Classification{
		IncidentNumber: "INC100",
		Labels:         []string{"disk_full"},
		Severity:       severity,
		Eligibility:    eligibility,
		Confidence:     confidence,
	}
}

func TestDecideHumanOnlyNeverEligible(t *testing.T) {
	template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: 0.0}

	for _, severity := range []entity.Severity{entity.SeverityP1, entity.SeverityP2, entity.SeverityP3, entity.SeverityP4} {
		d := engine.Decide(testPolicy{}, classificationWith(severity, entity.EligibilityHumanOnly, 1.0), template)
		assert.False(t, d.Eligible, "severity %s", severity)
		assert.Equal(t, "classification marks human-only", d.Reason)
	}
}

func TestDecideConfidenceFloor(t *testing.T) {
	template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: 0.1}

	d := engine.Decide(testPolicy{}, classificationWith(entity.SeverityP4, entity.EligibilityAuto, 0.69), template)
	assert.False(t, d.Eligible)
	assert.Contains(t, d.Reason, "low classification confidence")

	d = engine.Decide(testPolicy{}, classificationWith(entity.SeverityP4, entity.EligibilityAuto, 0.7), template)
	assert.True(t, d.Eligible)
}

func TestDecideSeverityMultiplierAndCeiling(t *testing.T) {
	tests := []struct {
		name      string
		severity  entity.Severity
		riskScore float64
		eligible  bool
		effective float64
	}{
		{"P1 multiplier pushes over ceiling", entity.SeverityP1, 0.25, false, 0.375},
		{"P1 within ceiling", entity.SeverityP1, 0.2, true, 0.3},
		{"P2 multiplier applies", entity.SeverityP2, 0.4, true, 0.48},
		{"P2 over ceiling", entity.SeverityP2, 0.45, false, 0.54},
		{"P3 no multiplier", entity.SeverityP3, 0.7, true, 0.7},
		{"P4 generous ceiling", entity.SeverityP4, 0.85, true, 0.85},
		{"P4 over ceiling", entity.SeverityP4, 0.9, false, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: tt.riskScore}
			d := engine.Decide(testPolicy{}, classificationWith(tt.severity, entity.EligibilityAuto, 0.9), template)
			assert.Equal(t, tt.eligible, d.Eligible)
			assert.InDelta(t, tt.effective, d.EffectiveRiskScore, 1e-9)
		})
	}
}

func TestDecideExactlyAtCeilingIsEligible(t *testing.T) {
	// the multiplied score lands a hair above the ceiling in float64
	// (0.2 × 1.5 = 0.30000000000000004); the comparison must absorb that
	tests := []struct {
		severity  entity.Severity
		riskScore float64
	}{
		{entity.SeverityP1, 0.2},  // × 1.5 = 0.3 ceiling
		{entity.SeverityP2, 0.25}, // × 1.2 = 0.3, under the 0.5 ceiling
		{entity.SeverityP3, 0.7},  // = 0.7 ceiling
		{entity.SeverityP4, 0.85}, // = 0.85 ceiling
	}
	for _, tt := range tests {
		template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: tt.riskScore}
		d := engine.Decide(testPolicy{}, classificationWith(tt.severity, entity.EligibilityAuto, 0.9), template)
		assert.True(t, d.Eligible, "severity %s risk %.2f: %s", tt.severity, tt.riskScore, d.Reason)
	}
}

func TestDecideEffectiveRiskCappedAtOne(t *testing.T) {
	template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: 0.9}
	d := engine.Decide(testPolicy{}, classificationWith(entity.SeverityP1, entity.EligibilityAuto, 0.95), template)
	assert.False(t, d.Eligible)
	assert.Equal(t, 1.0, d.EffectiveRiskScore)
}

func TestDecideIsDeterministic(t *testing.T) {
	template := &entity.PlaybookTemplate{Label: "disk_full", PlaybookID: "10", RiskScore: 0.3}
	c := classificationWith(entity.SeverityP3, entity.EligibilityAuto, 0.8)

	first := engine.Decide(testPolicy{}, c, template)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Decide(testPolicy{}, c, template))
	}
}
