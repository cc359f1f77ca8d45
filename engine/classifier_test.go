package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

var testRules = []entity.ClassifierRule{
	{
		Label:       "disk_full",
		Keywords:    []string{"disk", "no space left"},
		Eligibility: entity.EligibilityAuto,
		Confidence:  0.9,
	},
	{
		Label:       "database_down",
		Keywords:    []string{"postgresql", "database"},
		Eligibility: entity.EligibilityAuto,
		Confidence:  0.85,
	},
	{
		Label:       "data_loss",
		Keywords:    []string{"corruption", "data loss"},
		Severity:    entity.SeverityP1,
		Eligibility: entity.EligibilityHumanOnly,
		Confidence:  0.95,
	},
}

func TestRuleClassifierSingleMatch(t *testing.T) {
	c := engine.NewRuleClassifier(testRules)

	incident := testIncident("INC300", entity.SeverityP3)
	incident.ShortDescription = "Disk usage alert on srv-01"
	incident.Description = "no space left on device"

	got, err := c.Classify(context.Background(), incident)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"disk_full"}, got.Labels)
	assert.Equal(t, entity.EligibilityAuto, got.Eligibility)
	assert.Equal(t, entity.SeverityP3, got.Severity)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestRuleClassifierMultipleMatchesOrderedByConfidence(t *testing.T) {
	c := engine.NewRuleClassifier(testRules)

	incident := testIncident("INC301", entity.SeverityP3)
	incident.ShortDescription = "database unreachable, disk usage at 100%"
	incident.Description = ""

	got, err := c.Classify(context.Background(), incident)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"disk_full", "database_down"}, got.Labels)
	// corroboration bonus on top of the strongest match, capped
	assert.InDelta(t, 0.99, got.Confidence, 1e-9)
}

func TestRuleClassifierNarrowsEligibilityAndSeverity(t *testing.T) {
	c := engine.NewRuleClassifier(testRules)

	incident := testIncident("INC302", entity.SeverityP3)
	incident.ShortDescription = "disk errors followed by data loss on primary"
	incident.Description = ""

	got, err := c.Classify(context.Background(), incident)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.EligibilityHumanOnly, got.Eligibility)
	assert.Equal(t, entity.SeverityP1, got.Severity)
}

func TestRuleClassifierConfidenceCap(t *testing.T) {
	rules := []entity.ClassifierRule{
		{Label: "a", Keywords: []string{"alpha"}, Eligibility: entity.EligibilityAuto, Confidence: 0.95},
		{Label: "b", Keywords: []string{"beta"}, Eligibility: entity.EligibilityAuto, Confidence: 0.9},
	}
	c := engine.NewRuleClassifier(rules)

	incident := testIncident("INC303", entity.SeverityP4)
	incident.ShortDescription = "alpha and beta both firing"
	incident.Description = ""

	got, err := c.Classify(context.Background(), incident)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.99, got.Confidence, 1e-9)
}

func TestRuleClassifierNoMatch(t *testing.T) {
	c := engine.NewRuleClassifier(testRules)

	incident := testIncident("INC304", entity.SeverityP4)
	incident.ShortDescription = "printer on floor 3 is jammed"
	incident.Description = ""

	got, err := c.Classify(context.Background(), incident)
	require.NoError(t, err)
	assert.Nil(t, got)
}
