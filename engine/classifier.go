package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/pyama86/YARO/domain/entity"
)

// Classifier produces a classification for an incident. The usual source is
// an external classifier writing directly to storage; RuleClassifier is the
// deterministic keyword fallback used when none has arrived.
type Classifier interface {
	Classify(ctx context.Context, incident *entity.Incident) (*entity.Classification, error)
}

type RuleClassifier struct {
	rules []entity.ClassifierRule
}

func NewRuleClassifier(rules []entity.ClassifierRule) *RuleClassifier {
	return &RuleClassifier{rules: rules}
}

// Classify scans the incident text for rule keywords. Matched rules become
// labels ordered by confidence, eligibility narrows to human-only if any
// matched rule demands it, and severity takes the strictest matched value.
// Returns (nil, nil) when nothing matches.
func (c *RuleClassifier) Classify(_ context.Context, incident *entity.Incident) (*entity.Classification, error) {
	text := strings.ToLower(incident.Text())

	var matched []entity.ClassifierRule
	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				matched = append(matched, rule)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})

	labels := make([]string, 0, len(matched))
	eligibility := entity.EligibilityAuto
	severity := incident.Severity
	confidence := matched[0].Confidence

	for _, rule := range matched {
		labels = append(labels, rule.Label)
		if rule.Eligibility == entity.EligibilityHumanOnly {
			eligibility = entity.EligibilityHumanOnly
		}
		if rule.Severity.Valid() && stricter(rule.Severity, severity) {
			severity = rule.Severity
		}
	}

	// corroborating rules raise confidence, capped below certainty
	if len(matched) > 1 {
		confidence += 0.1
		if confidence > 0.99 {
			confidence = 0.99
		}
	}

	return &entity.Classification{
		IncidentNumber: incident.Number,
		Labels:         labels,
		Severity:       severity,
		Eligibility:    eligibility,
		Confidence:     confidence,
	}, nil
}

func stricter(a, b entity.Severity) bool {
	return a < b
}
