package entity

import "time"

type Eligibility string

const (
	EligibilityAuto      Eligibility = "auto"
	EligibilityHumanOnly Eligibility = "human-only"
)

func (e Eligibility) Valid() bool {
	return e == EligibilityAuto || e == EligibilityHumanOnly
}

type Classification struct {
	IncidentNumber string      `json:"incident_number" dynamo:"incident_number,hash"`
	Labels         []string    `json:"labels" dynamo:"labels"`
	Severity       Severity    `json:"severity" dynamo:"severity"`
	Eligibility    Eligibility `json:"eligibility" dynamo:"eligibility"`
	Confidence     float64     `json:"confidence" dynamo:"confidence"`
	UpdatedAt      time.Time   `json:"updated_at" dynamo:"updated_at"`
}

// PrimaryLabel is the catalog lookup key. Labels are ordered by the
// classifier with the highest-confidence label first.
func (c *Classification) PrimaryLabel() string {
	if len(c.Labels) == 0 {
		return ""
	}
	return c.Labels[0]
}
