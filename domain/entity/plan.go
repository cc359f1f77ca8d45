package entity

import "time"

type Plan struct {
	IncidentNumber string      `json:"incident_number" dynamo:"incident_number,hash"`
	PlaybookID     string      `json:"playbook_id" dynamo:"playbook_id"`
	PlaybookName   string      `json:"playbook_name" dynamo:"playbook_name"`
	Prechecks      []string    `json:"prechecks" dynamo:"prechecks"`
	RollbackSteps  []string    `json:"rollback_steps" dynamo:"rollback_steps"`
	RiskScore      float64     `json:"risk_score" dynamo:"risk_score"`
	Eligibility    Eligibility `json:"eligibility" dynamo:"eligibility"`
	UpdatedAt      time.Time   `json:"updated_at" dynamo:"updated_at"`
}

func (p *Plan) HasRollback() bool {
	return len(p.RollbackSteps) > 0
}
