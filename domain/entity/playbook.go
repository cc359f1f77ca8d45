package entity

// PlaybookTemplate maps a classification label to a remediation recipe in the
// automation runner's catalog. Loaded from configuration at startup and
// treated as read-only afterwards.
type PlaybookTemplate struct {
	Label         string   `json:"label" mapstructure:"label"`
	PlaybookID    string   `json:"playbook_id" mapstructure:"playbook_id"`
	Name          string   `json:"name" mapstructure:"name"`
	Prechecks     []string `json:"prechecks" mapstructure:"prechecks"`
	RollbackSteps []string `json:"rollback_steps" mapstructure:"rollback_steps"`
	RiskScore     float64  `json:"risk_score" mapstructure:"risk_score"`
	Disabled      bool     `json:"disabled" mapstructure:"disabled"`
}

// ClassifierRule is a deterministic keyword rule used when no external
// classification has been recorded for an incident.
type ClassifierRule struct {
	Label       string      `json:"label" mapstructure:"label"`
	Keywords    []string    `json:"keywords" mapstructure:"keywords"`
	Severity    Severity    `json:"severity" mapstructure:"severity"`
	Eligibility Eligibility `json:"eligibility" mapstructure:"eligibility"`
	Confidence  float64     `json:"confidence" mapstructure:"confidence"`
	Disabled    bool        `json:"disabled" mapstructure:"disabled"`
}
