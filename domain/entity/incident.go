package entity

import "time"

type Severity string

const (
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
	SeverityP4 Severity = "P4"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityP1, SeverityP2, SeverityP3, SeverityP4:
		return true
	}
	return false
}

// NormalizeSeverity maps free-form ticket severities onto P1..P4.
func NormalizeSeverity(raw string) Severity {
	if s := Severity(raw); s.Valid() {
		return s
	}
	switch raw {
	case "critical", "1 - Critical":
		return SeverityP1
	case "high", "2 - High":
		return SeverityP2
	case "low", "4 - Low":
		return SeverityP4
	default:
		return SeverityP3
	}
}

type Incident struct {
	Number           string    `json:"number" dynamo:"number,hash"`
	Source           string    `json:"source" dynamo:"source"`
	ResourceID       string    `json:"resource_id" dynamo:"resource_id"`
	Service          string    `json:"service" dynamo:"service"`
	Severity         Severity  `json:"severity" dynamo:"severity"`
	ShortDescription string    `json:"short_description" dynamo:"short_description"`
	Description      string    `json:"description" dynamo:"description"`
	CreatedAt        time.Time `json:"created_at" dynamo:"created_at"`
}

func (i *Incident) Text() string {
	return i.ShortDescription + " " + i.Description
}
