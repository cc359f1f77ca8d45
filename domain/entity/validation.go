package entity

import "time"

type Disposition string

const (
	DispositionSuccess  Disposition = "success"
	DispositionPartial  Disposition = "partial"
	DispositionRollback Disposition = "rollback"
	DispositionEscalate Disposition = "escalate"
)

type Validation struct {
	ID             string            `json:"id" dynamo:"id,hash"`
	IncidentNumber string            `json:"incident_number" dynamo:"incident_number" index:"incident_number-index,hash"`
	ExecutionID    string            `json:"execution_id" dynamo:"execution_id"`
	Disposition    Disposition       `json:"disposition" dynamo:"disposition"`
	Signals        map[string]string `json:"signals" dynamo:"signals"`
	CreatedAt      time.Time         `json:"created_at" dynamo:"created_at"`
}
