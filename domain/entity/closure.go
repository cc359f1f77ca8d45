package entity

import "time"

type Closure struct {
	ID                string      `json:"id" dynamo:"id,hash"`
	IncidentNumber    string      `json:"incident_number" dynamo:"incident_number" index:"incident_number-index,hash"`
	Disposition       Disposition `json:"disposition" dynamo:"disposition"`
	WorkNotes         string      `json:"work_notes" dynamo:"work_notes"`
	ResolutionSummary string      `json:"resolution_summary" dynamo:"resolution_summary"`
	ClosedBy          string      `json:"closed_by" dynamo:"closed_by"`
	ClosedAt          time.Time   `json:"closed_at" dynamo:"closed_at"`
}
