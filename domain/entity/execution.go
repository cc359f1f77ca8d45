package entity

import "time"

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionTimedOut  ExecutionStatus = "timed_out"
)

func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionTimedOut:
		return true
	}
	return false
}

func (s ExecutionStatus) InFlight() bool {
	return s == ExecutionPending || s == ExecutionRunning
}

// NormalizeRunnerStatus maps the runner's reported job states onto the
// orchestrator's closed status set. A canceled job did not remediate, so it
// is treated as failed and the rollback/escalate path decides what follows.
func NormalizeRunnerStatus(raw string) ExecutionStatus {
	switch raw {
	case "new", "pending", "waiting":
		return ExecutionPending
	case "running":
		return ExecutionRunning
	case "successful":
		return ExecutionSucceeded
	case "failed", "error", "canceled":
		return ExecutionFailed
	case "timeout":
		return ExecutionTimedOut
	default:
		return ExecutionRunning
	}
}

type ExecutionEvent struct {
	Event     string    `json:"event" dynamo:"event"`
	Message   string    `json:"message" dynamo:"message"`
	CreatedAt time.Time `json:"created_at" dynamo:"created_at"`
}

type Execution struct {
	ID             string           `json:"id" dynamo:"id,hash"`
	IncidentNumber string           `json:"incident_number" dynamo:"incident_number" index:"incident_number-index,hash"`
	JobID          string           `json:"job_id" dynamo:"job_id"`
	Status         ExecutionStatus  `json:"status" dynamo:"status"`
	Rollback       bool             `json:"rollback" dynamo:"rollback"`
	Events         []ExecutionEvent `json:"events" dynamo:"events"`
	StartedAt      time.Time        `json:"started_at" dynamo:"started_at"`
	FinishedAt     time.Time        `json:"finished_at" dynamo:"finished_at"`
}
