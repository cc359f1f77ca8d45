package engine

import "fmt"

var (
	// ErrClassificationMissing means no classification is available for the
	// incident; it stays in Received until one arrives.
	ErrClassificationMissing = fmt.Errorf("classification missing")

	// ErrPlanNotFound means no playbook template maps to the classification.
	// There is no safe default plan.
	ErrPlanNotFound = fmt.Errorf("plan not found")

	// ErrConcurrentAttempt means an execution for the incident is already in
	// flight. The new attempt is rejected and no state changes.
	ErrConcurrentAttempt = fmt.Errorf("remediation attempt already in flight")

	// ErrDispatchFailed means the runner rejected or was unreachable at
	// submission. No execution record is created.
	ErrDispatchFailed = fmt.Errorf("dispatch failed")

	// ErrDoubleClosure means a closure already exists with a conflicting
	// disposition. It is surfaced, never silently overwritten.
	ErrDoubleClosure = fmt.Errorf("closure already recorded with different disposition")

	// ErrIncidentNotFound is returned by status queries for unknown numbers.
	ErrIncidentNotFound = fmt.Errorf("incident not found")

	// ErrDuplicateIncident means the incident was already remediated to a
	// terminal state and is not accepted again.
	ErrDuplicateIncident = fmt.Errorf("incident already processed")
)
