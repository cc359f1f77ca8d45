package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pyama86/YARO/domain/entity"
)

// Evaluate interprets an execution's outcome into exactly one disposition.
// The mapping is total: every (status, signals) combination yields a
// disposition, with escalate as the universal fallback. Post-check signals
// are derived from the runner's task events and merged with any the caller
// supplies (the caller's win on key collision).
func Evaluate(execution *entity.Execution, plan *entity.Plan, signals map[string]string) *entity.Validation {
	validation := &entity.Validation{
		ID:             uuid.NewString(),
		IncidentNumber: execution.IncidentNumber,
		ExecutionID:    execution.ID,
		Signals:        eventSignals(execution.Events),
		CreatedAt:      time.Now(),
	}
	for k, v := range signals {
		validation.Signals[k] = v
	}
	validation.Signals["execution_status"] = string(execution.Status)

	switch execution.Status {
	case entity.ExecutionSucceeded:
		if checksClean(validation.Signals) {
			validation.Disposition = entity.DispositionSuccess
		} else {
			validation.Disposition = entity.DispositionPartial
		}
	case entity.ExecutionFailed, entity.ExecutionTimedOut:
		// a failed rollback attempt always goes to a human
		if !execution.Rollback && plan.HasRollback() {
			validation.Disposition = entity.DispositionRollback
		} else {
			validation.Disposition = entity.DispositionEscalate
		}
	default:
		validation.Disposition = entity.DispositionEscalate
	}

	return validation
}

// eventSignals turns the runner's task events into post-check signals. A
// failed or unreachable task on an otherwise successful job means a check
// did not pass and the outcome is at best partial.
func eventSignals(events []entity.ExecutionEvent) map[string]string {
	signals := map[string]string{}
	for i, ev := range events {
		switch ev.Event {
		case "runner_on_failed", "runner_on_async_failed", "runner_on_unreachable":
			signals[fmt.Sprintf("%s_%d", ev.Event, i)] = "failed"
		}
	}
	return signals
}

// checksClean reports whether all post-execution checks passed. An explicit
// failure or ambiguous signal downgrades the outcome to partial; absent
// signals count as passing since the runner executes prechecks in-job.
func checksClean(signals map[string]string) bool {
	for _, v := range signals {
		switch v {
		case "fail", "failed", "ambiguous":
			return false
		}
	}
	return true
}
