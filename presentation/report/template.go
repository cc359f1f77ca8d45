package report

import (
	"fmt"
	"strings"

	"github.com/pyama86/YARO/domain/entity"
)

// Render produces the markdown remediation report exported on closure.
func Render(incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, closure *entity.Closure) string {
	labels := "-"
	if classification != nil && len(classification.Labels) > 0 {
		labels = strings.Join(classification.Labels, ", ")
	}

	playbook := "-"
	if plan != nil {
		playbook = fmt.Sprintf("%s (ID: %s)", plan.PlaybookName, plan.PlaybookID)
	}

	executionStatus := "-"
	jobID := "-"
	if execution != nil {
		executionStatus = string(execution.Status)
		jobID = execution.JobID
	}

	disposition := "-"
	if validation != nil {
		disposition = string(validation.Disposition)
	}

	return fmt.Sprintf(`# Remediation Report: %s

## Incident

| | |
|---|---|
| Number | %s |
| Service | %s |
| Severity | %s |
| Resource | %s |

%s

## Classification

Labels: %s

## Remediation

| | |
|---|---|
| Playbook | %s |
| Job | %s |
| Execution status | %s |
| Disposition | %s |

## Resolution

%s

## Work Notes

%s
`,
		incident.Number,
		incident.Number,
		incident.Service,
		incident.Severity,
		incident.ResourceID,
		incident.Description,
		labels,
		playbook,
		jobID,
		executionStatus,
		disposition,
		closure.ResolutionSummary,
		closure.WorkNotes,
	)
}
