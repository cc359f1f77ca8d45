package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/domain/repository"
)

// Dispatcher submits remediation jobs to the automation runner and tracks
// each one in a background goroutine until the runner reports a terminal
// status or the job deadline passes. The terminal execution is delivered
// exactly once per Submit over the returned channel.
type Dispatcher struct {
	runner       repository.AutomationRunner
	repo         repository.ExecutionRepository
	pollInterval time.Duration
	jobTimeout   time.Duration

	// guards status mutation on tracked executions: the tracker goroutine
	// and the engine's validation-deadline path both apply terminal states
	mu sync.Mutex
}

func NewDispatcher(runner repository.AutomationRunner, repo repository.ExecutionRepository, pollInterval, jobTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		runner:       runner,
		repo:         repo,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
	}
}

func extraVars(incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, rollback bool) map[string]interface{} {
	category := "unknown"
	if classification != nil && len(classification.Labels) > 0 {
		category = classification.PrimaryLabel()
	}
	vars := map[string]interface{}{
		"incident_number":         incident.Number,
		"incident_description":    incident.Description,
		"incident_service":        incident.Service,
		"incident_severity":       string(incident.Severity),
		"classification_category": category,
		"plan_prechecks":          plan.Prechecks,
	}
	if rollback {
		vars["rollback"] = true
		vars["rollback_steps"] = plan.RollbackSteps
	}
	return vars
}

// Submit launches the plan's playbook for the incident. On launch failure no
// execution record is left behind and ErrDispatchFailed is returned
// synchronously. On success the pending execution is persisted and a
// tracking goroutine polls it to completion.
func (d *Dispatcher) Submit(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, rollback bool) (*entity.Execution, <-chan *entity.Execution, error) {
	jobID, err := d.runner.LaunchJob(ctx, plan.PlaybookID, extraVars(incident, classification, plan, rollback))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	execution := &entity.Execution{
		ID:             uuid.NewString(),
		IncidentNumber: incident.Number,
		JobID:          jobID,
		Status:         entity.ExecutionPending,
		Rollback:       rollback,
		StartedAt:      time.Now(),
	}
	if err := d.repo.SaveExecution(ctx, execution); err != nil {
		return nil, nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	done := make(chan *entity.Execution, 1)
	go d.track(execution, done)
	return execution, done, nil
}

func (d *Dispatcher) track(execution *entity.Execution, done chan<- *entity.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// the runner never reached a terminal status in time
			if err := d.ApplyTerminal(context.Background(), execution, entity.ExecutionTimedOut, nil); err != nil {
				slog.Error("Failed to persist timed out execution", slog.Any("error", err))
			}
			done <- execution
			return
		case <-ticker.C:
			raw, _, err := d.runner.JobStatus(ctx, execution.JobID)
			if err != nil {
				slog.Warn("Failed to poll job status",
					slog.String("job_id", execution.JobID), slog.Any("error", err))
				continue
			}
			status := entity.NormalizeRunnerStatus(raw)

			if d.markRunning(execution, status) {
				if err := d.repo.SaveExecution(ctx, execution); err != nil {
					slog.Error("Failed to persist running execution", slog.Any("error", err))
				}
			}

			if !status.Terminal() {
				continue
			}

			events, err := d.runner.JobEvents(ctx, execution.JobID)
			if err != nil {
				slog.Warn("Failed to collect job events",
					slog.String("job_id", execution.JobID), slog.Any("error", err))
			}
			if err := d.ApplyTerminal(context.Background(), execution, status, events); err != nil {
				slog.Error("Failed to persist terminal execution", slog.Any("error", err))
			}
			done <- execution
			return
		}
	}
}

func (d *Dispatcher) markRunning(execution *entity.Execution, status entity.ExecutionStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if status == entity.ExecutionRunning && execution.Status == entity.ExecutionPending {
		execution.Status = entity.ExecutionRunning
		return true
	}
	return false
}

// ApplyTerminal applies a terminal status to an execution. A duplicate
// delivery of the same terminal status is a no-op, and once terminal the
// status never changes again.
func (d *Dispatcher) ApplyTerminal(ctx context.Context, execution *entity.Execution, status entity.ExecutionStatus, events []entity.ExecutionEvent) error {
	d.mu.Lock()
	if execution.Status.Terminal() {
		current := execution.Status
		d.mu.Unlock()
		if current != status {
			slog.Warn("Ignoring conflicting terminal status for execution",
				slog.String("execution_id", execution.ID),
				slog.String("current", string(current)),
				slog.String("reported", string(status)))
		}
		return nil
	}

	execution.Status = status
	execution.FinishedAt = time.Now()
	if len(events) > 0 {
		execution.Events = events
	}
	d.mu.Unlock()
	return d.repo.SaveExecution(ctx, execution)
}

// Cancel signals the runner to stop a job. Best effort: the state machine
// never waits for the runner's acknowledgment.
func (d *Dispatcher) Cancel(ctx context.Context, execution *entity.Execution) {
	if err := d.runner.CancelJob(ctx, execution.JobID); err != nil {
		slog.Warn("Failed to cancel job",
			slog.String("job_id", execution.JobID), slog.Any("error", err))
	}
}
