package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/domain/repository"
)

// Engine owns the per-incident remediation lifecycle:
//
//	Received → Classified → Planned → Dispatched → AwaitingValidation
//	         → Resolved | PartiallyResolved | RollingBack | Escalated
//	RollingBack → AwaitingValidation → RolledBack | Escalated
//
// Transitions for one incident are serialized behind a per-incident mutex;
// incidents progress independently of each other.
type Engine struct {
	repo              repository.Repository
	catalog           *Catalog
	policy            RiskPolicy
	classifier        Classifier
	dispatcher        *Dispatcher
	recorder          *ClosureRecorder
	validationTimeout time.Duration

	mu     sync.Mutex
	states map[string]State
	locks  map[string]*sync.Mutex
}

func New(repo repository.Repository, catalog *Catalog, policy RiskPolicy, classifier Classifier, dispatcher *Dispatcher, recorder *ClosureRecorder, validationTimeout time.Duration) *Engine {
	return &Engine{
		repo:              repo,
		catalog:           catalog,
		policy:            policy,
		classifier:        classifier,
		dispatcher:        dispatcher,
		recorder:          recorder,
		validationTimeout: validationTimeout,
		states:            map[string]State{},
		locks:             map[string]*sync.Mutex{},
	}
}

func (e *Engine) lockFor(number string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.locks[number]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.locks[number] = l
	return l
}

func (e *Engine) state(number string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[number]
	return s, ok
}

// setState applies a lifecycle transition. Moves not in the transition table
// are refused and logged; re-entering the current state is a no-op refresh
// (a held incident may be re-triggered).
func (e *Engine) setState(number string, to State) {
	e.mu.Lock()
	from, ok := e.states[number]
	if ok && from != to && !from.CanTransition(to) {
		e.mu.Unlock()
		slog.Error("Refusing illegal state transition",
			slog.String("incident", number),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return
	}
	e.states[number] = to
	e.mu.Unlock()
	if !ok {
		from = "-"
	}
	slog.Info("Incident state transition",
		slog.String("incident", number),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
}

// evictIfClosed drops the in-memory entries for an incident whose terminal
// outcome is backed by a closure record; duplicate detection falls back to
// the closure lookup. RolledBack incidents stay resident since they record
// no closure.
func (e *Engine) evictIfClosed(number string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.states[number] {
	case StateResolved, StatePartiallyResolved, StateEscalated:
		delete(e.states, number)
		delete(e.locks, number)
	}
}

// SubmitIncident accepts an incident for autonomous remediation and starts
// its pipeline in the background. Rejections (invalid record, already
// terminal, already in progress) are reported synchronously.
func (e *Engine) SubmitIncident(ctx context.Context, incident *entity.Incident) error {
	if err := validateIncident(incident); err != nil {
		return err
	}

	if s, ok := e.state(incident.Number); ok {
		if s.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrDuplicateIncident, incident.Number, s)
		}
		if s != StateReceived && s != StateClassified {
			return fmt.Errorf("%w: %s is %s", ErrConcurrentAttempt, incident.Number, s)
		}
	} else if closure, err := e.repo.FindClosureByIncident(ctx, incident.Number); err != nil {
		return fmt.Errorf("failed to look up closure: %w", err)
	} else if closure != nil {
		return fmt.Errorf("%w: %s closed as %s", ErrDuplicateIncident, incident.Number, closure.Disposition)
	}

	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	if err := e.repo.SaveIncident(ctx, incident); err != nil {
		return fmt.Errorf("failed to persist incident: %w", err)
	}
	e.setState(incident.Number, StateReceived)

	go func() {
		if err := e.Process(context.Background(), incident); err != nil {
			slog.Error("Remediation pipeline failed",
				slog.String("incident", incident.Number), slog.Any("error", err))
		}
	}()
	return nil
}

// Process drives one incident through the state machine to a terminal
// state. It serializes with any other trigger for the same incident.
func (e *Engine) Process(ctx context.Context, incident *entity.Incident) error {
	lock := e.lockFor(incident.Number)
	lock.Lock()
	err := e.process(ctx, incident)
	lock.Unlock()
	e.evictIfClosed(incident.Number)
	return err
}

func (e *Engine) process(ctx context.Context, incident *entity.Incident) error {
	if s, ok := e.state(incident.Number); ok {
		if s.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrDuplicateIncident, incident.Number, s)
		}
	} else if closure, err := e.repo.FindClosureByIncident(ctx, incident.Number); err != nil {
		return fmt.Errorf("failed to look up closure: %w", err)
	} else if closure != nil {
		return fmt.Errorf("%w: %s closed as %s", ErrDuplicateIncident, incident.Number, closure.Disposition)
	}

	classification, err := e.classify(ctx, incident)
	if err != nil {
		return err
	}
	if classification == nil {
		// held in Received until a classification arrives
		slog.Warn("No classification available, holding incident",
			slog.String("incident", incident.Number))
		return ErrClassificationMissing
	}
	e.setState(incident.Number, StateClassified)

	// human-only incidents are never planned, let alone dispatched
	if classification.Eligibility == entity.EligibilityHumanOnly {
		e.escalate(ctx, incident, classification, nil, nil, nil,
			"classification marks human-only")
		return nil
	}

	template, err := e.catalog.Resolve(classification)
	if err != nil {
		e.escalate(ctx, incident, classification, nil, nil, nil,
			fmt.Sprintf("no playbook mapped to labels %v", classification.Labels))
		return nil
	}

	decision := Decide(e.policy, classification, template)
	plan := planFromDecision(incident.Number, template, decision)
	if err := e.repo.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}
	e.setState(incident.Number, StatePlanned)

	if !decision.Eligible {
		e.escalate(ctx, incident, classification, plan, nil, nil, decision.Reason)
		return nil
	}

	if err := e.ensureNoInFlight(ctx, incident.Number); err != nil {
		return err
	}

	execution, done, err := e.dispatcher.Submit(ctx, incident, classification, plan, false)
	if err != nil {
		e.escalate(ctx, incident, classification, plan, nil, nil,
			fmt.Sprintf("dispatch failed: %v", err))
		return nil
	}
	e.setState(incident.Number, StateDispatched)

	e.setState(incident.Number, StateAwaitingValidation)
	signals := e.await(ctx, execution, done)

	validation := Evaluate(execution, plan, signals)
	if err := e.repo.SaveValidation(ctx, validation); err != nil {
		return fmt.Errorf("failed to persist validation: %w", err)
	}

	switch validation.Disposition {
	case entity.DispositionSuccess:
		e.setState(incident.Number, StateResolved)
		return e.close(ctx, incident, classification, plan, execution, validation, "all post-checks passed")
	case entity.DispositionPartial:
		e.setState(incident.Number, StatePartiallyResolved)
		return e.close(ctx, incident, classification, plan, execution, validation, "remediation completed with failing post-checks; partial success accepted")
	case entity.DispositionRollback:
		return e.rollback(ctx, incident, classification, plan)
	default:
		e.escalate(ctx, incident, classification, plan, execution, validation,
			fmt.Sprintf("execution finished %s with no rollback available", execution.Status))
		return nil
	}
}

// await blocks until the dispatcher delivers the terminal execution or the
// validation deadline passes, whichever comes first. On deadline the
// execution is forced to timed_out and the job is cancelled best effort; a
// late terminal report from the tracker is then a no-op.
func (e *Engine) await(ctx context.Context, execution *entity.Execution, done <-chan *entity.Execution) map[string]string {
	select {
	case <-done:
		if execution.Status == entity.ExecutionTimedOut {
			return map[string]string{"timeout": "runner reported no terminal status within deadline"}
		}
		return nil
	case <-time.After(e.validationTimeout):
		if err := e.dispatcher.ApplyTerminal(ctx, execution, entity.ExecutionTimedOut, nil); err != nil {
			slog.Error("Failed to persist synthesized timeout", slog.Any("error", err))
		}
		e.dispatcher.Cancel(ctx, execution)
		return map[string]string{"timeout": "no terminal status within validation deadline"}
	}
}

func (e *Engine) rollback(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan) error {
	e.setState(incident.Number, StateRollingBack)

	execution, done, err := e.dispatcher.Submit(ctx, incident, classification, plan, true)
	if err != nil {
		e.escalate(ctx, incident, classification, plan, nil, nil,
			fmt.Sprintf("rollback dispatch failed: %v", err))
		return nil
	}

	e.setState(incident.Number, StateAwaitingValidation)
	signals := e.await(ctx, execution, done)

	validation := Evaluate(execution, plan, signals)
	if err := e.repo.SaveValidation(ctx, validation); err != nil {
		return fmt.Errorf("failed to persist rollback validation: %w", err)
	}

	if validation.Disposition == entity.DispositionSuccess || validation.Disposition == entity.DispositionPartial {
		e.setState(incident.Number, StateRolledBack)
		e.recorder.RecordRollback(ctx, incident, plan)
		return nil
	}

	e.escalate(ctx, incident, classification, plan, execution, validation,
		"rollback attempt did not complete")
	return nil
}

func (e *Engine) classify(ctx context.Context, incident *entity.Incident) (*entity.Classification, error) {
	classification, err := e.repo.FindClassificationByNumber(ctx, incident.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to look up classification: %w", err)
	}
	if classification != nil {
		return classification, nil
	}
	if e.classifier == nil {
		return nil, nil
	}

	classification, err = e.classifier.Classify(ctx, incident)
	if err != nil || classification == nil {
		return nil, err
	}
	if err := e.repo.SaveClassification(ctx, classification); err != nil {
		return nil, fmt.Errorf("failed to persist classification: %w", err)
	}
	return classification, nil
}

// ensureNoInFlight enforces the single-in-flight-attempt invariant before a
// Planned→Dispatched transition.
func (e *Engine) ensureNoInFlight(ctx context.Context, number string) error {
	executions, err := e.repo.ExecutionsByIncident(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to list executions: %w", err)
	}
	for _, execution := range executions {
		if execution.Status.InFlight() {
			return fmt.Errorf("%w: execution %s is %s",
				ErrConcurrentAttempt, execution.ID, execution.Status)
		}
	}
	return nil
}

func (e *Engine) escalate(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, reason string) {
	e.setState(incident.Number, StateEscalated)
	if _, err := e.recorder.Close(ctx, incident, classification, plan, execution, validation, entity.DispositionEscalate, reason); err != nil {
		slog.Error("Failed to record escalation closure",
			slog.String("incident", incident.Number), slog.Any("error", err))
	}
}

func (e *Engine) close(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, reason string) error {
	_, err := e.recorder.Close(ctx, incident, classification, plan, execution, validation, validation.Disposition, reason)
	return err
}

func validateIncident(incident *entity.Incident) error {
	if incident.Number == "" {
		return fmt.Errorf("incident number is required")
	}
	if !incident.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", incident.Severity)
	}
	if incident.ShortDescription == "" && incident.Description == "" {
		return fmt.Errorf("incident description is required")
	}
	return nil
}

func planFromDecision(number string, template *entity.PlaybookTemplate, decision Decision) *entity.Plan {
	eligibility := entity.EligibilityHumanOnly
	if decision.Eligible {
		eligibility = entity.EligibilityAuto
	}
	return &entity.Plan{
		IncidentNumber: number,
		PlaybookID:     template.PlaybookID,
		PlaybookName:   template.Name,
		Prechecks:      template.Prechecks,
		RollbackSteps:  template.RollbackSteps,
		RiskScore:      decision.EffectiveRiskScore,
		Eligibility:    eligibility,
	}
}

// IncidentStatus is the answer to a status query: the current state plus
// the most recent execution, validation and closure records.
type IncidentStatus struct {
	Incident       *entity.Incident   `json:"incident"`
	State          State              `json:"state"`
	LastExecution  *entity.Execution  `json:"last_execution,omitempty"`
	LastValidation *entity.Validation `json:"last_validation,omitempty"`
	Closure        *entity.Closure    `json:"closure,omitempty"`
}

// GetIncidentStatus reports the incident's current position. For incidents
// the engine has not seen since startup the state is rebuilt from the
// persisted records.
func (e *Engine) GetIncidentStatus(ctx context.Context, number string) (*IncidentStatus, error) {
	incident, err := e.repo.FindIncidentByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to look up incident: %w", err)
	}
	if incident == nil {
		return nil, ErrIncidentNotFound
	}

	status := &IncidentStatus{Incident: incident}

	executions, err := e.repo.ExecutionsByIncident(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	for i := range executions {
		if status.LastExecution == nil || executions[i].StartedAt.After(status.LastExecution.StartedAt) {
			status.LastExecution = &executions[i]
		}
	}

	validations, err := e.repo.ValidationsByIncident(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	for i := range validations {
		if status.LastValidation == nil || validations[i].CreatedAt.After(status.LastValidation.CreatedAt) {
			status.LastValidation = &validations[i]
		}
	}

	status.Closure, err = e.repo.FindClosureByIncident(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to look up closure: %w", err)
	}

	if s, ok := e.state(number); ok {
		status.State = s
	} else {
		status.State = e.stateFromRecords(ctx, number, status)
	}
	return status, nil
}

func (e *Engine) stateFromRecords(ctx context.Context, number string, status *IncidentStatus) State {
	if status.Closure != nil {
		switch status.Closure.Disposition {
		case entity.DispositionSuccess:
			return StateResolved
		case entity.DispositionPartial:
			return StatePartiallyResolved
		default:
			return StateEscalated
		}
	}
	if status.LastExecution != nil {
		if status.LastExecution.Status.InFlight() {
			return StateAwaitingValidation
		}
		if status.LastExecution.Rollback && status.LastExecution.Status == entity.ExecutionSucceeded {
			return StateRolledBack
		}
		return StateAwaitingValidation
	}
	if plan, err := e.repo.FindPlanByNumber(ctx, number); err == nil && plan != nil {
		return StatePlanned
	}
	if classification, err := e.repo.FindClassificationByNumber(ctx, number); err == nil && classification != nil {
		return StateClassified
	}
	return StateReceived
}
