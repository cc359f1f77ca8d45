package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

func closureFixture(number string) (*entity.Incident, *entity.Classification, *entity.Plan, *entity.Execution, *entity.Validation) {
	incident := testIncident(number, entity.SeverityP3)
	classification := &entity.Classification{
		IncidentNumber: number,
		Labels:         []string{"disk_full"},
		Severity:       entity.SeverityP3,
		Eligibility:    entity.EligibilityAuto,
		Confidence:     0.9,
	}
	plan := &entity.Plan{
		IncidentNumber: number,
		PlaybookID:     "10",
		PlaybookName:   "Clean up var filesystem",
	}
	execution := &entity.Execution{
		ID:             "exec-1",
		IncidentNumber: number,
		JobID:          "job-1",
		Status:         entity.ExecutionSucceeded,
		StartedAt:      time.Now(),
		FinishedAt:     time.Now(),
	}
	validation := &entity.Validation{
		ID:             "val-1",
		IncidentNumber: number,
		ExecutionID:    "exec-1",
		Disposition:    entity.DispositionSuccess,
		Signals:        map[string]string{"execution_status": "succeeded"},
		CreatedAt:      time.Now(),
	}
	return incident, classification, plan, execution, validation
}

func TestCloseRecordsClosureAndClosesTicket(t *testing.T) {
	repo := newMockRepo()
	tickets := &mockTickets{}
	r := engine.NewClosureRecorder(repo, tickets, nil, nil, nil, "")

	incident, classification, plan, execution, validation := closureFixture("INC500")
	closure, err := r.Close(context.Background(), incident, classification, plan, execution, validation,
		entity.DispositionSuccess, "all post-checks passed")
	require.NoError(t, err)
	require.NotNil(t, closure)
	assert.Equal(t, entity.DispositionSuccess, closure.Disposition)
	assert.Equal(t, "yaro", closure.ClosedBy)
	assert.False(t, closure.ClosedAt.IsZero())
	assert.Equal(t, []string{"INC500"}, tickets.closed)
	assert.Empty(t, tickets.workNotes)
}

func TestCloseEscalationAddsWorkNotesWithoutClosingTicket(t *testing.T) {
	repo := newMockRepo()
	tickets := &mockTickets{}
	r := engine.NewClosureRecorder(repo, tickets, nil, nil, nil, "")

	incident, classification, _, _, _ := closureFixture("INC501")
	closure, err := r.Close(context.Background(), incident, classification, nil, nil, nil,
		entity.DispositionEscalate, "classification marks human-only")
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionEscalate, closure.Disposition)
	assert.Empty(t, tickets.closed)
	assert.Equal(t, []string{"INC501"}, tickets.workNotes)
}

func TestCloseIsIdempotentForSameDisposition(t *testing.T) {
	repo := newMockRepo()
	tickets := &mockTickets{}
	r := engine.NewClosureRecorder(repo, tickets, nil, nil, nil, "")

	incident, classification, plan, execution, validation := closureFixture("INC502")
	first, err := r.Close(context.Background(), incident, classification, plan, execution, validation,
		entity.DispositionSuccess, "all post-checks passed")
	require.NoError(t, err)

	second, err := r.Close(context.Background(), incident, classification, plan, execution, validation,
		entity.DispositionSuccess, "all post-checks passed")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// the ticket was only touched once
	assert.Equal(t, []string{"INC502"}, tickets.closed)
}

func TestCloseRejectsConflictingDisposition(t *testing.T) {
	repo := newMockRepo()
	r := engine.NewClosureRecorder(repo, nil, nil, nil, nil, "")

	incident, classification, plan, execution, validation := closureFixture("INC503")
	first, err := r.Close(context.Background(), incident, classification, plan, execution, validation,
		entity.DispositionSuccess, "all post-checks passed")
	require.NoError(t, err)

	existing, err := r.Close(context.Background(), incident, classification, plan, execution, validation,
		entity.DispositionEscalate, "late escalation attempt")
	require.ErrorIs(t, err, engine.ErrDoubleClosure)
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
	assert.Equal(t, entity.DispositionSuccess, existing.Disposition)
}

func TestRecordRollbackAddsWorkNotesOnly(t *testing.T) {
	repo := newMockRepo()
	tickets := &mockTickets{}
	r := engine.NewClosureRecorder(repo, tickets, nil, nil, nil, "")

	incident, _, plan, _, _ := closureFixture("INC504")
	plan.RollbackSteps = []string{"restore previous unit state"}
	r.RecordRollback(context.Background(), incident, plan)

	assert.Equal(t, []string{"INC504"}, tickets.workNotes)
	assert.Empty(t, tickets.closed)

	closure, err := repo.FindClosureByIncident(context.Background(), "INC504")
	require.NoError(t, err)
	assert.Nil(t, closure)
}
