package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/domain/repository"
	"github.com/pyama86/YARO/presentation/blocks"
	"github.com/pyama86/YARO/presentation/report"
	"github.com/slack-go/slack"
)

// ClosureRecorder persists the final resolution record and pushes it out to
// the ticket system, the alert channel and the report space. Side effects
// are best effort; only the closure record itself can fail the close.
type ClosureRecorder struct {
	repo         repository.ClosureRepository
	tickets      repository.TicketSystem
	slackRepo    repository.SlackRepositoryer
	ai           repository.AIRepositorier
	exporter     repository.ReportExporter
	alertChannel string
	closedBy     string
}

func NewClosureRecorder(repo repository.ClosureRepository, tickets repository.TicketSystem, slackRepo repository.SlackRepositoryer, ai repository.AIRepositorier, exporter repository.ReportExporter, alertChannel string) *ClosureRecorder {
	return &ClosureRecorder{
		repo:         repo,
		tickets:      tickets,
		slackRepo:    slackRepo,
		ai:           ai,
		exporter:     exporter,
		alertChannel: alertChannel,
		closedBy:     "yaro",
	}
}

// Close records the terminal disposition for an incident. Calling it twice
// with the same disposition is a no-op; a conflicting disposition surfaces
// as ErrDoubleClosure and the existing record is kept.
func (r *ClosureRecorder) Close(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, disposition entity.Disposition, reason string) (*entity.Closure, error) {
	existing, err := r.repo.FindClosureByIncident(ctx, incident.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to look up closure: %w", err)
	}
	if existing != nil {
		if existing.Disposition == disposition {
			return existing, nil
		}
		return existing, fmt.Errorf("%w: recorded %s, requested %s",
			ErrDoubleClosure, existing.Disposition, disposition)
	}

	summary, workNotes := r.compose(incident, plan, execution, validation, disposition, reason)

	closure := &entity.Closure{
		ID:                uuid.NewString(),
		IncidentNumber:    incident.Number,
		Disposition:       disposition,
		WorkNotes:         workNotes,
		ResolutionSummary: summary,
		ClosedBy:          r.closedBy,
	}
	closure.ClosedAt = time.Now()
	if err := r.repo.SaveClosure(ctx, closure); err != nil {
		return nil, fmt.Errorf("failed to persist closure: %w", err)
	}

	r.updateTicket(ctx, incident, closure, disposition)
	r.notify(incident, closure, disposition)
	r.export(ctx, incident, classification, plan, execution, validation, closure)

	return closure, nil
}

// RecordRollback appends a rollback note to the ticket without closing the
// incident; a rolled-back incident goes back to its reporter unresolved.
func (r *ClosureRecorder) RecordRollback(ctx context.Context, incident *entity.Incident, plan *entity.Plan) {
	if r.tickets == nil {
		return
	}
	note := fmt.Sprintf("Automated remediation via playbook %s (ID: %s) failed and was rolled back. The incident remains open.",
		plan.PlaybookName, plan.PlaybookID)
	if err := r.tickets.AddWorkNotes(ctx, incident.Number, note); err != nil {
		slog.Error("Failed to add rollback work notes",
			slog.String("incident", incident.Number), slog.Any("error", err))
	}
}

func (r *ClosureRecorder) compose(incident *entity.Incident, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, disposition entity.Disposition, reason string) (string, string) {
	summary := fmt.Sprintf("Incident %s processed by the remediation orchestrator: %s. %s",
		incident.Number, disposition, reason)
	workNotes := reason
	if plan != nil && execution != nil {
		workNotes = fmt.Sprintf("Playbook %s (ID: %s) finished with status %s. Outcome: %s. %s",
			plan.PlaybookName, plan.PlaybookID, execution.Status, disposition, reason)
	}

	if r.ai == nil || plan == nil || execution == nil {
		return summary, workNotes
	}

	if s, err := r.ai.GenerateResolutionSummary(incident, plan, execution, disposition); err != nil {
		slog.Warn("Failed to generate resolution summary", slog.Any("error", err))
	} else if s != "" {
		summary = s
	}
	if validation != nil {
		if n, err := r.ai.GenerateWorkNotes(incident, plan, execution, validation); err != nil {
			slog.Warn("Failed to generate work notes", slog.Any("error", err))
		} else if n != "" {
			workNotes = n
		}
	}
	return summary, workNotes
}

func (r *ClosureRecorder) updateTicket(ctx context.Context, incident *entity.Incident, closure *entity.Closure, disposition entity.Disposition) {
	if r.tickets == nil {
		return
	}
	var err error
	switch disposition {
	case entity.DispositionSuccess, entity.DispositionPartial:
		err = r.tickets.CloseIncident(ctx, incident.Number, closure.WorkNotes, closure.ResolutionSummary)
	default:
		// escalations keep the ticket open for a human
		note := closure.WorkNotes + "\n\n" + closure.ResolutionSummary
		err = r.tickets.AddWorkNotes(ctx, incident.Number, note)
	}
	if err != nil {
		slog.Error("Failed to update ticket",
			slog.String("incident", incident.Number), slog.Any("error", err))
	}
}

func (r *ClosureRecorder) notify(incident *entity.Incident, closure *entity.Closure, disposition entity.Disposition) {
	if r.slackRepo == nil || r.alertChannel == "" {
		return
	}
	channel, err := r.slackRepo.GetChannelByName(r.alertChannel)
	if err != nil {
		slog.Error("Failed to resolve alert channel",
			slog.String("channel", r.alertChannel), slog.Any("error", err))
		return
	}

	var msg []slack.Block
	if disposition == entity.DispositionEscalate {
		msg = blocks.Escalation(incident, closure.ResolutionSummary)
	} else {
		msg = blocks.Closed(incident, disposition, closure.ResolutionSummary)
	}
	if err := r.slackRepo.PostMessage(channel.ID, slack.MsgOptionBlocks(msg...)); err != nil {
		slog.Error("Failed to post closure notice", slog.Any("error", err))
	}
}

func (r *ClosureRecorder) export(ctx context.Context, incident *entity.Incident, classification *entity.Classification, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation, closure *entity.Closure) {
	if r.exporter == nil {
		return
	}
	title := fmt.Sprintf("Remediation Report: %s", incident.Number)
	body := report.Render(incident, classification, plan, execution, validation, closure)
	if err := r.exporter.ExportReport(ctx, title, body); err != nil {
		slog.Error("Failed to export remediation report",
			slog.String("incident", incident.Number), slog.Any("error", err))
	}
}
