package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pyama86/YARO/domain/repository"
	"github.com/pyama86/YARO/engine"
)

// Scheduler periodically pulls new incidents from the ticket system and
// feeds them to the engine. Duplicates and in-progress incidents are
// rejected by the engine, so re-polling the same ticket is harmless.
type Scheduler struct {
	tickets repository.TicketSystem
	engine  *engine.Engine
	cfg     repository.ServiceNowConfig
}

func NewScheduler(tickets repository.TicketSystem, e *engine.Engine, cfg repository.ServiceNowConfig) *Scheduler {
	return &Scheduler{
		tickets: tickets,
		engine:  e,
		cfg:     cfg,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.PollIntervalSeconds) * time.Second
	slog.Info("Incident scheduler started",
		slog.Duration("interval", interval),
		slog.Int("batch_size", s.cfg.BatchSize))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Incident scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	incidents, err := s.tickets.OpenIncidents(ctx, s.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to fetch open incidents", slog.Any("error", err))
		return
	}

	for i := range incidents {
		incident := incidents[i]
		err := s.engine.SubmitIncident(ctx, &incident)
		switch {
		case err == nil:
			slog.Info("Incident accepted", slog.String("incident", incident.Number))
		case errors.Is(err, engine.ErrDuplicateIncident), errors.Is(err, engine.ErrConcurrentAttempt):
			// already handled or still in progress
		default:
			slog.Error("Failed to submit incident",
				slog.String("incident", incident.Number), slog.Any("error", err))
		}
	}
}
