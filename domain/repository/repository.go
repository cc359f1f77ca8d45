package repository

import (
	"context"

	"github.com/pyama86/YARO/domain/entity"
)

type IncidentRepository interface {
	FindIncidentByNumber(context.Context, string) (*entity.Incident, error)
	SaveIncident(context.Context, *entity.Incident) error
}

type ClassificationRepository interface {
	FindClassificationByNumber(context.Context, string) (*entity.Classification, error)
	SaveClassification(context.Context, *entity.Classification) error
}

type PlanRepository interface {
	FindPlanByNumber(context.Context, string) (*entity.Plan, error)
	SavePlan(context.Context, *entity.Plan) error
}

type ExecutionRepository interface {
	FindExecutionByID(context.Context, string) (*entity.Execution, error)
	ExecutionsByIncident(context.Context, string) ([]entity.Execution, error)
	SaveExecution(context.Context, *entity.Execution) error
}

type ValidationRepository interface {
	ValidationsByIncident(context.Context, string) ([]entity.Validation, error)
	SaveValidation(context.Context, *entity.Validation) error
}

type ClosureRepository interface {
	FindClosureByIncident(context.Context, string) (*entity.Closure, error)
	SaveClosure(context.Context, *entity.Closure) error
}

type Repository interface {
	IncidentRepository
	ClassificationRepository
	PlanRepository
	ExecutionRepository
	ValidationRepository
	ClosureRepository
}

type RepositoryFacade struct {
	IncidentRepository
	ClassificationRepository
	PlanRepository
	ExecutionRepository
	ValidationRepository
	ClosureRepository
}

func NewRepository(r *DynamoDBRepository) Repository {
	return RepositoryFacade{
		IncidentRepository:       r,
		ClassificationRepository: r,
		PlanRepository:           r,
		ExecutionRepository:      r,
		ValidationRepository:     r,
		ClosureRepository:        r,
	}
}

type ReportExporter interface {
	ExportReport(context.Context, string, string) error
}
