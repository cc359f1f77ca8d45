package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/guregu/dynamo/v2"
	"github.com/pyama86/YARO/domain/entity"
)

var (
	incidentsTable       = "incidents"
	classificationsTable = "classifications"
	plansTable           = "plans"
	executionsTable      = "executions"
	validationsTable     = "validations"
	closuresTable        = "closures"
)

func init() {
	for env, table := range map[string]*string{
		"DYNAMO_INCIDENTS_TABLE":       &incidentsTable,
		"DYNAMO_CLASSIFICATIONS_TABLE": &classificationsTable,
		"DYNAMO_PLANS_TABLE":           &plansTable,
		"DYNAMO_EXECUTIONS_TABLE":      &executionsTable,
		"DYNAMO_VALIDATIONS_TABLE":     &validationsTable,
		"DYNAMO_CLOSURES_TABLE":        &closuresTable,
	} {
		if os.Getenv(env) != "" {
			*table = os.Getenv(env)
		}
	}
}

func NewDynamoDBRepository() (*DynamoDBRepository, error) {
	var db *dynamo.DB
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		db = dynamo.New(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String("http://localhost:8000")
		})

		if err := setupDdbSchema(db); err != nil {
			return nil, fmt.Errorf("failed to setup schema: %v", err)
		}
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		db = dynamo.New(cfg)
	}

	return &DynamoDBRepository{db: db}, nil
}

func setupDdbSchema(db *dynamo.DB) error {
	for table, model := range map[string]interface{}{
		incidentsTable:       entity.Incident{},
		classificationsTable: entity.Classification{},
		plansTable:           entity.Plan{},
		executionsTable:      entity.Execution{},
		validationsTable:     entity.Validation{},
		closuresTable:        entity.Closure{},
	} {
		t := db.Table(table)
		if _, err := t.Describe().Run(context.TODO()); err == nil {
			continue
		}
		input := db.CreateTable(table, model).Provision(10, 10)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := input.Run(ctx)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

type DynamoDBRepository struct {
	db *dynamo.DB
}

func (r *DynamoDBRepository) FindIncidentByNumber(ctx context.Context, number string) (*entity.Incident, error) {
	incident := &entity.Incident{}
	err := r.db.Table(incidentsTable).Get("number", number).One(ctx, incident)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return incident, nil
}

func (r *DynamoDBRepository) SaveIncident(ctx context.Context, incident *entity.Incident) error {
	return r.db.Table(incidentsTable).Put(incident).Run(ctx)
}

func (r *DynamoDBRepository) FindClassificationByNumber(ctx context.Context, number string) (*entity.Classification, error) {
	classification := &entity.Classification{}
	err := r.db.Table(classificationsTable).Get("incident_number", number).One(ctx, classification)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return classification, nil
}

func (r *DynamoDBRepository) SaveClassification(ctx context.Context, classification *entity.Classification) error {
	classification.UpdatedAt = time.Now()
	return r.db.Table(classificationsTable).Put(classification).Run(ctx)
}

func (r *DynamoDBRepository) FindPlanByNumber(ctx context.Context, number string) (*entity.Plan, error) {
	plan := &entity.Plan{}
	err := r.db.Table(plansTable).Get("incident_number", number).One(ctx, plan)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return plan, nil
}

func (r *DynamoDBRepository) SavePlan(ctx context.Context, plan *entity.Plan) error {
	plan.UpdatedAt = time.Now()
	return r.db.Table(plansTable).Put(plan).Run(ctx)
}

func (r *DynamoDBRepository) FindExecutionByID(ctx context.Context, id string) (*entity.Execution, error) {
	execution := &entity.Execution{}
	err := r.db.Table(executionsTable).Get("id", id).One(ctx, execution)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return execution, nil
}

func (r *DynamoDBRepository) ExecutionsByIncident(ctx context.Context, number string) ([]entity.Execution, error) {
	var executions []entity.Execution
	err := r.db.Table(executionsTable).Get("incident_number", number).Index("incident_number-index").All(ctx, &executions)
	if err != nil && err != dynamo.ErrNotFound {
		return nil, err
	}
	return executions, nil
}

func (r *DynamoDBRepository) SaveExecution(ctx context.Context, execution *entity.Execution) error {
	return r.db.Table(executionsTable).Put(execution).Run(ctx)
}

func (r *DynamoDBRepository) ValidationsByIncident(ctx context.Context, number string) ([]entity.Validation, error) {
	var validations []entity.Validation
	err := r.db.Table(validationsTable).Get("incident_number", number).Index("incident_number-index").All(ctx, &validations)
	if err != nil && err != dynamo.ErrNotFound {
		return nil, err
	}
	return validations, nil
}

func (r *DynamoDBRepository) SaveValidation(ctx context.Context, validation *entity.Validation) error {
	return r.db.Table(validationsTable).Put(validation).Run(ctx)
}

func (r *DynamoDBRepository) FindClosureByIncident(ctx context.Context, number string) (*entity.Closure, error) {
	var closures []entity.Closure
	err := r.db.Table(closuresTable).Get("incident_number", number).Index("incident_number-index").All(ctx, &closures)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(closures) == 0 {
		return nil, nil
	}
	return &closures[0], nil
}

func (r *DynamoDBRepository) SaveClosure(ctx context.Context, closure *entity.Closure) error {
	return r.db.Table(closuresTable).Put(closure).Run(ctx)
}
