package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

type memoryRepo struct {
	mu              sync.Mutex
	incidents       map[string]*entity.Incident
	classifications map[string]*entity.Classification
	plans           map[string]*entity.Plan
	executions      map[string]entity.Execution
	validations     []entity.Validation
	closures        map[string]*entity.Closure
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		incidents:       map[string]*entity.Incident{},
		classifications: map[string]*entity.Classification{},
		plans:           map[string]*entity.Plan{},
		executions:      map[string]entity.Execution{},
		closures:        map[string]*entity.Closure{},
	}
}

func (m *memoryRepo) FindIncidentByNumber(_ context.Context, number string) (*entity.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incidents[number], nil
}

func (m *memoryRepo) SaveIncident(_ context.Context, i *entity.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[i.Number] = i
	return nil
}

func (m *memoryRepo) FindClassificationByNumber(_ context.Context, number string) (*entity.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifications[number], nil
}

func (m *memoryRepo) SaveClassification(_ context.Context, c *entity.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifications[c.IncidentNumber] = c
	return nil
}

func (m *memoryRepo) FindPlanByNumber(_ context.Context, number string) (*entity.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[number], nil
}

func (m *memoryRepo) SavePlan(_ context.Context, p *entity.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.IncidentNumber] = p
	return nil
}

func (m *memoryRepo) FindExecutionByID(_ context.Context, id string) (*entity.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.executions[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *memoryRepo) ExecutionsByIncident(_ context.Context, number string) ([]entity.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Execution
	for _, e := range m.executions {
		if e.IncidentNumber == number {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) SaveExecution(_ context.Context, e *entity.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[e.ID] = *e
	return nil
}

func (m *memoryRepo) ValidationsByIncident(_ context.Context, number string) ([]entity.Validation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Validation
	for _, v := range m.validations {
		if v.IncidentNumber == number {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryRepo) SaveValidation(_ context.Context, v *entity.Validation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations = append(m.validations, *v)
	return nil
}

func (m *memoryRepo) FindClosureByIncident(_ context.Context, number string) (*entity.Closure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closures[number], nil
}

func (m *memoryRepo) SaveClosure(_ context.Context, c *entity.Closure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closures[c.IncidentNumber] = c
	return nil
}

type stubRunner struct{}

func (stubRunner) ListJobTemplates(_ context.Context) ([]entity.PlaybookTemplate, error) {
	return nil, nil
}

func (stubRunner) LaunchJob(_ context.Context, _ string, _ map[string]interface{}) (string, error) {
	return "job-1", nil
}

func (stubRunner) JobStatus(_ context.Context, _ string) (string, string, error) {
	return "successful", "", nil
}

func (stubRunner) JobEvents(_ context.Context, _ string) ([]entity.ExecutionEvent, error) {
	return nil, nil
}

func (stubRunner) CancelJob(_ context.Context, _ string) error { return nil }
func (stubRunner) Ping(_ context.Context) error                { return nil }

type stubPolicy struct{}

func (stubPolicy) ConfidenceFloor() float64              { return 0.7 }
func (stubPolicy) RiskCeiling(_ entity.Severity) float64 { return 0.7 }

func newTestServer(repo *memoryRepo) *APIServer {
	catalog := engine.NewCatalog([]entity.PlaybookTemplate{
		{Label: "disk_full", PlaybookID: "10", Name: "Clean up var filesystem", RiskScore: 0.2},
	})
	dispatcher := engine.NewDispatcher(stubRunner{}, repo, 5*time.Millisecond, 100*time.Millisecond)
	recorder := engine.NewClosureRecorder(repo, nil, nil, nil, nil, "")
	e := engine.New(repo, catalog, stubPolicy{}, nil, dispatcher, recorder, 500*time.Millisecond)
	return NewAPIServer(e, "127.0.0.1:0")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(newMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSubmitIncidentAccepted(t *testing.T) {
	s := newTestServer(newMemoryRepo())

	body := `{"number":"INC600","severity":"P3","short_description":"/var is full","service":"billing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "INC600")
}

func TestSubmitIncidentRejectsInvalid(t *testing.T) {
	s := newTestServer(newMemoryRepo())

	body := `{"severity":"P3","short_description":"missing number"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitIncidentConflictOnClosed(t *testing.T) {
	repo := newMemoryRepo()
	repo.closures["INC601"] = &entity.Closure{
		IncidentNumber: "INC601",
		Disposition:    entity.DispositionSuccess,
	}
	s := newTestServer(repo)

	body := `{"number":"INC601","severity":"P3","short_description":"/var is full"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIncidentStatusNotFound(t *testing.T) {
	s := newTestServer(newMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/INC999", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIncidentStatusReturnsRecords(t *testing.T) {
	repo := newMemoryRepo()
	require.NoError(t, repo.SaveIncident(context.Background(), &entity.Incident{
		Number:           "INC602",
		Source:           "servicenow",
		Severity:         entity.SeverityP3,
		ShortDescription: "/var is full",
	}))
	repo.closures["INC602"] = &entity.Closure{
		IncidentNumber: "INC602",
		Disposition:    entity.DispositionSuccess,
	}
	s := newTestServer(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/INC602", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"Resolved"`)
}
