package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Songmu/retry"
	"github.com/pyama86/YARO/domain/entity"
)

var ErrTicketNotFound = fmt.Errorf("not found")

// TicketSystem is the interface to the upstream ticket system the incidents
// originate from. The orchestrator pulls new incidents assigned to the
// automation group and writes remediation outcomes back.
type TicketSystem interface {
	OpenIncidents(ctx context.Context, limit int) ([]entity.Incident, error)
	CloseIncident(ctx context.Context, number, workNotes, summary string) error
	AddWorkNotes(ctx context.Context, number, notes string) error
}

type ServiceNowRepository struct {
	baseURL         string
	username        string
	password        string
	assignmentGroup string
	client          *http.Client
}

func NewServiceNowRepository(baseURL, username, password, assignmentGroup string) *ServiceNowRepository {
	return &ServiceNowRepository{
		baseURL:         strings.TrimRight(baseURL, "/"),
		username:        username,
		password:        password,
		assignmentGroup: assignmentGroup,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
}

type snowIncident struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	State            string `json:"state"`
	Severity         string `json:"severity"`
	CmdbCI           string `json:"cmdb_ci"`
	BusinessService  string `json:"business_service"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
}

func (r *ServiceNowRepository) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(r.username, r.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("servicenow request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrTicketNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("servicenow returned %s for %s %s", resp.Status, method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode servicenow response: %w", err)
		}
	}
	return nil
}

// OpenIncidents fetches New incidents assigned to the automation group.
func (r *ServiceNowRepository) OpenIncidents(ctx context.Context, limit int) ([]entity.Incident, error) {
	query := "state=1"
	if r.assignmentGroup != "" {
		query += "^assignment_group.name=" + r.assignmentGroup
	}
	path := fmt.Sprintf("/api/now/table/incident?sysparm_query=%s&sysparm_limit=%d",
		url.QueryEscape(query), limit)

	var result struct {
		Result []snowIncident `json:"result"`
	}
	if err := r.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	incidents := make([]entity.Incident, 0, len(result.Result))
	for _, row := range result.Result {
		if row.Number == "" {
			continue
		}
		service := row.BusinessService
		if service == "" {
			service = "unknown"
		}
		incidents = append(incidents, entity.Incident{
			Number:           row.Number,
			Source:           "servicenow",
			ResourceID:       row.CmdbCI,
			Service:          service,
			Severity:         entity.NormalizeSeverity(row.Severity),
			ShortDescription: row.ShortDescription,
			Description:      row.Description,
		})
	}
	return incidents, nil
}

func (r *ServiceNowRepository) sysIDByNumber(ctx context.Context, number string) (string, error) {
	path := fmt.Sprintf("/api/now/table/incident?sysparm_query=%s&sysparm_limit=1",
		url.QueryEscape("number="+number))
	var result struct {
		Result []snowIncident `json:"result"`
	}
	if err := r.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	if len(result.Result) == 0 {
		return "", ErrTicketNotFound
	}
	return result.Result[0].SysID, nil
}

func (r *ServiceNowRepository) CloseIncident(ctx context.Context, number, workNotes, summary string) error {
	sysID, err := r.sysIDByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to resolve incident %s: %w", number, err)
	}
	body := map[string]string{
		"state":       "6",
		"close_code":  "Solved (Permanently)",
		"close_notes": summary,
		"work_notes":  workNotes,
	}
	return retry.Retry(3, time.Second, func() error {
		return r.do(ctx, http.MethodPatch, "/api/now/table/incident/"+sysID, body, nil)
	})
}

func (r *ServiceNowRepository) AddWorkNotes(ctx context.Context, number, notes string) error {
	sysID, err := r.sysIDByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to resolve incident %s: %w", number, err)
	}
	body := map[string]string{"work_notes": notes}
	return retry.Retry(3, time.Second, func() error {
		return r.do(ctx, http.MethodPatch, "/api/now/table/incident/"+sysID, body, nil)
	})
}
