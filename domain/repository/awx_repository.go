package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Songmu/retry"
	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/YARO/domain/entity"
)

var ErrRunnerNotFound = fmt.Errorf("not found")

// AutomationRunner is the interface to the external job runner. Jobs are
// launched from a template with a variable bag and polled until terminal.
type AutomationRunner interface {
	ListJobTemplates(ctx context.Context) ([]entity.PlaybookTemplate, error)
	LaunchJob(ctx context.Context, templateID string, extraVars map[string]interface{}) (string, error)
	JobStatus(ctx context.Context, jobID string) (string, string, error)
	JobEvents(ctx context.Context, jobID string) ([]entity.ExecutionEvent, error)
	CancelJob(ctx context.Context, jobID string) error
	Ping(ctx context.Context) error
}

type AWXRepository struct {
	baseURL       string
	token         string
	client        *http.Client
	launchRetries uint
	templateCache *ttlcache.Cache[string, []entity.PlaybookTemplate]
}

func NewAWXRepository(baseURL, token string, launchRetries uint) *AWXRepository {
	r := &AWXRepository{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		client:        &http.Client{Timeout: 30 * time.Second},
		launchRetries: launchRetries,
		templateCache: ttlcache.New(ttlcache.WithTTL[string, []entity.PlaybookTemplate](time.Minute)),
	}
	go r.templateCache.Start()
	return r
}

func (r *AWXRepository) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, buf)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("runner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, ErrRunnerNotFound
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("runner returned %s for %s %s", resp.Status, method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode runner response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (r *AWXRepository) ListJobTemplates(ctx context.Context) ([]entity.PlaybookTemplate, error) {
	if item := r.templateCache.Get("templates"); item != nil {
		return item.Value(), nil
	}

	var result struct {
		Results []struct {
			ID          int    `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if _, err := r.do(ctx, http.MethodGet, "/api/v2/job_templates/", nil, &result); err != nil {
		return nil, err
	}

	templates := make([]entity.PlaybookTemplate, 0, len(result.Results))
	for _, jt := range result.Results {
		templates = append(templates, entity.PlaybookTemplate{
			PlaybookID: fmt.Sprintf("%d", jt.ID),
			Name:       jt.Name,
		})
	}
	r.templateCache.Set("templates", templates, ttlcache.DefaultTTL)
	return templates, nil
}

func (r *AWXRepository) LaunchJob(ctx context.Context, templateID string, extraVars map[string]interface{}) (string, error) {
	payload := map[string]interface{}{}
	if len(extraVars) > 0 {
		payload["extra_vars"] = extraVars
	}

	var jobID string
	err := retry.Retry(r.launchRetries, time.Second, func() error {
		var result struct {
			Job int `json:"job"`
			ID  int `json:"id"`
		}
		if _, err := r.do(ctx, http.MethodPost, fmt.Sprintf("/api/v2/job_templates/%s/launch/", templateID), payload, &result); err != nil {
			return err
		}
		id := result.Job
		if id == 0 {
			id = result.ID
		}
		if id == 0 {
			return fmt.Errorf("launch response missing job id")
		}
		jobID = fmt.Sprintf("%d", id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch job template %s: %w", templateID, err)
	}
	return jobID, nil
}

// JobStatus returns the runner-reported status and, when the job is
// finished, its finish timestamp.
func (r *AWXRepository) JobStatus(ctx context.Context, jobID string) (string, string, error) {
	var result struct {
		Status   string `json:"status"`
		Finished string `json:"finished"`
	}
	if _, err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/v2/jobs/%s/", jobID), nil, &result); err != nil {
		return "", "", err
	}
	return result.Status, result.Finished, nil
}

func (r *AWXRepository) JobEvents(ctx context.Context, jobID string) ([]entity.ExecutionEvent, error) {
	var result struct {
		Results []struct {
			Event   string `json:"event"`
			Stdout  string `json:"stdout"`
			Created string `json:"created"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/api/v2/jobs/%s/events/?order_by=created&page_size=200", jobID)
	if _, err := r.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	events := make([]entity.ExecutionEvent, 0, len(result.Results))
	for _, ev := range result.Results {
		created, _ := time.Parse(time.RFC3339, ev.Created)
		events = append(events, entity.ExecutionEvent{
			Event:     ev.Event,
			Message:   ev.Stdout,
			CreatedAt: created,
		})
	}
	return events, nil
}

func (r *AWXRepository) CancelJob(ctx context.Context, jobID string) error {
	status, err := r.do(ctx, http.MethodPost, fmt.Sprintf("/api/v2/jobs/%s/cancel/", jobID), nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return fmt.Errorf("runner did not accept cancel for job %s: %d", jobID, status)
	}
	return nil
}

func (r *AWXRepository) Ping(ctx context.Context) error {
	_, err := r.do(ctx, http.MethodGet, "/api/v2/", nil, nil)
	return err
}
