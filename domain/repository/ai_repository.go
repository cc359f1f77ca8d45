package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Songmu/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/pyama86/YARO/domain/entity"
)

type AIRepositorier interface {
	GenerateResolutionSummary(incident *entity.Incident, plan *entity.Plan, execution *entity.Execution, disposition entity.Disposition) (string, error)
	GenerateWorkNotes(incident *entity.Incident, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation) (string, error)
}

type AIRepository struct {
	client *openai.Client
	model  string
}

// NewAIRepository returns (nil, nil) when no API key is configured; closure
// summaries fall back to templated text in that case.
func NewAIRepository() (*AIRepository, error) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("AZURE_OPENAI_KEY") == "" {
		return nil, nil
	}

	var model = "gpt-4"
	if os.Getenv("OPENAI_MODEL") != "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	client, err := newOpenAIClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &AIRepository{
		client: client,
		model:  model,
	}, nil
}

func newOpenAIClient() (*openai.Client, error) {
	if os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
		return newAzureClient()
	}

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	}

	c := openai.NewClient(options...)
	return &c, nil
}

func newAzureClient() (*openai.Client, error) {
	key := os.Getenv("AZURE_OPENAI_KEY")
	if key == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}
	var azureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")

	var azureOpenAIAPIVersion = "2025-01-01-preview"

	if os.Getenv("AZURE_OPENAI_API_VERSION") != "" {
		azureOpenAIAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}

	c := openai.NewClient(
		azure.WithEndpoint(azureOpenAIEndpoint, azureOpenAIAPIVersion),
		azure.WithAPIKey(key),
	)
	return &c, nil
}

func (h *AIRepository) GenerateResolutionSummary(incident *entity.Incident, plan *entity.Plan, execution *entity.Execution, disposition entity.Disposition) (string, error) {
	prompt := fmt.Sprintf(`## Task
Write a resolution summary for an automatically remediated IT incident.
The summary must mention the playbook used, whether the execution succeeded,
failed or timed out, and the final outcome. Plain text, 500 characters max,
no markdown.

## Incident
number: %s
service: %s
severity: %s
description: %s

## Remediation
playbook: %s (ID: %s)
execution status: %s
outcome: %s`,
		incident.Number, incident.Service, incident.Severity, incident.ShortDescription,
		plan.PlaybookName, plan.PlaybookID, execution.Status, disposition)

	return h.callOpenAIWithRetry(prompt)
}

func (h *AIRepository) GenerateWorkNotes(incident *entity.Incident, plan *entity.Plan, execution *entity.Execution, validation *entity.Validation) (string, error) {
	prompt := fmt.Sprintf(`## Task
Write operator work notes for an automatically remediated IT incident.
Cover what was attempted, the execution result and the validation signals a
human should look at. Plain text, 1000 characters max, no markdown.

## Incident
number: %s
description: %s

## Remediation
playbook: %s (ID: %s)
execution status: %s
validation disposition: %s
validation signals: %v`,
		incident.Number, incident.Description,
		plan.PlaybookName, plan.PlaybookID, execution.Status,
		validation.Disposition, validation.Signals)

	return h.callOpenAIWithRetry(prompt)
}

func (h *AIRepository) callOpenAIWithRetry(prompt string) (string, error) {
	var result string
	err := retry.Retry(3, time.Second*3, func() error {
		resp, err := h.client.Chat.Completions.New(context.Background(), openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: h.model,
		})
		if err != nil {
			return err
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response from OpenAI")
		}

		result = resp.Choices[0].Message.Content
		return nil
	})

	return result, err
}
