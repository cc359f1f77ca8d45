package repository

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
	goconfluence "github.com/virtomize/confluence-go-api"
)

type ConfluenceRepository struct {
	ancestorID string
	spaceKey   string
	client     *goconfluence.API
}

func NewConfluenceRepository(domain, user, password, spaceKey, ancestorID string) (*ConfluenceRepository, error) {
	api, err := goconfluence.NewAPI(
		fmt.Sprintf("https://%s.atlassian.net/wiki/rest/api", domain),
		user,
		password)
	if err != nil {
		return nil, fmt.Errorf("failed to create confluence api: %w", err)
	}

	return &ConfluenceRepository{
		ancestorID: ancestorID,
		spaceKey:   spaceKey,
		client:     api,
	}, nil
}

// ExportReport publishes a remediation report. The body is markdown; it is
// converted to HTML and sanitized before being stored as a page.
func (c *ConfluenceRepository) ExportReport(ctx context.Context, title, markdown string) error {
	unsafe := blackfriday.Run([]byte(markdown))
	body := bluemonday.UGCPolicy().SanitizeBytes(unsafe)

	data := &goconfluence.Content{
		Type:  "page",
		Title: title,
		Body: goconfluence.Body{
			Storage: goconfluence.Storage{
				Value:          string(body),
				Representation: "storage",
			},
		},
		Version: &goconfluence.Version{ // mandatory
			Number: 1,
		},
	}
	if c.ancestorID != "" {
		data.Ancestors = append(data.Ancestors, goconfluence.Ancestor{
			ID: c.ancestorID,
		})
	}

	if c.spaceKey != "" {
		data.Space = &goconfluence.Space{
			Key: c.spaceKey,
		}
	}

	_, err := c.client.CreateContent(data)
	if err != nil {
		return fmt.Errorf("failed to create confluence page: %w", err)
	}

	return nil
}
