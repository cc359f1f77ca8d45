package engine

import (
	"sort"
	"strings"

	"github.com/pyama86/YARO/domain/entity"
)

// storageKeywords is the catch-all for the many ways a disk-space incident
// gets labeled. Any label containing one of these resolves to the catalog's
// disk_full template when no exact match exists.
var storageKeywords = []string{"disk", "storage", "filesystem", "space"}

const storageFallbackLabel = "disk_full"

// Catalog maps classification labels to playbook templates. It is built
// from configuration at startup and holds no execution state.
type Catalog struct {
	byLabel map[string]entity.PlaybookTemplate
}

func NewCatalog(templates []entity.PlaybookTemplate) *Catalog {
	byLabel := make(map[string]entity.PlaybookTemplate, len(templates))
	for _, t := range templates {
		byLabel[t.Label] = t
	}
	return &Catalog{byLabel: byLabel}
}

// Resolve looks up a plan template for the classification. The primary label
// wins; remaining labels are tried in order, then the storage catch-all.
// ErrPlanNotFound means the incident must be escalated.
func (c *Catalog) Resolve(classification *entity.Classification) (*entity.PlaybookTemplate, error) {
	for _, label := range classification.Labels {
		if t, ok := c.byLabel[label]; ok {
			return &t, nil
		}
	}

	for _, label := range classification.Labels {
		lower := strings.ToLower(label)
		for _, keyword := range storageKeywords {
			if strings.Contains(lower, keyword) {
				if t, ok := c.byLabel[storageFallbackLabel]; ok {
					return &t, nil
				}
			}
		}
	}

	return nil, ErrPlanNotFound
}

// MissingTemplates reports configured playbook IDs the runner's template
// catalog does not offer. Used at startup to surface configuration drift
// before an incident hits a dead playbook.
func (c *Catalog) MissingTemplates(available []entity.PlaybookTemplate) []string {
	offered := make(map[string]struct{}, len(available))
	for _, t := range available {
		offered[t.PlaybookID] = struct{}{}
	}

	seen := map[string]struct{}{}
	var missing []string
	for _, t := range c.byLabel {
		if _, ok := offered[t.PlaybookID]; ok {
			continue
		}
		if _, dup := seen[t.PlaybookID]; dup {
			continue
		}
		seen[t.PlaybookID] = struct{}{}
		missing = append(missing, t.PlaybookID)
	}
	sort.Strings(missing)
	return missing
}
