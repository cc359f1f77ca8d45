package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/pyama86/YARO/engine"
)

func TestCatalogResolvePrimaryLabel(t *testing.T) {
	catalog := engine.NewCatalog(testTemplates)

	template, err := catalog.Resolve(&entity.Classification{Labels: []string{"disk_full"}})
	require.NoError(t, err)
	assert.Equal(t, "10", template.PlaybookID)
}

func TestCatalogResolveSecondaryLabel(t *testing.T) {
	catalog := engine.NewCatalog(testTemplates)

	// primary has no template; the next label in order wins
	template, err := catalog.Resolve(&entity.Classification{Labels: []string{"unknown_label", "database_down"}})
	require.NoError(t, err)
	assert.Equal(t, "7", template.PlaybookID)
}

func TestCatalogResolveStorageCatchAll(t *testing.T) {
	catalog := engine.NewCatalog(testTemplates)

	for _, label := range []string{"disk_pressure", "storage_alert", "filesystem_readonly", "no_space_left"} {
		template, err := catalog.Resolve(&entity.Classification{Labels: []string{label}})
		require.NoError(t, err, "label %s", label)
		assert.Equal(t, "disk_full", template.Label, "label %s", label)
	}
}

func TestCatalogResolveExactMatchBeatsCatchAll(t *testing.T) {
	templates := append([]entity.PlaybookTemplate{}, testTemplates...)
	templates = append(templates, entity.PlaybookTemplate{
		Label:      "storage_degraded",
		PlaybookID: "42",
		Name:       "Rebalance storage pool",
		RiskScore:  0.5,
	})
	catalog := engine.NewCatalog(templates)

	template, err := catalog.Resolve(&entity.Classification{Labels: []string{"storage_degraded"}})
	require.NoError(t, err)
	assert.Equal(t, "42", template.PlaybookID)
}

func TestCatalogMissingTemplates(t *testing.T) {
	catalog := engine.NewCatalog(testTemplates)

	missing := catalog.MissingTemplates([]entity.PlaybookTemplate{
		{PlaybookID: "10", Name: "Clean up var filesystem"},
	})
	assert.Equal(t, []string{"7"}, missing)

	missing = catalog.MissingTemplates([]entity.PlaybookTemplate{
		{PlaybookID: "10"},
		{PlaybookID: "7"},
	})
	assert.Empty(t, missing)
}

func TestCatalogResolveNotFound(t *testing.T) {
	catalog := engine.NewCatalog(testTemplates)

	_, err := catalog.Resolve(&entity.Classification{Labels: []string{"certificate_expired"}})
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)

	_, err = catalog.Resolve(&entity.Classification{})
	assert.ErrorIs(t, err, engine.ErrPlanNotFound)
}
