package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/logger"
)

func TestTemplateService_SnapshotAndApply(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTemplateService(env.templates, env.findings, logger.NewNop())
	ctx := context.Background()

	source, err := env.service.CreateFinding(ctx, CreateFindingInput{
		Title:            "App Vulnerable to XSS",
		Description:      "Reflected XSS in the search form",
		Severity:         "High",
		VulnerabilityIDs: []string{"CWE-79"},
	})
	require.NoError(t, err)

	tpl, err := svc.SnapshotTemplate(ctx, source.ID().String())
	require.NoError(t, err)
	assert.Equal(t, "App Vulnerable to XSS", tpl.Title())

	t.Run("replace overwrites descriptive fields only", func(t *testing.T) {
		target := env.createFinding(t, "Different title")
		_, err := env.service.AcceptRisk(ctx, TransitionInput{
			FindingID: target.ID().String(), ActorID: actorID(), Note: "accepted",
		})
		require.NoError(t, err)

		updated, err := svc.ApplyTemplate(ctx, ApplyTemplateInput{
			TemplateID: tpl.ID().String(),
			FindingID:  target.ID().String(),
			Mode:       "replace",
		})
		require.NoError(t, err)
		assert.Equal(t, "App Vulnerable to XSS", updated.Title())
		assert.Equal(t, finding.SeverityHigh, updated.Severity())
		assert.True(t, updated.Status().RiskAccepted, "applying a template never touches status flags")
		require.Len(t, updated.Notes(), 1, "applying a template never touches notes")
	})

	t.Run("merge keeps non-empty target fields", func(t *testing.T) {
		target := env.createFinding(t, "Kept title")

		updated, err := svc.ApplyTemplate(ctx, ApplyTemplateInput{
			TemplateID: tpl.ID().String(),
			FindingID:  target.ID().String(),
			Mode:       "merge",
		})
		require.NoError(t, err)
		assert.Equal(t, "Kept title", updated.Title())
		assert.Equal(t, "Reflected XSS in the search form", updated.Description())
	})

	t.Run("mode defaults to merge", func(t *testing.T) {
		target := env.createFinding(t, "Another kept title")

		updated, err := svc.ApplyTemplate(ctx, ApplyTemplateInput{
			TemplateID: tpl.ID().String(),
			FindingID:  target.ID().String(),
		})
		require.NoError(t, err)
		assert.Equal(t, "Another kept title", updated.Title())
	})
}

func TestTemplateService_CreateFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTemplateService(env.templates, env.findings, logger.NewNop())
	ctx := context.Background()

	source := env.createFinding(t, "Recurring misconfiguration")
	tpl, err := svc.SnapshotTemplate(ctx, source.ID().String())
	require.NoError(t, err)

	created, err := svc.CreateFromTemplate(ctx, tpl.ID().String())
	require.NoError(t, err)
	assert.Equal(t, "Recurring misconfiguration", created.Title())
	assert.True(t, created.Status().Active)
	require.NotNil(t, created.TemplateID())
	assert.True(t, created.TemplateID().Equals(tpl.ID()))

	stored, err := env.service.GetFinding(ctx, created.ID().String())
	require.NoError(t, err)
	assert.Equal(t, created.ID().String(), stored.ID().String())
}

func TestTemplateService_DeleteDoesNotCascade(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTemplateService(env.templates, env.findings, logger.NewNop())
	ctx := context.Background()

	source := env.createFinding(t, "Template source")
	tpl, err := svc.SnapshotTemplate(ctx, source.ID().String())
	require.NoError(t, err)

	created, err := svc.CreateFromTemplate(ctx, tpl.ID().String())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTemplate(ctx, tpl.ID().String()))

	_, err = svc.GetTemplate(ctx, tpl.ID().String())
	assert.True(t, finding.IsTemplateNotFound(err))

	survivor, err := env.service.GetFinding(ctx, created.ID().String())
	require.NoError(t, err)
	assert.Equal(t, "Template source", survivor.Title(), "findings created from a deleted template keep their data")
}
