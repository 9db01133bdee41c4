package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/internal/infra/memory"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/logger"
)

func TestControls(t *testing.T) {
	assert.Equal(t, ControlState{}, Controls(0, false), "nothing selected disables everything")
	assert.Equal(t, ControlState{}, Controls(0, true), "status section alone is not enough")
	assert.Equal(t, ControlState{EditEnabled: true}, Controls(3, false))
	assert.Equal(t, ControlState{EditEnabled: true, StatusControlsEnabled: true}, Controls(3, true))
}

func TestBulkEditService_ApplyBulk(t *testing.T) {
	env := newTestEnv(t)
	bulk := NewBulkEditService(env.findings, nil, logger.NewNop())
	ctx := context.Background()
	yes := true

	t.Run("uniform flag change succeeds for every finding", func(t *testing.T) {
		var ids []string
		for _, title := range []string{"First", "Second", "Third"} {
			ids = append(ids, env.createFinding(t, title).ID().String())
		}

		out, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs: ids,
			ActorID:    actorID(),
			Note:       "triaged as confirmed",
			Verified:   &yes,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.Succeeded)
		assert.Zero(t, out.Failed)
		assert.Empty(t, out.Errors)

		for _, id := range ids {
			f, err := env.service.GetFinding(ctx, id)
			require.NoError(t, err)
			assert.True(t, f.Status().Verified)
			require.Len(t, f.Notes(), 1, "each finding gets exactly one note per batch")
		}
	})

	t.Run("contradictory flags reject the batch before any write", func(t *testing.T) {
		f := env.createFinding(t, "Untouched")

		_, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs: []string{f.ID().String()},
			ActorID:    actorID(),
			Note:       "contradiction",
			Active:     &yes,
			Mitigated:  &yes,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, finding.ErrConflictingFields)

		stored, err := env.service.GetFinding(ctx, f.ID().String())
		require.NoError(t, err)
		assert.Empty(t, stored.Notes(), "rejected batch must not touch any finding")
	})

	t.Run("verified and false positive together reject the batch", func(t *testing.T) {
		f := env.createFinding(t, "Also untouched")

		_, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs:    []string{f.ID().String()},
			ActorID:       actorID(),
			Note:          "contradiction",
			Verified:      &yes,
			FalsePositive: &yes,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, finding.ErrConflictingFields)

		stored, err := env.service.GetFinding(ctx, f.ID().String())
		require.NoError(t, err)
		assert.Empty(t, stored.Notes(), "rejected batch must not touch any finding")
	})

	t.Run("ineligible finding fails alone, rest of batch succeeds", func(t *testing.T) {
		good1 := env.createFinding(t, "Closable one")
		good2 := env.createFinding(t, "Closable two")

		// Inactive and unmitigated: bulk-mitigating it has no valid
		// close transition.
		ineligible := env.createFinding(t, "Not closable")
		no := false
		_, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs: []string{ineligible.ID().String()},
			ActorID:    actorID(),
			Note:       "park it",
			Active:     &no,
		})
		require.NoError(t, err)

		out, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs: []string{good1.ID().String(), good2.ID().String(), ineligible.ID().String()},
			ActorID:    actorID(),
			Note:       "mass close",
			Mitigated:  &yes,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Succeeded)
		assert.Equal(t, 1, out.Failed)
		require.Contains(t, out.Errors, ineligible.ID().String())
		assert.True(t, finding.IsTransitionPrecondition(out.Errors[ineligible.ID().String()]))

		f1, err := env.service.GetFinding(ctx, good1.ID().String())
		require.NoError(t, err)
		assert.True(t, f1.Status().Mitigated)

		skipped, err := env.service.GetFinding(ctx, ineligible.ID().String())
		require.NoError(t, err)
		assert.False(t, skipped.Status().Mitigated)
	})

	t.Run("empty update set is rejected", func(t *testing.T) {
		f := env.createFinding(t, "No-op target")
		_, err := bulk.ApplyBulk(ctx, BulkEditInput{
			FindingIDs: []string{f.ID().String()},
			ActorID:    actorID(),
			Note:       "nothing to do",
		})
		require.Error(t, err)
	})
}

func TestBulkEditService_ImpliedTransitions(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewFindingRepository(store)
	endpoints := memory.NewEndpointRepository(store)
	notifier := &fakeNotifier{}
	svc := NewFindingService(repo, endpoints, notifier, nil, logger.NewNop())
	bulk := NewBulkEditService(repo, nil, logger.NewNop())
	ctx := context.Background()
	yes := true

	f, err := svc.CreateFinding(ctx, CreateFindingInput{
		Title: "Closed finding", Severity: "Medium", Endpoints: []string{"https://x.example.com"},
	})
	require.NoError(t, err)
	_, err = svc.CloseFinding(ctx, TransitionInput{FindingID: f.ID().String(), ActorID: actorID(), Note: "done"})
	require.NoError(t, err)

	// Bulk-activating a mitigated finding implies a reopen, including the
	// endpoint mirror.
	out, err := bulk.ApplyBulk(ctx, BulkEditInput{
		FindingIDs: []string{f.ID().String()},
		ActorID:    actorID(),
		Note:       "back in scope",
		Active:     &yes,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)

	stored, err := svc.GetFinding(ctx, f.ID().String())
	require.NoError(t, err)
	assert.True(t, stored.Status().Active)
	assert.False(t, stored.Status().Mitigated)

	eps, err := endpoints.ListByFinding(ctx, f.ID())
	require.NoError(t, err)
	assert.False(t, eps[0].Mitigated())
}
