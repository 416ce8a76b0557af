package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
)

func TestMemoryStore_ClaimOrder(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	late, _, err := store.Add(ctx, newStoreJob("", now.Add(-time.Second)))
	require.NoError(t, err)
	early, _, err := store.Add(ctx, newStoreJob("", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, _, err = store.Add(ctx, newStoreJob("", now.Add(time.Minute)))
	require.NoError(t, err)

	claimed, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, early.ID, claimed[0].ID)
	assert.Equal(t, late.ID, claimed[1].ID)

	again, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryStore_RecoverStale(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Add(ctx, newStoreJob("status:a", now))
	require.NoError(t, err)

	claimed, err := store.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	recovered, err := store.RecoverStale(ctx, now, now)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	later := now.Add(10 * time.Minute)

	recovered, err = store.RecoverStale(ctx, later.Add(-5*time.Minute), later)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	hasKey, err := store.HasKey(ctx, "status:a")
	require.NoError(t, err)
	assert.True(t, hasKey)

	claimed, err = store.ClaimDue(ctx, later, 1)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestMemoryStore_LateFinishAfterRecoverIsRejected(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(10 * time.Minute)

	_, _, err := store.Add(ctx, newStoreJob("scrape:1", now))
	require.NoError(t, err)

	claimed, err := store.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	slow := claimed[0]

	recovered, err := store.RecoverStale(ctx, later, later)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	slow.UpdatedAt = later
	assert.ErrorIs(t, store.Finish(ctx, slow, queue.StateCompleted, time.Hour), &domainerrors.ErrJobClaimLost{})

	again, err := store.ClaimDue(ctx, later, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)

	assert.ErrorIs(t, store.Requeue(ctx, slow, later), &domainerrors.ErrJobClaimLost{})

	current := again[0]
	current.UpdatedAt = later
	require.NoError(t, store.Finish(ctx, current, queue.StateCompleted, time.Hour))

	job, err := store.Get(ctx, slow.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateCompleted, job.State)

	hasKey, err := store.HasKey(ctx, "scrape:1")
	require.NoError(t, err)
	assert.False(t, hasKey)
}
