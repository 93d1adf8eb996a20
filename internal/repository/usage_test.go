//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageRepository_EnsureAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUsageRepository(pool)
	orgID := uuid.NewString()

	require.NoError(t, repo.EnsureUsage(ctx, orgID, 1000))

	usage, err := repo.GetUsage(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, usage.OrgID)
	assert.Equal(t, int64(0), usage.Used)
	assert.Equal(t, int64(1000), usage.Limit)
}

func TestUsageRepository_EnsureUsage_Idempotent(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUsageRepository(pool)
	orgID := uuid.NewString()

	require.NoError(t, repo.EnsureUsage(ctx, orgID, 1000))
	require.NoError(t, repo.IncrementUsage(ctx, orgID, 5))

	// A second ensure keeps the existing counter
	require.NoError(t, repo.EnsureUsage(ctx, orgID, 9999))

	usage, err := repo.GetUsage(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.Used)
	assert.Equal(t, int64(1000), usage.Limit)
}

func TestUsageRepository_GetUsage_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUsageRepository(pool)

	_, err := repo.GetUsage(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUsageNotFound)
}

func TestUsageRepository_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUsageRepository(pool)
	orgID := uuid.NewString()

	require.NoError(t, repo.EnsureUsage(ctx, orgID, 100))
	require.NoError(t, repo.IncrementUsage(ctx, orgID, 1))
	require.NoError(t, repo.IncrementUsage(ctx, orgID, 1))

	usage, err := repo.GetUsage(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.Used)
}

func TestUsageRepository_IncrementUsage_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewUsageRepository(pool)

	err := repo.IncrementUsage(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, domain.ErrUsageNotFound)
}
