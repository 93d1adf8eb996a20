//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestAgent(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{
		ID:        uuid.NewString(),
		OrgID:     uuid.NewString(),
		Name:      "Support Bot",
		Locale:    "en",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewConversationRepository(pool).CreateAgent(ctx, agent))
	return agent
}

func testVector(seed float32) []float32 {
	v := make([]float32, 1536)
	for i := range v {
		v[i] = seed
	}
	return v
}

func newTextChunk(agentID, title, content string) *domain.KnowledgeChunk {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.KnowledgeChunk{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Title:     title,
		Content:   content,
		Source:    domain.ChunkSourceText,
		Meta:      domain.TextMeta{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestKnowledgeChunkRepository_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	chunk := newTextChunk(agent.ID, "Refund Policy", "Refunds within 30 days.")
	require.NoError(t, repo.Insert(ctx, chunk))

	retrieved, err := repo.GetByID(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, chunk.ID, retrieved.ID)
	assert.Equal(t, chunk.AgentID, retrieved.AgentID)
	assert.Equal(t, chunk.Title, retrieved.Title)
	assert.Equal(t, chunk.Content, retrieved.Content)
	assert.Equal(t, domain.ChunkSourceText, retrieved.Source)
	assert.True(t, retrieved.Pending())
}

func TestKnowledgeChunkRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeChunkRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestKnowledgeChunkRepository_SourceMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	chunk := &domain.KnowledgeChunk{
		ID:      uuid.NewString(),
		AgentID: agent.ID,
		Title:   "manual (Part 2/3)",
		Content: "Installation steps.",
		Source:  domain.ChunkSourceDocument,
		Meta: domain.DocumentMeta{
			FileID:      "file-9",
			Filename:    "manual.pdf",
			ChunkIndex:  1,
			TotalChunks: 3,
		},
		FileID:    "file-9",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(ctx, chunk))

	retrieved, err := repo.GetByID(ctx, chunk.ID)
	require.NoError(t, err)

	meta, ok := retrieved.Meta.(domain.DocumentMeta)
	require.True(t, ok)
	assert.Equal(t, "manual.pdf", meta.Filename)
	assert.Equal(t, 1, meta.ChunkIndex)
	assert.Equal(t, 3, meta.TotalChunks)
	assert.Equal(t, "file-9", retrieved.FileID)
}

func TestKnowledgeChunkRepository_ListPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	other := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	pending := newTextChunk(agent.ID, "", "needs embedding")
	require.NoError(t, repo.Insert(ctx, pending))

	embedded := newTextChunk(agent.ID, "", "already embedded")
	embedded.Embedding = testVector(0.1)
	require.NoError(t, repo.Insert(ctx, embedded))

	otherPending := newTextChunk(other.ID, "", "other agent")
	require.NoError(t, repo.Insert(ctx, otherPending))

	list, err := repo.ListPending(ctx, agent.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	all, err := repo.ListPending(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestKnowledgeChunkRepository_ListAgentsWithPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	require.NoError(t, repo.Insert(ctx, newTextChunk(agent.ID, "", "first")))
	require.NoError(t, repo.Insert(ctx, newTextChunk(agent.ID, "", "second")))

	ids, err := repo.ListAgentsWithPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{agent.ID}, ids)
}

func TestKnowledgeChunkRepository_UpdateEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	chunk := newTextChunk(agent.ID, "", "to embed")
	require.NoError(t, repo.Insert(ctx, chunk))

	require.NoError(t, repo.UpdateEmbedding(ctx, chunk.ID, testVector(0.5)))

	retrieved, err := repo.GetByID(ctx, chunk.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.Pending())
	assert.Len(t, retrieved.Embedding, 1536)
}

func TestKnowledgeChunkRepository_UpdateEmbedding_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeChunkRepository(pool)

	err := repo.UpdateEmbedding(ctx, uuid.NewString(), testVector(0.5))
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestKnowledgeChunkRepository_UpdateContent_ClearsEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	chunk := newTextChunk(agent.ID, "Old Title", "old content")
	chunk.Embedding = testVector(0.3)
	require.NoError(t, repo.Insert(ctx, chunk))

	require.NoError(t, repo.UpdateContent(ctx, chunk.ID, "New Title", "new content"))

	retrieved, err := repo.GetByID(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", retrieved.Title)
	assert.Equal(t, "new content", retrieved.Content)
	assert.True(t, retrieved.Pending())
}

func TestKnowledgeChunkRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	chunk := newTextChunk(agent.ID, "", "to delete")
	require.NoError(t, repo.Insert(ctx, chunk))

	require.NoError(t, repo.Delete(ctx, chunk.ID))

	_, err := repo.GetByID(ctx, chunk.ID)
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestKnowledgeChunkRepository_Delete_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeChunkRepository(pool)

	err := repo.Delete(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestKnowledgeChunkRepository_NearestNeighbors(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	near := newTextChunk(agent.ID, "", "close match")
	near.Embedding = testVector(1.0)
	require.NoError(t, repo.Insert(ctx, near))

	far := newTextChunk(agent.ID, "", "distant match")
	far.Embedding = testVector(-1.0)
	require.NoError(t, repo.Insert(ctx, far))

	pending := newTextChunk(agent.ID, "", "no embedding yet")
	require.NoError(t, repo.Insert(ctx, pending))

	matches, err := repo.NearestNeighbors(ctx, testVector(1.0), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near.ID, matches[0].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestKnowledgeChunkRepository_SearchText(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	other := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	require.NoError(t, repo.Insert(ctx, newTextChunk(agent.ID, "Refund Policy", "Refunds within 30 days.")))
	require.NoError(t, repo.Insert(ctx, newTextChunk(agent.ID, "Shipping", "Ships in 2 days.")))
	require.NoError(t, repo.Insert(ctx, newTextChunk(other.ID, "Refund Policy", "Other agent refunds.")))

	results, err := repo.SearchText(ctx, agent.ID, "refund", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, agent.ID, results[0].AgentID)
	assert.Equal(t, "Refund Policy", results[0].Title)
}

func TestKnowledgeChunkRepository_ListByAgent_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	agent := createTestAgent(ctx, t, pool)
	repo := NewKnowledgeChunkRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []string
	for i := 0; i < 5; i++ {
		chunk := newTextChunk(agent.ID, "", "chunk body")
		chunk.CreatedAt = base.Add(time.Duration(i) * time.Second)
		chunk.UpdatedAt = chunk.CreatedAt
		require.NoError(t, repo.Insert(ctx, chunk))
		ids = append(ids, chunk.ID)
	}

	first, err := repo.ListByAgent(ctx, agent.ID, time.Time{}, "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[4], first[0].ID)
	assert.Equal(t, ids[3], first[1].ID)

	second, err := repo.ListByAgent(ctx, agent.ID, first[1].CreatedAt, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, ids[2], second[0].ID)
	assert.Equal(t, ids[1], second[1].ID)
}
