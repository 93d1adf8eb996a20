package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeChunkRepository handles persistence of knowledge chunks and their
// embeddings.
type KnowledgeChunkRepository struct {
	db dbtx
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: pool}
}

func NewKnowledgeChunkRepositoryWithTx(tx pgx.Tx) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: tx}
}

func (r *KnowledgeChunkRepository) Insert(ctx context.Context, c *domain.KnowledgeChunk) error {
	meta, err := domain.MarshalSourceMeta(c.Meta)
	if err != nil {
		return err
	}

	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_chunks
			(id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID,
		c.AgentID,
		nullableString(c.Title),
		c.Content,
		c.Source,
		meta,
		nullableString(c.FileID),
		embedding,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *KnowledgeChunkRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at
		 FROM knowledge_chunks WHERE id = $1`,
		id,
	)
	chunk, err := scanChunkRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return chunk, nil
}

// ListPending returns chunks without an embedding, oldest first, optionally
// scoped to one agent.
func (r *KnowledgeChunkRepository) ListPending(ctx context.Context, agentID string, limit int) ([]*domain.KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at
		 FROM knowledge_chunks WHERE embedding IS NULL`
	args := []any{}

	if agentID != "" {
		query += ` AND agent_id = $1 ORDER BY created_at ASC LIMIT $2`
		args = append(args, agentID, limit)
	} else {
		query += ` ORDER BY created_at ASC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListAgentsWithPending returns the IDs of agents that still have unembedded
// chunks.
func (r *KnowledgeChunkRepository) ListAgentsWithPending(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT agent_id FROM knowledge_chunks WHERE embedding IS NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *KnowledgeChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET embedding = $1, updated_at = $2 WHERE id = $3`,
		pgvector.NewVector(embedding), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// UpdateContent edits title and content and clears the embedding so the
// chunk becomes pending again.
func (r *KnowledgeChunkRepository) UpdateContent(ctx context.Context, id, title, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET title = $1, content = $2, embedding = NULL, updated_at = $3 WHERE id = $4`,
		nullableString(title), content, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *KnowledgeChunkRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// NearestNeighbors searches embedded chunks by cosine distance. The query is
// not agent-scoped; callers post-filter the candidates.
func (r *KnowledgeChunkRepository) NearestNeighbors(ctx context.Context, embedding []float32, limit int) ([]service.ChunkMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, 1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM knowledge_chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY score DESC
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]service.ChunkMatch, 0, limit)
	for rows.Next() {
		var m service.ChunkMatch
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SearchText matches query as a case-insensitive substring of content or
// title, scoped to the agent, in storage order.
func (r *KnowledgeChunkRepository) SearchText(ctx context.Context, agentID, query string, limit int) ([]*domain.KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at
		 FROM knowledge_chunks
		 WHERE agent_id = $1 AND (content ILIKE $2 OR title ILIKE $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		agentID, "%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListByAgent returns the agent's chunks, newest first, with keyset
// pagination over (created_at, id).
func (r *KnowledgeChunkRepository) ListByAgent(ctx context.Context, agentID string, afterCreatedAt time.Time, afterID string, limit int) ([]*domain.KnowledgeChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	if afterID != "" {
		rows, err = r.db.Query(ctx,
			`SELECT id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at
			 FROM knowledge_chunks
			 WHERE agent_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			agentID, afterCreatedAt, afterID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, agent_id, title, content, source, source_metadata, file_id, embedding, created_at, updated_at
			 FROM knowledge_chunks
			 WHERE agent_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			agentID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]*domain.KnowledgeChunk, error) {
	chunks := make([]*domain.KnowledgeChunk, 0)
	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func scanChunkRow(row pgx.Row) (*domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var title, fileID *string
	var meta []byte
	var embedding *pgvector.Vector

	err := row.Scan(&c.ID, &c.AgentID, &title, &c.Content, &c.Source, &meta, &fileID, &embedding, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if title != nil {
		c.Title = *title
	}
	if fileID != nil {
		c.FileID = *fileID
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}

	c.Meta, err = domain.UnmarshalSourceMeta(c.Source, meta)
	if err != nil {
		return nil, err
	}

	return &c, nil
}
