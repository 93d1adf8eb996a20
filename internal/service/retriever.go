package service

import (
	"context"
	"fmt"
	"log"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
)

const (
	// DefaultRetrievalLimit caps retrieval results per query.
	DefaultRetrievalLimit = 5

	candidateMultiplier = 4
	minCandidates       = 20
	maxCandidates       = 200
)

// EmbeddingClient defines the interface for generating a query embedding
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkMatch is a nearest-neighbor candidate from the vector index.
type ChunkMatch struct {
	ID    string
	Score float32
}

// ChunkSearchRepository defines the repository interface for retrieval
type ChunkSearchRepository interface {
	// NearestNeighbors searches the embedded-chunk index. The query is not
	// agent-scoped; callers must post-filter candidates.
	NearestNeighbors(ctx context.Context, embedding []float32, limit int) ([]ChunkMatch, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error)
	// SearchText matches query as a case-insensitive substring of content
	// and title, in storage order.
	SearchText(ctx context.Context, agentID, query string, limit int) ([]*domain.KnowledgeChunk, error)
}

// Retriever returns the most relevant knowledge chunks for a query, preferring
// vector similarity and falling back to substring matching when vector search
// is unavailable or finds nothing.
type Retriever struct {
	embedder EmbeddingClient
	repo     ChunkSearchRepository
}

// NewRetriever creates a new Retriever instance
func NewRetriever(embedder EmbeddingClient, repo ChunkSearchRepository) *Retriever {
	return &Retriever{
		embedder: embedder,
		repo:     repo,
	}
}

// Retrieve returns up to limit chunks owned by agentID, ordered by descending
// score. Fallback results carry the sentinel score 0; callers cannot otherwise
// distinguish which path produced a result.
func (r *Retriever) Retrieve(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}

	results, err := r.retrieveVector(ctx, agentID, query, limit)
	if err != nil {
		log.Printf("vector retrieval failed for agent %s, falling back to text search: %v", agentID, err)
		return r.retrieveText(ctx, agentID, query, limit)
	}
	if len(results) == 0 {
		// No embedded chunks yet; the textual path may still find matches.
		return r.retrieveText(ctx, agentID, query, limit)
	}
	return results, nil
}

func (r *Retriever) retrieveVector(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// The index is shared across agents, so over-fetch before filtering.
	candidateLimit := limit * candidateMultiplier
	if candidateLimit < minCandidates {
		candidateLimit = minCandidates
	}
	if candidateLimit > maxCandidates {
		candidateLimit = maxCandidates
	}

	matches, err := r.repo.NearestNeighbors(ctx, embedding, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor search failed: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, limit)
	for _, match := range matches {
		if len(results) >= limit {
			break
		}
		chunk, err := r.repo.GetByID(ctx, match.ID)
		if err != nil {
			if err == domain.ErrChunkNotFound {
				continue
			}
			return nil, err
		}
		if chunk.AgentID != agentID {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: match.Score})
	}

	return results, nil
}

func (r *Retriever) retrieveText(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error) {
	chunks, err := r.repo.SearchText(ctx, agentID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: 0})
	}
	return results, nil
}
