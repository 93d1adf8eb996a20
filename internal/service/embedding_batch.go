package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
)

// BatchEmbeddingClient defines the interface for batched embedding generation
type BatchEmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// PendingChunkRepository defines the repository interface for embedding runs
type PendingChunkRepository interface {
	ListPending(ctx context.Context, agentID string, limit int) ([]*domain.KnowledgeChunk, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	ListAgentsWithPending(ctx context.Context) ([]string, error)
}

// BatchConfig controls batch sizing and rate limiting for embedding runs.
type BatchConfig struct {
	BatchSize  int
	PageLimit  int
	BatchDelay time.Duration
}

// DefaultBatchConfig provides defaults tuned for the embedding API's rate limits.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:  10,
		PageLimit:  100,
		BatchDelay: time.Second,
	}
}

// BatchSummary aggregates the outcome of an embedding run. Failures are data:
// a failing batch is counted here, never surfaced as an error.
type BatchSummary struct {
	Processed int
	Errors    int
}

func (s BatchSummary) add(other BatchSummary) BatchSummary {
	return BatchSummary{
		Processed: s.Processed + other.Processed,
		Errors:    s.Errors + other.Errors,
	}
}

// EmbeddingBatcher embeds pending knowledge chunks in rate-limited batches.
type EmbeddingBatcher struct {
	client BatchEmbeddingClient
	repo   PendingChunkRepository
	cfg    BatchConfig
}

// NewEmbeddingBatcher creates a new EmbeddingBatcher with default batch settings.
func NewEmbeddingBatcher(client BatchEmbeddingClient, repo PendingChunkRepository) *EmbeddingBatcher {
	return NewEmbeddingBatcherWithConfig(client, repo, DefaultBatchConfig())
}

// NewEmbeddingBatcherWithConfig creates a new EmbeddingBatcher with explicit settings.
func NewEmbeddingBatcherWithConfig(client BatchEmbeddingClient, repo PendingChunkRepository, cfg BatchConfig) *EmbeddingBatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchConfig().BatchSize
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultBatchConfig().PageLimit
	}
	return &EmbeddingBatcher{
		client: client,
		repo:   repo,
		cfg:    cfg,
	}
}

// Run embeds one page of pending chunks, optionally scoped to a single agent
// (empty agentID means unscoped). A failing batch is recorded in the summary
// and the run continues with the next batch.
func (b *EmbeddingBatcher) Run(ctx context.Context, agentID string) (BatchSummary, error) {
	pending, err := b.repo.ListPending(ctx, agentID, b.cfg.PageLimit)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to list pending chunks: %w", err)
	}

	if len(pending) == 0 {
		return BatchSummary{}, nil
	}

	batches := partitionChunks(pending, b.cfg.BatchSize)

	var total BatchSummary
	for i, batch := range batches {
		total = total.add(b.processBatch(ctx, batch))

		// Fixed delay between batches to respect upstream rate limits.
		if i < len(batches)-1 {
			if err := b.pause(ctx); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// RunAll embeds pending chunks across every agent that has any, folding the
// per-agent summaries into one total.
func (b *EmbeddingBatcher) RunAll(ctx context.Context) (BatchSummary, error) {
	agentIDs, err := b.repo.ListAgentsWithPending(ctx)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to list agents with pending chunks: %w", err)
	}

	var total BatchSummary
	for _, agentID := range agentIDs {
		summary, err := b.Run(ctx, agentID)
		total = total.add(summary)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (b *EmbeddingBatcher) processBatch(ctx context.Context, batch []*domain.KnowledgeChunk) BatchSummary {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = buildEmbeddingInput(chunk)
	}

	vectors, err := b.client.GenerateEmbeddings(ctx, texts)
	if err != nil {
		log.Printf("embedding batch of %d chunks failed: %v", len(batch), err)
		return BatchSummary{Errors: len(batch)}
	}
	if len(vectors) != len(batch) {
		log.Printf("embedding batch returned %d vectors for %d chunks", len(vectors), len(batch))
		return BatchSummary{Errors: len(batch)}
	}

	var summary BatchSummary
	for i, chunk := range batch {
		if err := b.repo.UpdateEmbedding(ctx, chunk.ID, vectors[i]); err != nil {
			log.Printf("failed to store embedding for chunk %s: %v", chunk.ID, err)
			summary.Errors++
			continue
		}
		summary.Processed++
	}
	return summary
}

func (b *EmbeddingBatcher) pause(ctx context.Context) error {
	if b.cfg.BatchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(b.cfg.BatchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildEmbeddingInput joins title and content for embedding, matching the
// text used at retrieval time.
func buildEmbeddingInput(chunk *domain.KnowledgeChunk) string {
	if strings.TrimSpace(chunk.Title) == "" {
		return chunk.Content
	}
	return chunk.Title + "\n\n" + chunk.Content
}

func partitionChunks(chunks []*domain.KnowledgeChunk, size int) [][]*domain.KnowledgeChunk {
	batches := make([][]*domain.KnowledgeChunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
