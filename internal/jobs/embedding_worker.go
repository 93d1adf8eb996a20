package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/TheScouser/chatbox-sub000/internal/service"
)

// ChunkEmbedder defines the interface for running embedding batches
type ChunkEmbedder interface {
	RunAll(ctx context.Context) (service.BatchSummary, error)
}

// EmbeddingWorker embeds pending knowledge chunks on each poll tick.
type EmbeddingWorker struct {
	batcher ChunkEmbedder
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(batcher ChunkEmbedder) *EmbeddingWorker {
	return &EmbeddingWorker{batcher: batcher}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	summary, err := w.batcher.RunAll(ctx)
	if err != nil {
		return fmt.Errorf("embedding run failed: %w", err)
	}

	if summary.Processed > 0 || summary.Errors > 0 {
		log.Printf("Embedding run finished: %d processed, %d errors", summary.Processed, summary.Errors)
	}
	return nil
}
