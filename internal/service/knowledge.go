package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/google/uuid"
)

// KnowledgeChunkRepository defines the repository interface for chunk persistence
type KnowledgeChunkRepository interface {
	Insert(ctx context.Context, chunk *domain.KnowledgeChunk) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error)
	UpdateContent(ctx context.Context, id, title, content string) error
	Delete(ctx context.Context, id string) error
}

// DocumentFetcher defines the interface for reading extracted document text
// from object storage by its upload key.
type DocumentFetcher interface {
	GetObjectText(ctx context.Context, key string) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService turns raw ingested material into knowledge chunks.
type KnowledgeService struct {
	repo     KnowledgeChunkRepository
	storage  DocumentFetcher
	chunkCfg ChunkConfig
	uuidGen  UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(repo KnowledgeChunkRepository, storage DocumentFetcher) *KnowledgeService {
	return &KnowledgeService{
		repo:     repo,
		storage:  storage,
		chunkCfg: DefaultChunkConfig(),
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with a custom
// UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(repo KnowledgeChunkRepository, storage DocumentFetcher, uuidGen UUIDGenerator) *KnowledgeService {
	svc := NewKnowledgeService(repo, storage)
	svc.uuidGen = uuidGen
	return svc
}

// AddText chunks manually entered text and stores the pieces as pending
// chunks for the agent.
func (s *KnowledgeService) AddText(ctx context.Context, agentID, title, text string) ([]*domain.KnowledgeChunk, error) {
	pieces := ChunkText(text, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, domain.ErrMissingRequiredField
	}

	return s.insertPieces(ctx, agentID, title, pieces, func(i, total int) domain.SourceMeta {
		meta := domain.TextMeta{}
		if total > 1 {
			meta.ChunkIndex = i
			meta.TotalChunks = total
		}
		return meta
	})
}

// AddDocument fetches the extracted text of an uploaded document from object
// storage, chunks it and stores the pieces as pending chunks.
func (s *KnowledgeService) AddDocument(ctx context.Context, agentID, fileID, filename string) ([]*domain.KnowledgeChunk, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("document storage not configured")
	}

	text, err := s.storage.GetObjectText(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", fileID, err)
	}

	pieces := ChunkText(text, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, domain.ErrMissingRequiredField
	}

	title := strings.TrimSuffix(filename, fileExt(filename))
	return s.insertPieces(ctx, agentID, title, pieces, func(i, total int) domain.SourceMeta {
		meta := domain.DocumentMeta{Filename: filename, FileID: fileID}
		if total > 1 {
			meta.ChunkIndex = i
			meta.TotalChunks = total
		}
		return meta
	})
}

// AddURL chunks the extracted text of a crawled page and stores the pieces
// as pending chunks.
func (s *KnowledgeService) AddURL(ctx context.Context, agentID, pageURL, title, text string) ([]*domain.KnowledgeChunk, error) {
	pieces := ChunkText(text, s.chunkCfg)
	if len(pieces) == 0 {
		return nil, domain.ErrMissingRequiredField
	}

	if title == "" {
		title = pageURL
	}
	return s.insertPieces(ctx, agentID, title, pieces, func(i, total int) domain.SourceMeta {
		meta := domain.URLMeta{URL: pageURL}
		if total > 1 {
			meta.ChunkIndex = i
			meta.TotalChunks = total
		}
		return meta
	})
}

// AddQnA stores one question/answer pair as a single pending chunk.
func (s *KnowledgeService) AddQnA(ctx context.Context, agentID, question, answer string) (*domain.KnowledgeChunk, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil, domain.ErrMissingRequiredField
	}

	chunk := domain.NewKnowledgeChunk(
		s.uuidGen.NewString(),
		agentID,
		question,
		strings.TrimSpace(answer),
		domain.QnAMeta{Question: question},
		time.Now().UTC(),
	)
	if err := domain.ValidateKnowledgeChunk(chunk); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge chunk", err)
	}
	if err := s.repo.Insert(ctx, chunk); err != nil {
		return nil, fmt.Errorf("failed to insert chunk: %w", err)
	}
	return chunk, nil
}

// UpdateChunk edits a chunk's title and content. The stored embedding is
// cleared so the chunk is re-embedded on the next batch run instead of
// keeping a stale vector.
func (s *KnowledgeService) UpdateChunk(ctx context.Context, id, title, content string) (*domain.KnowledgeChunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrMissingRequiredField
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateContent(ctx, id, title, content); err != nil {
		return nil, fmt.Errorf("failed to update chunk: %w", err)
	}

	return s.repo.GetByID(ctx, id)
}

// DeleteChunk removes a chunk. Nothing else cascades.
func (s *KnowledgeService) DeleteChunk(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *KnowledgeService) insertPieces(
	ctx context.Context,
	agentID, title string,
	pieces []string,
	metaFor func(i, total int) domain.SourceMeta,
) ([]*domain.KnowledgeChunk, error) {
	total := len(pieces)
	now := time.Now().UTC()

	chunks := make([]*domain.KnowledgeChunk, 0, total)
	for i, piece := range pieces {
		chunk := domain.NewKnowledgeChunk(
			s.uuidGen.NewString(),
			agentID,
			partTitle(title, i+1, total),
			piece,
			metaFor(i+1, total),
			now,
		)
		if err := domain.ValidateKnowledgeChunk(chunk); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge chunk", err)
		}
		if err := s.repo.Insert(ctx, chunk); err != nil {
			return chunks, fmt.Errorf("failed to insert chunk %d/%d: %w", i+1, total, err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// partTitle numbers multi-chunk titles as "Part i/n"; single chunks keep the
// plain title.
func partTitle(title string, index, total int) string {
	if total <= 1 {
		return title
	}
	if title == "" {
		return fmt.Sprintf("Part %d/%d", index, total)
	}
	return fmt.Sprintf("%s (Part %d/%d)", title, index, total)
}

func fileExt(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[idx:]
	}
	return ""
}
