package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EmbeddingDimensions is the vector size produced by the embedding model.
const EmbeddingDimensions = 1536

// ChunkSource identifies where a knowledge chunk came from
type ChunkSource string

const (
	ChunkSourceText     ChunkSource = "text"
	ChunkSourceDocument ChunkSource = "document"
	ChunkSourceURL      ChunkSource = "url"
	ChunkSourceQnA      ChunkSource = "qna"
)

// SourceMeta carries source-specific metadata for a knowledge chunk.
// Each source kind has its own concrete type so consumers can switch
// exhaustively instead of probing one bag of optional fields.
type SourceMeta interface {
	Source() ChunkSource
}

// TextMeta is the metadata for manually entered text.
// ChunkIndex/TotalChunks are only set when the text was split into
// more than one chunk.
type TextMeta struct {
	ChunkIndex  int `json:"chunk_index,omitempty"`
	TotalChunks int `json:"total_chunks,omitempty"`
}

func (TextMeta) Source() ChunkSource { return ChunkSourceText }

// DocumentMeta is the metadata for chunks produced from an uploaded document.
type DocumentMeta struct {
	Filename    string `json:"filename"`
	FileID      string `json:"file_id,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}

func (DocumentMeta) Source() ChunkSource { return ChunkSourceDocument }

// URLMeta is the metadata for chunks produced from a crawled page.
type URLMeta struct {
	URL         string `json:"url"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}

func (URLMeta) Source() ChunkSource { return ChunkSourceURL }

// QnAMeta is the metadata for a question/answer pair.
type QnAMeta struct {
	Question string `json:"question"`
}

func (QnAMeta) Source() ChunkSource { return ChunkSourceQnA }

// KnowledgeChunk is the unit of embedding and retrieval. A chunk belongs to
// exactly one agent for its whole lifetime. Embedding is nil while the chunk
// is pending and holds exactly EmbeddingDimensions floats once embedded.
type KnowledgeChunk struct {
	ID        string
	AgentID   string
	Title     string
	Content   string
	Source    ChunkSource
	Meta      SourceMeta
	FileID    string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pending reports whether the chunk still needs an embedding.
func (c *KnowledgeChunk) Pending() bool {
	return len(c.Embedding) == 0
}

// NewKnowledgeChunk creates a new KnowledgeChunk instance
func NewKnowledgeChunk(id, agentID, title, content string, meta SourceMeta, createdAt time.Time) *KnowledgeChunk {
	chunk := &KnowledgeChunk{
		ID:        id,
		AgentID:   agentID,
		Title:     title,
		Content:   content,
		Source:    meta.Source(),
		Meta:      meta,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if doc, ok := meta.(DocumentMeta); ok {
		chunk.FileID = doc.FileID
	}
	return chunk
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("knowledge chunk ID is required")
	}

	if c.AgentID == "" {
		return fmt.Errorf("knowledge chunk AgentID is required")
	}

	if c.Content == "" {
		return fmt.Errorf("knowledge chunk Content is required")
	}

	if !isValidChunkSource(c.Source) {
		return fmt.Errorf("knowledge chunk Source is invalid: %s", c.Source)
	}

	if c.Meta != nil && c.Meta.Source() != c.Source {
		return fmt.Errorf("knowledge chunk metadata kind %s does not match source %s", c.Meta.Source(), c.Source)
	}

	if len(c.Embedding) != 0 && len(c.Embedding) != EmbeddingDimensions {
		return fmt.Errorf("knowledge chunk Embedding must have %d dimensions, got %d", EmbeddingDimensions, len(c.Embedding))
	}

	return nil
}

// MarshalSourceMeta serializes source metadata for storage.
func MarshalSourceMeta(meta SourceMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

// UnmarshalSourceMeta deserializes source metadata stored for the given source.
func UnmarshalSourceMeta(source ChunkSource, data []byte) (SourceMeta, error) {
	if len(data) == 0 {
		return emptyMeta(source)
	}

	switch source {
	case ChunkSourceText:
		var m TextMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ChunkSourceDocument:
		var m DocumentMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ChunkSourceURL:
		var m URLMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ChunkSourceQnA:
		var m QnAMeta
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, ErrInvalidChunkSource
}

func emptyMeta(source ChunkSource) (SourceMeta, error) {
	switch source {
	case ChunkSourceText:
		return TextMeta{}, nil
	case ChunkSourceDocument:
		return DocumentMeta{}, nil
	case ChunkSourceURL:
		return URLMeta{}, nil
	case ChunkSourceQnA:
		return QnAMeta{}, nil
	}
	return nil, ErrInvalidChunkSource
}

// isValidChunkSource checks if a ChunkSource is valid
func isValidChunkSource(s ChunkSource) bool {
	switch s {
	case ChunkSourceText, ChunkSourceDocument, ChunkSourceURL, ChunkSourceQnA:
		return true
	}
	return false
}
