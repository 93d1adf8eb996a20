package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/api"
	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/pagination"
	"github.com/go-chi/chi/v5"
)

type KnowledgeService interface {
	AddText(ctx context.Context, agentID, title, text string) ([]*domain.KnowledgeChunk, error)
	AddDocument(ctx context.Context, agentID, fileID, filename string) ([]*domain.KnowledgeChunk, error)
	AddURL(ctx context.Context, agentID, pageURL, title, text string) ([]*domain.KnowledgeChunk, error)
	AddQnA(ctx context.Context, agentID, question, answer string) (*domain.KnowledgeChunk, error)
	UpdateChunk(ctx context.Context, id, title, content string) (*domain.KnowledgeChunk, error)
	DeleteChunk(ctx context.Context, id string) error
}

type ChunkLister interface {
	ListByAgent(ctx context.Context, agentID string, afterCreatedAt time.Time, afterID string, limit int) ([]*domain.KnowledgeChunk, error)
}

type KnowledgeHandler struct {
	svc    KnowledgeService
	chunks ChunkLister
}

func NewKnowledgeHandler(svc KnowledgeService, chunks ChunkLister) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, chunks: chunks}
}

type AddKnowledgeRequest struct {
	Source   string `json:"source"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type UpdateChunkRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ChunkResponse struct {
	ID        string            `json:"id"`
	AgentID   string            `json:"agent_id"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	Source    string            `json:"source"`
	Meta      domain.SourceMeta `json:"metadata,omitempty"`
	Embedded  bool              `json:"embedded"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

func chunkToResponse(c *domain.KnowledgeChunk) *ChunkResponse {
	return &ChunkResponse{
		ID:        c.ID,
		AgentID:   c.AgentID,
		Title:     c.Title,
		Content:   c.Content,
		Source:    string(c.Source),
		Meta:      c.Meta,
		Embedded:  !c.Pending(),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func chunksToResponse(chunks []*domain.KnowledgeChunk) []*ChunkResponse {
	out := make([]*ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chunkToResponse(c))
	}
	return out
}

// Add ingests knowledge for an agent from one of the supported sources.
func (h *KnowledgeHandler) Add(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		api.Error(w, http.StatusBadRequest, "agent id is required")
		return
	}

	var req AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var chunks []*domain.KnowledgeChunk
	var err error

	switch domain.ChunkSource(req.Source) {
	case domain.ChunkSourceText:
		if req.Text == "" {
			api.Error(w, http.StatusBadRequest, "text is required")
			return
		}
		chunks, err = h.svc.AddText(r.Context(), agentID, req.Title, req.Text)
	case domain.ChunkSourceDocument:
		if req.FileID == "" {
			api.Error(w, http.StatusBadRequest, "file_id is required")
			return
		}
		chunks, err = h.svc.AddDocument(r.Context(), agentID, req.FileID, req.Filename)
	case domain.ChunkSourceURL:
		if req.URL == "" || req.Text == "" {
			api.Error(w, http.StatusBadRequest, "url and text are required")
			return
		}
		chunks, err = h.svc.AddURL(r.Context(), agentID, req.URL, req.Title, req.Text)
	case domain.ChunkSourceQnA:
		if req.Question == "" || req.Answer == "" {
			api.Error(w, http.StatusBadRequest, "question and answer are required")
			return
		}
		var chunk *domain.KnowledgeChunk
		chunk, err = h.svc.AddQnA(r.Context(), agentID, req.Question, req.Answer)
		if chunk != nil {
			chunks = []*domain.KnowledgeChunk{chunk}
		}
	default:
		api.Error(w, http.StatusBadRequest, "invalid source")
		return
	}

	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chunksToResponse(chunks))
}

// List returns an agent's chunks with cursor pagination.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		api.Error(w, http.StatusBadRequest, "agent id is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	var afterCreatedAt time.Time
	var afterID string
	if cursor != nil {
		afterCreatedAt = cursor.Timestamp
		afterID = cursor.LastID
	}

	chunks, err := h.chunks.ListByAgent(r.Context(), agentID, afterCreatedAt, afterID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	next := pagination.NextCursor(chunks, limit,
		func(c *domain.KnowledgeChunk) string { return c.ID },
		func(c *domain.KnowledgeChunk) time.Time { return c.CreatedAt },
	)

	api.Success(w, http.StatusOK, pagination.PageResult[*ChunkResponse]{
		Items:   chunksToResponse(chunks),
		Cursor:  next,
		HasMore: next != "",
	})
}

// Update edits a chunk's title and content.
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	chunk, err := h.svc.UpdateChunk(r.Context(), id, req.Title, req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

// Delete removes a chunk.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.DeleteChunk(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
