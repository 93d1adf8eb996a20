package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/TheScouser/chatbox-sub000/internal/api"
	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	GenerateResponse(ctx context.Context, input service.GenerateInput) (*service.GenerateResult, error)
}

type SearchService interface {
	Retrieve(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error)
}

type ChatHandler struct {
	chat   ChatService
	search SearchService
}

func NewChatHandler(chat ChatService, search SearchService) *ChatHandler {
	return &ChatHandler{chat: chat, search: search}
}

type SendMessageRequest struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id"`
}

type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Model          string `json:"model,omitempty"`
	KnowledgeCount int    `json:"knowledge_count,omitempty"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// SendMessage runs one conversational turn and returns the assistant reply.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.chat.GenerateResponse(r.Context(), service.GenerateInput{
		ConversationID: conversationID,
		SenderID:       req.SenderID,
		Content:        req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := MessageResponse{
		ConversationID: conversationID,
		Role:           string(domain.MessageRoleAssistant),
		KnowledgeCount: result.KnowledgeCount,
		Degraded:       result.Degraded,
	}
	if result.Reply != nil {
		resp.ID = result.Reply.ID
		resp.Content = result.Reply.Content
		resp.Model = result.Reply.Metadata.Model
	}

	api.Success(w, http.StatusOK, resp)
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResultResponse struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Search returns the most relevant chunks of an agent for a query.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		api.Error(w, http.StatusBadRequest, "agent id is required")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.search.Retrieve(r.Context(), agentID, req.Query, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]SearchResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResultResponse{
			ID:      res.Chunk.ID,
			Title:   res.Chunk.Title,
			Content: res.Chunk.Content,
			Source:  string(res.Chunk.Source),
			Score:   res.Score,
		})
	}

	api.Success(w, http.StatusOK, out)
}
