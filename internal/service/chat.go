package service

import (
	"context"
	"log"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/telemetry"
)

// ApologyMessage is the fixed assistant reply persisted when generation fails
// after the user's message was already stored.
const ApologyMessage = "I apologize, but I'm having trouble generating a response right now. Please try again."

// DefaultCompletionOptions is the fixed generation configuration for
// conversational turns.
func DefaultCompletionOptions() domain.CompletionOptions {
	return domain.CompletionOptions{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   500,
	}
}

// ConversationRepository defines the repository interface for conversations
type ConversationRepository interface {
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
}

// CompletionClient defines the interface for the chat completion service
type CompletionClient interface {
	Complete(ctx context.Context, messages []domain.PromptMessage, opts domain.CompletionOptions) (*domain.CompletionResult, error)
}

// KnowledgeRetriever defines the interface for fetching relevant chunks
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error)
}

// QuotaChecker defines the interface for AI credit accounting
type QuotaChecker interface {
	Check(ctx context.Context, orgID string) error
	Record(ctx context.Context, orgID string, amount int64) error
}

// ChatService drives one conversational turn end to end: quota, user message
// persistence, retrieval, prompt assembly, completion and assistant message
// persistence.
type ChatService struct {
	convRepo   ConversationRepository
	retriever  KnowledgeRetriever
	prompts    *PromptBuilder
	completion CompletionClient
	quota      QuotaChecker
	opts       domain.CompletionOptions
	uuidGen    UUIDGenerator
}

// NewChatService creates a new ChatService instance
func NewChatService(
	convRepo ConversationRepository,
	retriever KnowledgeRetriever,
	completion CompletionClient,
	quota QuotaChecker,
) *ChatService {
	return &ChatService{
		convRepo:   convRepo,
		retriever:  retriever,
		prompts:    NewPromptBuilder(),
		completion: completion,
		quota:      quota,
		opts:       DefaultCompletionOptions(),
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

// WithCompletionOptions overrides the fixed generation configuration.
func (s *ChatService) WithCompletionOptions(opts domain.CompletionOptions) *ChatService {
	s.opts = opts
	return s
}

// GenerateInput carries one user turn.
type GenerateInput struct {
	ConversationID string
	SenderID       string
	Content        string
}

// GenerateResult is the outcome of a turn. Degraded is true when the
// assistant reply is the fixed apology after a generation failure.
type GenerateResult struct {
	Reply          *domain.Message
	KnowledgeCount int
	Degraded       bool
}

// GenerateResponse runs one turn. Errors raised before the user's message is
// durably stored (unknown conversation or agent, exhausted quota) propagate;
// once the user message is persisted the turn always succeeds, degrading to
// the apology reply on retrieval or generation failure.
func (s *ChatService) GenerateResponse(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.generate_response", telemetry.SpanAttributes{
		ConversationID: input.ConversationID,
	})
	defer span.End()

	conv, err := s.convRepo.GetConversation(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}
	agent, err := s.convRepo.GetAgent(ctx, conv.AgentID)
	if err != nil {
		return nil, err
	}

	if err := s.quota.Check(ctx, agent.OrgID); err != nil {
		return nil, err
	}

	// History is captured before the user message is stored so the prompt
	// does not replay the current turn.
	history, err := s.convRepo.ListRecentMessages(ctx, conv.ID, MaxHistoryTurns)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := s.convRepo.AppendMessage(ctx, &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        input.Content,
		Metadata:       domain.MessageMetadata{SenderID: input.SenderID},
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}

	knowledge := s.retrieveKnowledge(ctx, agent.ID, input.Content)

	prompt := s.prompts.Build(agent, knowledge, history, input.Content, agent.Locale)

	result, err := s.completion.Complete(ctx, prompt, s.opts)
	if err != nil {
		span.SetError(err)
		return s.persistDegradedReply(ctx, conv.ID, err)
	}

	reply, err := s.convRepo.AppendMessage(ctx, &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        result.Content,
		Metadata: domain.MessageMetadata{
			Model:            result.Model,
			KnowledgeCount:   len(knowledge),
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// The user message is already stored; report but do not fail the turn.
		log.Printf("failed to persist assistant message for conversation %s: %v", conv.ID, err)
		telemetry.CaptureError(ctx, err)
		return s.persistDegradedReply(ctx, conv.ID, err)
	}

	if err := s.quota.Record(ctx, agent.OrgID, TurnCreditCost); err != nil {
		log.Printf("failed to record credit usage for org %s: %v", agent.OrgID, err)
		telemetry.CaptureError(ctx, err)
	}

	return &GenerateResult{
		Reply:          reply,
		KnowledgeCount: len(knowledge),
	}, nil
}

// retrieveKnowledge runs retrieval and projects the results down to the
// fields the prompt layer needs. Retrieval failures degrade to no knowledge.
func (s *ChatService) retrieveKnowledge(ctx context.Context, agentID, query string) []RetrievedKnowledge {
	results, err := s.retriever.Retrieve(ctx, agentID, query, DefaultRetrievalLimit)
	if err != nil {
		log.Printf("knowledge retrieval failed for agent %s: %v", agentID, err)
		telemetry.CaptureError(ctx, err)
		return nil
	}

	knowledge := make([]RetrievedKnowledge, 0, len(results))
	for _, r := range results {
		knowledge = append(knowledge, RetrievedKnowledge{
			ID:      r.Chunk.ID,
			Title:   r.Chunk.Title,
			Content: r.Chunk.Content,
			Source:  r.Chunk.Source,
			Score:   r.Score,
		})
	}
	return knowledge
}

func (s *ChatService) persistDegradedReply(ctx context.Context, conversationID string, cause error) (*GenerateResult, error) {
	reply, err := s.convRepo.AppendMessage(ctx, &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversationID,
		Role:           domain.MessageRoleAssistant,
		Content:        ApologyMessage,
		Metadata: domain.MessageMetadata{
			Model: "error",
			Error: cause.Error(),
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("failed to persist degraded reply for conversation %s: %v", conversationID, err)
		telemetry.CaptureError(ctx, err)
		reply = nil
	}

	return &GenerateResult{Reply: reply, Degraded: true}, nil
}
