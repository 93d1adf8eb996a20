package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository handles persistence of conversations and messages.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, agent_id, visitor_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.AgentID, nullableString(c.VisitorID), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	var visitorID *string
	err := r.db.QueryRow(ctx,
		`SELECT id, agent_id, visitor_id, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.AgentID, &visitorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if visitorID != nil {
		c.VisitorID = *visitorID
	}
	return &c, nil
}

func (r *ConversationRepository) CreateAgent(ctx context.Context, a *domain.Agent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO agents (id, org_id, name, description, locale, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrgID, a.Name, a.Description, nullableString(a.Locale), a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var a domain.Agent
	var locale *string
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, name, description, locale, created_at, updated_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.OrgID, &a.Name, &a.Description, &locale, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, err
	}
	if locale != nil {
		a.Locale = *locale
	}
	return &a, nil
}

// ListRecentMessages returns the most recent messages of a conversation in
// chronological order.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM (
			SELECT id, conversation_id, role, content, metadata, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// AppendMessage stores a message. The store assigns the creation timestamp
// used for ordering within the conversation.
func (r *ConversationRepository) AppendMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if err := domain.ValidateMessage(m); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
	}

	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, err
	}

	stored := *m
	err = r.db.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING created_at`,
		m.ID, m.ConversationID, m.Role, m.Content, meta,
	).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), m.ConversationID,
	)
	if err != nil {
		return nil, err
	}

	return &stored, nil
}
