package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chirp-labs/chirp/internal/domain"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// FindOrCreate returns the conversation for a (bot, session) pair, creating
// it on first contact. The unique constraint makes concurrent first messages
// converge on a single row.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, botID, sessionID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`INSERT INTO conversations (id, bot_id, session_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (bot_id, session_id)
		 DO UPDATE SET updated_at = EXCLUDED.updated_at
		 RETURNING id, bot_id, session_id, created_at, updated_at`,
		uuid.NewString(), botID, sessionID, now,
	).Scan(&c.ID, &c.BotID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, bot_id, session_id, created_at, updated_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.BotID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AppendMessage persists one message and bumps the conversation's activity
// timestamp.
func (r *ConversationRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, truncated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.Truncated, m.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		m.ConversationID, m.CreatedAt,
	)
	return err
}

// RecentHistory returns the last limit messages of a conversation in
// chronological order.
func (r *ConversationRepository) RecentHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, truncated, created_at FROM (
			SELECT id, conversation_id, role, content, truncated, created_at
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

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Truncated, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
