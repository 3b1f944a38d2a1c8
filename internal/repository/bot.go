package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chirp-labs/chirp/internal/domain"
)

type BotRepository struct {
	db dbtx
}

func NewBotRepository(pool *pgxpool.Pool) *BotRepository {
	return &BotRepository{db: pool}
}

func NewBotRepositoryWithTx(tx pgx.Tx) *BotRepository {
	return &BotRepository{db: tx}
}

const botColumns = `id, name, welcome_message, avatar_url, accent_color, position, show_button_text, button_text,
	source_type, source_content, api_key, knowledge_version, message_count, message_limit, created_at, updated_at`

func (r *BotRepository) Create(ctx context.Context, b *domain.Bot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO bots (`+botColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		b.ID, b.Name, b.WelcomeMessage, nullableString(b.AvatarURL), b.AccentColor, b.Position,
		b.ShowButtonText, b.ButtonText, b.SourceType, b.SourceContent, b.APIKey,
		b.KnowledgeVersion, b.MessageCount, b.MessageLimit, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrBotAlreadyExists
		}
		return err
	}
	return nil
}

func (r *BotRepository) GetByID(ctx context.Context, id string) (*domain.Bot, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
}

func (r *BotRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Bot, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+botColumns+` FROM bots WHERE api_key = $1`, apiKey))
}

func (r *BotRepository) List(ctx context.Context) ([]*domain.Bot, error) {
	rows, err := r.db.Query(ctx, `SELECT `+botColumns+` FROM bots ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*domain.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

func (r *BotRepository) Update(ctx context.Context, b *domain.Bot) error {
	b.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE bots SET
			name = $2, welcome_message = $3, avatar_url = $4, accent_color = $5, position = $6,
			show_button_text = $7, button_text = $8, source_type = $9, source_content = $10,
			message_limit = $11, updated_at = $12
		 WHERE id = $1`,
		b.ID, b.Name, b.WelcomeMessage, nullableString(b.AvatarURL), b.AccentColor, b.Position,
		b.ShowButtonText, b.ButtonText, b.SourceType, b.SourceContent, b.MessageLimit, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}

func (r *BotRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}

// ConsumeQuota atomically spends one message from the bot's lifetime quota.
// Returns false when the quota is already exhausted; the counter is never
// incremented past the limit.
func (r *BotRepository) ConsumeQuota(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE bots SET message_count = message_count + 1, updated_at = $2
		 WHERE id = $1 AND message_count < message_limit`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ActivateVersion flips the bot's knowledge pointer to a newly ingested
// version. Readers joining chunks against this pointer switch over atomically.
func (r *BotRepository) ActivateVersion(ctx context.Context, id string, version int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE bots SET knowledge_version = $2, updated_at = $3 WHERE id = $1`,
		id, version, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}

func (r *BotRepository) scanOne(row pgx.Row) (*domain.Bot, error) {
	b, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBotNotFound
		}
		return nil, err
	}
	return b, nil
}

func scanBot(row pgx.Row) (*domain.Bot, error) {
	var b domain.Bot
	var avatarURL *string
	err := row.Scan(
		&b.ID, &b.Name, &b.WelcomeMessage, &avatarURL, &b.AccentColor, &b.Position,
		&b.ShowButtonText, &b.ButtonText, &b.SourceType, &b.SourceContent, &b.APIKey,
		&b.KnowledgeVersion, &b.MessageCount, &b.MessageLimit, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if avatarURL != nil {
		b.AvatarURL = *avatarURL
	}
	return &b, nil
}
