package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chirp-labs/chirp/internal/domain"
)

// AdminSessionRepository stores dashboard login sessions. Only the SHA-256
// hash of a session token ever touches the database.
type AdminSessionRepository struct {
	db dbtx
}

func NewAdminSessionRepository(pool *pgxpool.Pool) *AdminSessionRepository {
	return &AdminSessionRepository{db: pool}
}

func (r *AdminSessionRepository) Create(ctx context.Context, tokenHash, username string, createdAt, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_sessions (token_hash, username, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		tokenHash, username, createdAt, expiresAt,
	)
	return err
}

// GetUsername resolves a token hash to the logged-in username. Expired
// sessions are indistinguishable from missing ones.
func (r *AdminSessionRepository) GetUsername(ctx context.Context, tokenHash string) (string, error) {
	var username string
	err := r.db.QueryRow(ctx,
		`SELECT username FROM admin_sessions WHERE token_hash = $1 AND expires_at > $2`,
		tokenHash, time.Now().UTC(),
	).Scan(&username)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrSessionNotFound
		}
		return "", err
	}
	return username, nil
}

func (r *AdminSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteExpired removes sessions past their expiry, returning how many were
// dropped.
func (r *AdminSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM admin_sessions WHERE expires_at <= $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
