package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/chirp-labs/chirp/internal/domain"
)

// ChunkRepository handles persistence and similarity search of embedded
// knowledge chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertChunks writes a full set of embedded chunks under their knowledge
// version. The version stays invisible to search until the bot's pointer is
// flipped to it.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	now := time.Now().UTC()
	for _, c := range chunks {
		_, err := r.db.Exec(ctx,
			`INSERT INTO bot_chunks
				(bot_id, knowledge_version, chunk_index, content, source, token_count, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.BotID, c.KnowledgeVersion, c.ChunkIndex, c.Content, nullableString(c.Source),
			c.TokenCount, pgvector.NewVector(c.Embedding), now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Search returns the best-matching chunks of the bot's active knowledge
// version by cosine similarity. Joining against the version pointer inside
// one statement makes each search see exactly one version, even while a
// retrain is activating another.
func (r *ChunkRepository) Search(ctx context.Context, botID string, embedding []float32, limit int, minScore float32) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 3
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT c.chunk_index, c.content, c.source, 1 - (c.embedding <=> $1) AS score
		 FROM bot_chunks c
		 JOIN bots b ON b.id = c.bot_id AND b.knowledge_version = c.knowledge_version
		 WHERE c.bot_id = $2 AND 1 - (c.embedding <=> $1) >= $3
		 ORDER BY c.embedding <=> $1
		 LIMIT $4`,
		vec, botID, minScore, limit,
	)
	if err != nil {
		return nil, domain.ErrVectorStoreUnavailable.WithCause(err)
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, limit)
	for rows.Next() {
		var sc domain.ScoredChunk
		var source *string
		if err := rows.Scan(&sc.ChunkIndex, &sc.Content, &source, &sc.Score); err != nil {
			return nil, domain.ErrVectorStoreInconsistent.WithCause(err)
		}
		if source != nil {
			sc.Source = *source
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrVectorStoreUnavailable.WithCause(err)
	}

	return results, nil
}

// DeleteVersion removes every chunk of one knowledge version.
func (r *ChunkRepository) DeleteVersion(ctx context.Context, botID string, version int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM bot_chunks WHERE bot_id = $1 AND knowledge_version = $2`,
		botID, version,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListSupersededVersions finds chunk sets whose version no longer matches
// their bot's active pointer, including chunks of deleted bots.
func (r *ChunkRepository) ListSupersededVersions(ctx context.Context) ([]domain.SupersededVersion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT c.bot_id, c.knowledge_version
		 FROM bot_chunks c
		 LEFT JOIN bots b ON b.id = c.bot_id
		 WHERE b.id IS NULL OR b.knowledge_version <> c.knowledge_version`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []domain.SupersededVersion
	for rows.Next() {
		var sv domain.SupersededVersion
		if err := rows.Scan(&sv.BotID, &sv.Version); err != nil {
			return nil, err
		}
		stale = append(stale, sv)
	}
	return stale, rows.Err()
}

// CountByVersion reports how many chunks a version holds.
func (r *ChunkRepository) CountByVersion(ctx context.Context, botID string, version int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bot_chunks WHERE bot_id = $1 AND knowledge_version = $2`,
		botID, version,
	).Scan(&count)
	return count, err
}
