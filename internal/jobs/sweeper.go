package jobs

import (
	"context"
	"log"

	"github.com/chirp-labs/chirp/internal/domain"
)

// ChunkSweepStore lists and deletes superseded chunk versions.
type ChunkSweepStore interface {
	ListSupersededVersions(ctx context.Context) ([]domain.SupersededVersion, error)
	DeleteVersion(ctx context.Context, botID string, version int64) (int64, error)
}

// SessionSweepStore removes expired admin sessions.
type SessionSweepStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// WindowPruner drops aged-out rate limit state.
type WindowPruner interface {
	Prune() int
}

// Sweeper reclaims storage the request path leaves behind: chunk versions
// superseded by a retrain, expired admin sessions, and idle rate limit
// windows.
type Sweeper struct {
	chunks   ChunkSweepStore
	sessions SessionSweepStore
	limiter  WindowPruner
}

func NewSweeper(chunks ChunkSweepStore, sessions SessionSweepStore, limiter WindowPruner) *Sweeper {
	return &Sweeper{
		chunks:   chunks,
		sessions: sessions,
		limiter:  limiter,
	}
}

// Run performs one sweep. Failures in one area do not stop the others; the
// first error is reported after everything ran.
func (s *Sweeper) Run(ctx context.Context) error {
	var firstErr error

	stale, err := s.chunks.ListSupersededVersions(ctx)
	if err != nil {
		firstErr = err
	}
	for _, sv := range stale {
		deleted, err := s.chunks.DeleteVersion(ctx, sv.BotID, sv.Version)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if deleted > 0 {
			log.Printf("Swept %d chunks of superseded version %d for bot %s", deleted, sv.Version, sv.BotID)
		}
	}

	if s.sessions != nil {
		deleted, err := s.sessions.DeleteExpired(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if deleted > 0 {
			log.Printf("Swept %d expired admin sessions", deleted)
		}
	}

	if s.limiter != nil {
		s.limiter.Prune()
	}

	return firstErr
}
