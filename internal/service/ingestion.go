package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/chirp-labs/chirp/internal/chunk"
	"github.com/chirp-labs/chirp/internal/domain"
)

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, botID string, embedding []float32, limit int, minScore float32) ([]domain.ScoredChunk, error)
	DeleteVersion(ctx context.Context, botID string, version int64) (int64, error)
}

// TextSource fetches and sanitizes bot source material.
type TextSource interface {
	ScrapeURL(ctx context.Context, rawURL string) (string, error)
	CleanText(text string) (string, error)
}

// BatchEmbedder embeds chunk contents in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TrainingState is the observable progress of a bot's latest training run.
type TrainingState struct {
	Status     domain.TrainingStatus
	Error      string
	ChunkCount int
	StartedAt  time.Time
	FinishedAt time.Time
}

// IngestionService rebuilds a bot's knowledge base: fetch, chunk, embed,
// store, swap. Training runs are single-flight per bot; readers keep
// searching the previous version until the swap.
type IngestionService struct {
	botRepo   BotRepositoryInterface
	source    TextSource
	embedder  BatchEmbedder
	txRunner  TxRunner
	chunkRepo ChunkRepositoryInterface
	chunkCfg  chunk.Config

	mu       sync.Mutex
	inflight map[string]struct{}
	states   map[string]TrainingState
}

func NewIngestionService(
	botRepo BotRepositoryInterface,
	source TextSource,
	embedder BatchEmbedder,
	txRunner TxRunner,
	chunkRepo ChunkRepositoryInterface,
) *IngestionService {
	return &IngestionService{
		botRepo:   botRepo,
		source:    source,
		embedder:  embedder,
		txRunner:  txRunner,
		chunkRepo: chunkRepo,
		chunkCfg:  chunk.DefaultConfig(),
		inflight:  make(map[string]struct{}),
		states:    make(map[string]TrainingState),
	}
}

// StartTraining begins a training run in the background. A second start for
// the same bot while one is running is rejected.
func (s *IngestionService) StartTraining(ctx context.Context, botID string) error {
	bot, err := s.botRepo.GetByID(ctx, botID)
	if err != nil {
		return err
	}
	if bot.SourceContent == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "bot has no source content to train on")
	}

	s.mu.Lock()
	if _, running := s.inflight[botID]; running {
		s.mu.Unlock()
		return domain.ErrTrainingInFlight
	}
	s.inflight[botID] = struct{}{}
	s.states[botID] = TrainingState{Status: domain.TrainingStatusProcessing, StartedAt: time.Now().UTC()}
	s.mu.Unlock()

	// Detached context: training outlives the HTTP request that started it.
	go s.run(context.WithoutCancel(ctx), bot)

	return nil
}

// Status reports the latest training state for a bot.
func (s *IngestionService) Status(botID string) (TrainingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[botID]
	return state, ok
}

// trainingTimeout bounds a whole training run; a hung upstream must not pin
// the bot in processing forever.
const trainingTimeout = 5 * time.Minute

func (s *IngestionService) run(ctx context.Context, bot *domain.Bot) {
	ctx, cancel := context.WithTimeout(ctx, trainingTimeout)
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, bot.ID)
		s.mu.Unlock()
	}()

	count, err := s.train(ctx, bot)

	s.mu.Lock()
	state := s.states[bot.ID]
	state.FinishedAt = time.Now().UTC()
	if err != nil {
		state.Status = domain.TrainingStatusFailed
		state.Error = err.Error()
		log.Printf("training failed for bot %s: %v", bot.ID, err)
	} else {
		state.Status = domain.TrainingStatusReady
		state.ChunkCount = count
		log.Printf("training finished for bot %s: %d chunks", bot.ID, count)
	}
	s.states[bot.ID] = state
	s.mu.Unlock()
}

func (s *IngestionService) train(ctx context.Context, bot *domain.Bot) (int, error) {
	text, err := s.loadSource(ctx, bot)
	if err != nil {
		return 0, err
	}

	newVersion := bot.KnowledgeVersion + 1
	source := ""
	if bot.SourceType == domain.SourceTypeURL {
		source = bot.SourceContent
	}

	chunks := chunk.Split(text, source, s.chunkCfg)
	if len(chunks) == 0 {
		return 0, domain.ErrScrapeEmptyContent
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, domain.NewDomainError(domain.ErrCodeInternalError, "embedding count does not match chunk count")
	}

	for i := range chunks {
		chunks[i].BotID = bot.ID
		chunks[i].KnowledgeVersion = newVersion
		chunks[i].Embedding = embeddings[i]
	}

	// Insert and activate together so a crash between the two cannot point
	// the bot at a half-written version.
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().InsertChunks(ctx, chunks); err != nil {
			return err
		}
		return repos.Bots().ActivateVersion(ctx, bot.ID, newVersion)
	})
	if err != nil {
		return 0, err
	}

	// Old version is unreachable now; reclaim it. The background sweeper
	// catches anything this misses.
	if bot.KnowledgeVersion > 0 {
		if _, err := s.chunkRepo.DeleteVersion(ctx, bot.ID, bot.KnowledgeVersion); err != nil {
			log.Printf("failed to delete superseded version %d for bot %s: %v", bot.KnowledgeVersion, bot.ID, err)
		}
	}

	return len(chunks), nil
}

func (s *IngestionService) loadSource(ctx context.Context, bot *domain.Bot) (string, error) {
	switch bot.SourceType {
	case domain.SourceTypeURL:
		return s.source.ScrapeURL(ctx, bot.SourceContent)
	case domain.SourceTypeText:
		return s.source.CleanText(bot.SourceContent)
	default:
		return "", domain.ErrInvalidSourceType
	}
}
