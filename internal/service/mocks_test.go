package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chirp-labs/chirp/internal/domain"
)

// MockBotRepository is a mock implementation of BotRepositoryInterface
type MockBotRepository struct {
	mock.Mock
}

func (m *MockBotRepository) Create(ctx context.Context, b *domain.Bot) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBotRepository) GetByID(ctx context.Context, id string) (*domain.Bot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Bot, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotRepository) List(ctx context.Context) ([]*domain.Bot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Bot), args.Error(1)
}

func (m *MockBotRepository) Update(ctx context.Context, b *domain.Bot) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBotRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBotRepository) ConsumeQuota(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBotRepository) ActivateVersion(ctx context.Context, id string, version int64) error {
	args := m.Called(ctx, id, version)
	return args.Error(0)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) Search(ctx context.Context, botID string, embedding []float32, limit int, minScore float32) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, botID, embedding, limit, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockChunkRepository) DeleteVersion(ctx context.Context, botID string, version int64) (int64, error) {
	args := m.Called(ctx, botID, version)
	return args.Get(0).(int64), args.Error(1)
}

// MockConversationStore is a mock implementation of ConversationStore
type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) FindOrCreate(ctx context.Context, botID, sessionID string) (*domain.Conversation, error) {
	args := m.Called(ctx, botID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockConversationStore) RecentHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockTextSource is a mock implementation of TextSource
type MockTextSource struct {
	mock.Mock
}

func (m *MockTextSource) ScrapeURL(ctx context.Context, rawURL string) (string, error) {
	args := m.Called(ctx, rawURL)
	return args.String(0), args.Error(1)
}

func (m *MockTextSource) CleanText(text string) (string, error) {
	args := m.Called(text)
	return args.String(0), args.Error(1)
}

// MockBatchEmbedder is a mock implementation of BatchEmbedder
type MockBatchEmbedder struct {
	mock.Mock
}

func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// stubEmbedder returns one placeholder vector per input, whatever the
// batch size.
type stubEmbedder struct {
	calls [][]string
	err   error
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

// MockQueryEmbedder is a mock implementation of QueryEmbedder
type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockRetriever is a mock implementation of ContextRetriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, botID, question string) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, botID, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

// MockAdminSessionStore is a mock implementation of AdminSessionStore
type MockAdminSessionStore struct {
	mock.Mock
}

func (m *MockAdminSessionStore) Create(ctx context.Context, tokenHash, username string, createdAt, expiresAt time.Time) error {
	args := m.Called(ctx, tokenHash, username, createdAt, expiresAt)
	return args.Error(0)
}

func (m *MockAdminSessionStore) GetUsername(ctx context.Context, tokenHash string) (string, error) {
	args := m.Called(ctx, tokenHash)
	return args.String(0), args.Error(1)
}

func (m *MockAdminSessionStore) Delete(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

// stubGenerator streams a fixed sequence of deltas.
type stubGenerator struct {
	deltas []string
	err    error
	gotMsg []ChatMessage
}

func (g *stubGenerator) Stream(ctx context.Context, messages []ChatMessage, onDelta func(string) error) error {
	g.gotMsg = messages
	for _, d := range g.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return g.err
}

// stubTxRunner executes the transaction body against plain mocks.
type stubTxRunner struct {
	bots   BotRepositoryInterface
	chunks ChunkRepositoryInterface
	err    error
}

func (r *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(r)
}

func (r *stubTxRunner) Bots() BotRepositoryInterface     { return r.bots }
func (r *stubTxRunner) Chunks() ChunkRepositoryInterface { return r.chunks }

// stubUUID yields predictable IDs.
type stubUUID struct {
	next string
}

func (u *stubUUID) NewString() string {
	if u.next == "" {
		return "00000000-0000-0000-0000-000000000001"
	}
	return u.next
}
