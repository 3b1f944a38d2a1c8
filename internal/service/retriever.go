package service

import (
	"context"

	"github.com/chirp-labs/chirp/internal/domain"
)

const (
	// DefaultTopK is how many chunks retrieval hands to prompt assembly.
	DefaultTopK = 3
	// DefaultMinScore is the cosine similarity floor below which a chunk is
	// considered irrelevant.
	DefaultMinScore = 0.7
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher runs similarity search over a bot's active knowledge.
type ChunkSearcher interface {
	Search(ctx context.Context, botID string, embedding []float32, limit int, minScore float32) ([]domain.ScoredChunk, error)
}

// Retriever embeds a question and finds the supporting chunks for it.
type Retriever struct {
	embedder QueryEmbedder
	chunks   ChunkSearcher
	topK     int
	minScore float32
}

func NewRetriever(embedder QueryEmbedder, chunks ChunkSearcher) *Retriever {
	return &Retriever{
		embedder: embedder,
		chunks:   chunks,
		topK:     DefaultTopK,
		minScore: DefaultMinScore,
	}
}

// Retrieve returns the best supporting chunks for a question. An empty
// result is a normal outcome; the prompt layer handles it. Embedding
// failures surface as retrieval being unavailable.
func (r *Retriever) Retrieve(ctx context.Context, botID, question string) ([]domain.ScoredChunk, error) {
	if question == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "question is required")
	}

	embedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.ErrRetrievalUnavailable.WithCause(err)
	}

	return r.chunks.Search(ctx, botID, embedding, r.topK, r.minScore)
}
