package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirp-labs/chirp/internal/domain"
)

func TestRetriever_Retrieve(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockChunks := new(MockChunkRepository)
	r := NewRetriever(mockEmbedder, mockChunks)
	ctx := context.Background()

	embedding := []float32{0.1, 0.2, 0.3}
	found := []domain.ScoredChunk{
		{ChunkIndex: 4, Content: "Shipping takes five days.", Score: 0.91},
		{ChunkIndex: 1, Content: "We ship worldwide.", Score: 0.82},
	}

	mockEmbedder.On("EmbedQuery", ctx, "how long is shipping").Return(embedding, nil)
	mockChunks.On("Search", ctx, "bot-1", embedding, DefaultTopK, float32(DefaultMinScore)).Return(found, nil)

	chunks, err := r.Retrieve(ctx, "bot-1", "how long is shipping")

	require.NoError(t, err)
	assert.Equal(t, found, chunks)
	mockEmbedder.AssertExpectations(t)
	mockChunks.AssertExpectations(t)
}

func TestRetriever_Retrieve_EmptyResultIsFine(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	mockChunks := new(MockChunkRepository)
	r := NewRetriever(mockEmbedder, mockChunks)
	ctx := context.Background()

	mockEmbedder.On("EmbedQuery", ctx, "off topic question").Return([]float32{0.5}, nil)
	mockChunks.On("Search", ctx, "bot-1", []float32{0.5}, DefaultTopK, float32(DefaultMinScore)).Return([]domain.ScoredChunk{}, nil)

	chunks, err := r.Retrieve(ctx, "bot-1", "off topic question")

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetriever_Retrieve_EmbeddingFailure(t *testing.T) {
	mockEmbedder := new(MockQueryEmbedder)
	r := NewRetriever(mockEmbedder, new(MockChunkRepository))
	ctx := context.Background()

	mockEmbedder.On("EmbedQuery", ctx, "question").Return(nil, errors.New("upstream down"))

	_, err := r.Retrieve(ctx, "bot-1", "question")
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestRetriever_Retrieve_EmptyQuestion(t *testing.T) {
	r := NewRetriever(new(MockQueryEmbedder), new(MockChunkRepository))

	_, err := r.Retrieve(context.Background(), "bot-1", "")

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
}
