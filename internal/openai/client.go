// Package openai wraps the OpenAI API for embedding generation and streaming
// chat completion. Embedding calls are batched and retried; upstream failures
// are classified as transient or fatal so callers can decide whether a
// training run is worth repeating.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/chirp-labs/chirp/internal/retry"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the OpenAI model used for answer generation
	DefaultChatModel = openai.GPT4oMini
	// MaxBatchSize is the largest number of inputs sent in one embedding request
	MaxBatchSize = 100
)

var (
	// ErrEmptyInput is returned when there is no text to embed
	ErrEmptyInput = errors.New("no text to embed")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
	// ErrNoAPIKey is returned when the OpenAI API key is not configured
	ErrNoAPIKey = errors.New("OpenAI API key not configured")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// ChatStream yields incremental chat completion responses.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatAPI defines the interface for streaming chat completion
type ChatAPI interface {
	CreateChatStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

// Client wraps the OpenAI API client
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	dimensions int
	batchSize  int
	chatModel  string
	retryCfg   retry.Config
}

// OpenAIAdapter adapts the upstream SDK client to the package interfaces.
type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of inputs. The
// result is ordered to match the inputs regardless of response order.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateChatStream opens a streaming chat completion.
func (a *OpenAIAdapter) CreateChatStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	return a.client.CreateChatCompletionStream(ctx, req)
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
	BatchSize           int
	Retry               retry.Config
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	retryCfg.Retryable = IsTransient

	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel)
	return &Client{
		embeddings: adapter,
		chat:       adapter,
		dimensions: dimensions,
		batchSize:  batchSize,
		chatModel:  chatModel,
		retryCfg:   retryCfg,
	}
}

// IsTransient reports whether an upstream error is worth retrying: rate
// limits, server errors and network failures are; other API errors such as
// invalid credentials are not.
func IsTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Anything that never reached the API (connection reset, DNS) is transient.
	return true
}

// EmbedBatch embeds all texts in order, splitting the work into bounded
// batches. A failed batch aborts the whole call: partial results are never
// returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		embeddings, err := retry.DoWithResult(ctx, c.retryCfg, func() ([][]float32, error) {
			return c.embeddings.CreateEmbeddings(ctx, batch)
		})
		if err != nil {
			if IsTransient(err) {
				return nil, domain.ErrEmbeddingTransient.WithCause(err)
			}
			return nil, domain.ErrEmbeddingFatal.WithCause(err)
		}

		for _, e := range embeddings {
			if len(e) != c.dimensions {
				return nil, domain.ErrEmbeddingFatal.WithCause(ErrWrongDimensions)
			}
		}
		out = append(out, embeddings...)
	}

	return out, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// StreamChat runs a streaming chat completion, invoking onDelta for each
// content fragment as it arrives. Returns once the stream completes, the
// context is canceled, or onDelta reports an error.
func (c *Client) StreamChat(ctx context.Context, messages []openai.ChatCompletionMessage, onDelta func(string) error) error {
	stream, err := c.chat.CreateChatStream(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return domain.ErrGenerationUpstream.WithCause(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.ErrGenerationUpstream.WithCause(err)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
}
