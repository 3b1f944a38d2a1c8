package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirp-labs/chirp/internal/domain"
)

func TestPromptBuilder_Build_Basic(t *testing.T) {
	p := NewPromptBuilder()

	chunks := []domain.ScoredChunk{
		{ChunkIndex: 2, Content: "We ship worldwide within five days.", Score: 0.9},
		{ChunkIndex: 7, Content: "Returns are free for thirty days.", Score: 0.8},
	}
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "Do you ship to France?"},
		{Role: domain.RoleAssistant, Content: "Yes, we ship worldwide."},
	}

	messages := p.Build("Acme Bot", chunks, history, "How long does shipping take?")

	require.Len(t, messages, 4)

	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "You are Acme Bot")
	assert.Contains(t, messages[0].Content, "[Chunk 2] We ship worldwide within five days.")
	assert.Contains(t, messages[0].Content, "[Chunk 7] Returns are free for thirty days.")
	assert.Contains(t, messages[0].Content, FallbackAnswer)

	assert.Equal(t, RoleUser, messages[1].Role)
	assert.Equal(t, "Do you ship to France?", messages[1].Content)
	assert.Equal(t, RoleAssistant, messages[2].Role)

	assert.Equal(t, RoleUser, messages[3].Role)
	assert.Equal(t, "How long does shipping take?", messages[3].Content)
}

func TestPromptBuilder_Build_NoContextFraming(t *testing.T) {
	p := NewPromptBuilder()

	messages := p.Build("Acme Bot", nil, nil, "What is the meaning of life?")

	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "no relevant information was found")
	assert.NotContains(t, messages[0].Content, "[Chunk")
}

func TestPromptBuilder_Build_CapsHistory(t *testing.T) {
	p := NewPromptBuilder()

	var history []domain.Message
	for i := 0; i < 25; i++ {
		history = append(history, domain.Message{
			Role:    domain.RoleUser,
			Content: fmt.Sprintf("message number %d", i),
		})
	}

	messages := p.Build("Acme Bot", nil, history, "final question")

	// system + 10 history + question
	require.Len(t, messages, 12)
	assert.Equal(t, "message number 15", messages[1].Content)
	assert.Equal(t, "message number 24", messages[10].Content)
}

func TestPromptBuilder_Build_TrimsHistoryBeforeChunks(t *testing.T) {
	p := NewPromptBuilder()
	p.budgetTokens = 300

	bigText := strings.Repeat("word ", 200) // ~250 tokens each
	history := []domain.Message{
		{Role: domain.RoleUser, Content: bigText},
		{Role: domain.RoleAssistant, Content: "short reply"},
	}
	chunks := []domain.ScoredChunk{
		{ChunkIndex: 0, Content: "Important fact about shipping.", Score: 0.9},
	}

	messages := p.Build("Acme Bot", chunks, history, "short question")

	// The oversized history entry is gone; the chunk survived.
	for _, m := range messages[1 : len(messages)-1] {
		assert.NotEqual(t, bigText, m.Content)
	}
	assert.Contains(t, messages[0].Content, "Important fact about shipping.")
}

func TestPromptBuilder_Build_DropsLowestScoredChunkLast(t *testing.T) {
	p := NewPromptBuilder()
	p.budgetTokens = 200

	big := strings.Repeat("filler ", 150) // ~260 tokens
	chunks := []domain.ScoredChunk{
		{ChunkIndex: 0, Content: big, Score: 0.71},
		{ChunkIndex: 1, Content: "High value answer.", Score: 0.95},
	}

	messages := p.Build("Acme Bot", chunks, nil, "question")

	assert.Contains(t, messages[0].Content, "High value answer.")
	assert.NotContains(t, messages[0].Content, big)
}

func TestPromptBuilder_Build_QuestionNeverDropped(t *testing.T) {
	p := NewPromptBuilder()
	p.budgetTokens = 1

	question := strings.Repeat("very long question ", 50)
	messages := p.Build("Acme Bot", []domain.ScoredChunk{{Content: "chunk", Score: 0.8}}, []domain.Message{{Role: domain.RoleUser, Content: "old"}}, question)

	last := messages[len(messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, question, last.Content)
}
