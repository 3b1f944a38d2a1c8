package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chirp-labs/chirp/internal/chunk"
	"github.com/chirp-labs/chirp/internal/domain"
)

// FallbackAnswer is what the assistant says when the knowledge base has
// nothing relevant.
const FallbackAnswer = "I don't have that information in my knowledge base. Is there anything else I can help you with?"

const (
	// DefaultPromptBudgetTokens bounds the assembled prompt so it leaves
	// room for the model's answer.
	DefaultPromptBudgetTokens = 3000
	// DefaultHistoryMessages is how many prior messages are considered
	// before budget trimming.
	DefaultHistoryMessages = 10
)

// ChatMessage is one prompt message in OpenAI chat format.
type ChatMessage struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PromptBuilder assembles the model prompt from retrieved context and
// conversation history under a token budget.
type PromptBuilder struct {
	budgetTokens int
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{budgetTokens: DefaultPromptBudgetTokens}
}

// Build produces the message list for generation. When the budget is
// exceeded, history is dropped oldest-first, then chunks lowest-score-first.
// The system preamble and the question itself are never dropped.
func (p *PromptBuilder) Build(botName string, chunks []domain.ScoredChunk, history []domain.Message, question string) []ChatMessage {
	if len(history) > DefaultHistoryMessages {
		history = history[len(history)-DefaultHistoryMessages:]
	}

	kept := make([]domain.ScoredChunk, len(chunks))
	copy(kept, chunks)

	fixed := chunk.EstimateTokens(systemPreamble(botName, nil)) + chunk.EstimateTokens(question)

	for {
		total := fixed
		for _, m := range history {
			total += chunk.EstimateTokens(m.Content)
		}
		for _, c := range kept {
			total += chunk.EstimateTokens(c.Content)
		}
		if total <= p.budgetTokens {
			break
		}

		if len(history) > 0 {
			history = history[1:]
			continue
		}
		if len(kept) > 0 {
			kept = dropLowestScore(kept)
			continue
		}
		break
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: systemPreamble(botName, kept)})
	for _, m := range history {
		role := RoleUser
		if m.Role == domain.RoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: question})

	return messages
}

func systemPreamble(botName string, chunks []domain.ScoredChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a friendly customer support assistant.\n", botName)
	b.WriteString("Answer using ONLY the information in the context below. ")
	b.WriteString("If the context does not contain the answer, reply exactly: ")
	b.WriteString(FallbackAnswer)
	b.WriteString("\nKeep answers short and conversational. Do not invent facts, links or prices.\n\n")

	if len(chunks) == 0 {
		b.WriteString("Context: no relevant information was found in the knowledge base.")
		return b.String()
	}

	b.WriteString("Context:\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "[Chunk %d] %s\n", c.ChunkIndex, c.Content)
	}
	return b.String()
}

func dropLowestScore(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	lowest := 0
	for i, c := range chunks {
		if c.Score < chunks[lowest].Score {
			lowest = i
		}
	}
	out := make([]domain.ScoredChunk, 0, len(chunks)-1)
	out = append(out, chunks[:lowest]...)
	out = append(out, chunks[lowest+1:]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
