package service

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"github.com/chirp-labs/chirp/internal/domain"
)

// MaxMessageLength bounds a single widget message in characters.
const MaxMessageLength = 4000

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, botID, sessionID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, m *domain.Message) error
	RecentHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// ContextRetriever finds supporting chunks for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, botID, question string) ([]domain.ScoredChunk, error)
}

// Generator streams a model answer for an assembled prompt.
type Generator interface {
	Stream(ctx context.Context, messages []ChatMessage, onDelta func(string) error) error
}

// WidgetAuthenticator validates widget credentials.
type WidgetAuthenticator interface {
	ValidateWidgetKey(ctx context.Context, botID, apiKey string) (*domain.Bot, error)
}

// SessionLimiter gates one message per session at a time within a sliding
// window.
type SessionLimiter interface {
	Begin(botID, sessionID string) error
	End(botID, sessionID string)
}

// Stream event types sent to the widget.
const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is one server-sent event of a chat response.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ChatRequest is one widget message.
type ChatRequest struct {
	BotID     string
	APIKey    string
	SessionID string
	Message   string
}

// ChatService runs the retrieval-augmented answer pipeline for widget
// messages.
type ChatService struct {
	auth          WidgetAuthenticator
	botRepo       BotRepositoryInterface
	conversations ConversationStore
	limiter       SessionLimiter
	retriever     ContextRetriever
	prompts       *PromptBuilder
	generator     Generator
}

func NewChatService(
	auth WidgetAuthenticator,
	botRepo BotRepositoryInterface,
	conversations ConversationStore,
	limiter SessionLimiter,
	retriever ContextRetriever,
	prompts *PromptBuilder,
	generator Generator,
) *ChatService {
	return &ChatService{
		auth:          auth,
		botRepo:       botRepo,
		conversations: conversations,
		limiter:       limiter,
		retriever:     retriever,
		prompts:       prompts,
		generator:     generator,
	}
}

// Stream answers one widget message. Failures before generation starts are
// returned as an error and never spend quota; once the returned channel is
// open, the outcome arrives as events and the message is counted.
func (s *ChatService) Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	if req.SessionID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "session_id is required")
	}
	if req.Message == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message is too long")
	}

	bot, err := s.auth.ValidateWidgetKey(ctx, req.BotID, req.APIKey)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Begin(bot.ID, req.SessionID); err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			s.limiter.End(bot.ID, req.SessionID)
		}
	}()

	if !bot.QuotaRemaining() {
		return nil, domain.ErrBotQuotaExceeded
	}

	conv, err := s.conversations.FindOrCreate(ctx, bot.ID, req.SessionID)
	if err != nil {
		return nil, err
	}

	// History is read before the new message is stored so the question
	// appears in the prompt exactly once.
	history, err := s.conversations.RecentHistory(ctx, conv.ID, DefaultHistoryMessages)
	if err != nil {
		return nil, err
	}

	// The user's message is stored before retrieval so a retrieval failure
	// never loses it.
	userMsg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	chunks, err := s.retriever.Retrieve(ctx, bot.ID, req.Message)
	if err != nil {
		return nil, err
	}

	messages := s.prompts.Build(bot.Name, chunks, history, req.Message)

	events := make(chan StreamEvent, 32)
	ok = true
	go s.generate(ctx, bot, conv, req.SessionID, messages, events)

	return events, nil
}

func (s *ChatService) generate(ctx context.Context, bot *domain.Bot, conv *domain.Conversation, sessionID string, messages []ChatMessage, events chan<- StreamEvent) {
	defer s.limiter.End(bot.ID, sessionID)
	defer close(events)

	var answer string
	streamErr := s.generator.Stream(ctx, messages, func(delta string) error {
		answer += delta
		select {
		case events <- StreamEvent{Type: EventToken, Content: delta}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	// The widget may be gone; persistence and quota accounting still run.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	truncated := streamErr != nil
	if answer != "" {
		assistantMsg := &domain.Message{
			ConversationID: conv.ID,
			Role:           domain.RoleAssistant,
			Content:        answer,
			Truncated:      truncated,
		}
		if err := s.conversations.AppendMessage(bg, assistantMsg); err != nil {
			log.Printf("failed to persist assistant message for conversation %s: %v", conv.ID, err)
		}
	}

	// Quota is spent once generation produced anything or ran to completion.
	if answer != "" || streamErr == nil {
		if _, err := s.botRepo.ConsumeQuota(bg, bot.ID); err != nil {
			log.Printf("failed to consume quota for bot %s: %v", bot.ID, err)
		}
	}

	switch {
	case streamErr == nil:
		emit(ctx, events, StreamEvent{Type: EventDone})
	case errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded):
		// Client disconnected; nobody is listening for an event.
	default:
		emit(ctx, events, StreamEvent{Type: EventError, Content: "Sorry, something went wrong generating a response."})
	}
}

// emit sends an event unless the consumer is gone.
func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
