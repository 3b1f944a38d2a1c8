package domain

import (
	"fmt"
	"regexp"
	"time"
)

// SourceType identifies how a bot's knowledge base is sourced.
type SourceType string

const (
	SourceTypeURL  SourceType = "url"
	SourceTypeText SourceType = "text"
)

// WidgetPosition controls where the embeddable widget renders.
type WidgetPosition string

const (
	PositionBottomRight  WidgetPosition = "bottom-right"
	PositionBottomLeft   WidgetPosition = "bottom-left"
	PositionBottomCenter WidgetPosition = "bottom-center"
)

// DefaultMessageLimit is the per-bot lifetime message quota for new bots.
const DefaultMessageLimit = 1000

var accentColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Bot is a chatbot configuration: widget appearance, knowledge source and
// usage limits. KnowledgeVersion is a monotonic counter identifying the one
// complete chunk set currently servable for the bot; it is flipped only by a
// successful ingestion run.
type Bot struct {
	ID             string
	Name           string
	WelcomeMessage string
	AvatarURL      string
	AccentColor    string
	Position       WidgetPosition
	ShowButtonText bool
	ButtonText     string

	SourceType    SourceType
	SourceContent string

	APIKey string

	KnowledgeVersion int64
	MessageCount     int
	MessageLimit     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBot creates a Bot with widget defaults applied.
func NewBot(id, apiKey, name string) *Bot {
	now := time.Now().UTC()
	return &Bot{
		ID:           id,
		Name:         name,
		AccentColor:  "#3B82F6",
		Position:     PositionBottomRight,
		ButtonText:   "Chat with us",
		APIKey:       apiKey,
		MessageLimit: DefaultMessageLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// QuotaRemaining reports whether the bot may consume another message.
func (b *Bot) QuotaRemaining() bool {
	return b.MessageCount < b.MessageLimit
}

// ValidateBot validates a Bot instance before persistence.
func ValidateBot(b *Bot) error {
	if b == nil {
		return fmt.Errorf("bot cannot be nil")
	}
	if b.ID == "" {
		return ErrMissingRequiredField.WithCause(fmt.Errorf("bot ID"))
	}
	if b.Name == "" {
		return ErrMissingRequiredField.WithCause(fmt.Errorf("bot name"))
	}
	if len(b.Name) > 255 {
		return NewDomainError(ErrCodeValidation, "bot name must be 255 characters or fewer")
	}
	if b.APIKey == "" {
		return ErrMissingRequiredField.WithCause(fmt.Errorf("api key"))
	}
	if !accentColorPattern.MatchString(b.AccentColor) {
		return ErrInvalidAccentColor
	}
	if !isValidPosition(b.Position) {
		return ErrInvalidPosition
	}
	if b.ButtonText == "" || len(b.ButtonText) > 100 {
		return NewDomainError(ErrCodeValidation, "button text must be 1-100 characters")
	}
	if b.SourceType != "" && !isValidSourceType(b.SourceType) {
		return ErrInvalidSourceType
	}
	if b.MessageLimit < 1 || b.MessageLimit > 1000000 {
		return NewDomainError(ErrCodeValidation, "message limit must be between 1 and 1000000")
	}
	return nil
}

func isValidPosition(p WidgetPosition) bool {
	switch p {
	case PositionBottomRight, PositionBottomLeft, PositionBottomCenter:
		return true
	}
	return false
}

func isValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeURL, SourceTypeText:
		return true
	}
	return false
}
