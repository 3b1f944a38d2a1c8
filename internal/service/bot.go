package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/google/uuid"
)

const apiKeyPrefix = "cb_"

// BotRepositoryInterface defines the repository interface for bot persistence
type BotRepositoryInterface interface {
	Create(ctx context.Context, b *domain.Bot) error
	GetByID(ctx context.Context, id string) (*domain.Bot, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Bot, error)
	List(ctx context.Context) ([]*domain.Bot, error)
	Update(ctx context.Context, b *domain.Bot) error
	Delete(ctx context.Context, id string) error
	ConsumeQuota(ctx context.Context, id string) (bool, error)
	ActivateVersion(ctx context.Context, id string, version int64) error
}

type UUIDGenerator interface {
	NewString() string
}

type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// BotService implements dashboard management of chat bots.
type BotService struct {
	botRepo             BotRepositoryInterface
	uuidGen             UUIDGenerator
	defaultMessageLimit int
}

// NewBotService builds a BotService. defaultMessageLimit is applied to new
// bots when the request does not set a quota; zero keeps the domain default.
func NewBotService(botRepo BotRepositoryInterface, uuidGen UUIDGenerator, defaultMessageLimit int) *BotService {
	return &BotService{
		botRepo:             botRepo,
		uuidGen:             uuidGen,
		defaultMessageLimit: defaultMessageLimit,
	}
}

// CreateBotParams carries the admin-editable bot fields.
type CreateBotParams struct {
	Name           string
	WelcomeMessage string
	AvatarURL      string
	AccentColor    string
	Position       string
	ShowButtonText *bool
	ButtonText     string
	SourceType     string
	SourceContent  string
	MessageLimit   int
}

func (s *BotService) CreateBot(ctx context.Context, params CreateBotParams) (*domain.Bot, error) {
	if params.Name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "bot name is required")
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	bot := domain.NewBot(s.uuidGen.NewString(), apiKey, params.Name)
	if s.defaultMessageLimit > 0 {
		bot.MessageLimit = s.defaultMessageLimit
	}
	applyBotParams(bot, params)

	if err := domain.ValidateBot(bot); err != nil {
		return nil, err
	}

	if err := s.botRepo.Create(ctx, bot); err != nil {
		return nil, err
	}

	return bot, nil
}

func (s *BotService) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	if id == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "bot ID is required")
	}
	return s.botRepo.GetByID(ctx, id)
}

// GetBotByKey resolves a bot by its widget API key. Unknown keys surface as
// ErrInvalidAPIKey so callers cannot probe for bot existence.
func (s *BotService) GetBotByKey(ctx context.Context, apiKey string) (*domain.Bot, error) {
	if apiKey == "" {
		return nil, domain.ErrInvalidAPIKey
	}
	bot, err := s.botRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrBotNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}
	return bot, nil
}

func (s *BotService) ListBots(ctx context.Context) ([]*domain.Bot, error) {
	return s.botRepo.List(ctx)
}

func (s *BotService) UpdateBot(ctx context.Context, id string, params CreateBotParams) (*domain.Bot, error) {
	bot, err := s.botRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != "" {
		bot.Name = params.Name
	}
	applyBotParams(bot, params)

	if err := domain.ValidateBot(bot); err != nil {
		return nil, err
	}

	if err := s.botRepo.Update(ctx, bot); err != nil {
		return nil, err
	}

	return bot, nil
}

func (s *BotService) DeleteBot(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "bot ID is required")
	}
	return s.botRepo.Delete(ctx, id)
}

func applyBotParams(bot *domain.Bot, params CreateBotParams) {
	if params.WelcomeMessage != "" {
		bot.WelcomeMessage = params.WelcomeMessage
	}
	if params.AvatarURL != "" {
		bot.AvatarURL = params.AvatarURL
	}
	if params.AccentColor != "" {
		bot.AccentColor = params.AccentColor
	}
	if params.Position != "" {
		bot.Position = domain.WidgetPosition(params.Position)
	}
	if params.ShowButtonText != nil {
		bot.ShowButtonText = *params.ShowButtonText
	}
	if params.ButtonText != "" {
		bot.ButtonText = params.ButtonText
	}
	if params.SourceType != "" {
		bot.SourceType = domain.SourceType(params.SourceType)
	}
	if params.SourceContent != "" {
		bot.SourceContent = params.SourceContent
	}
	if params.MessageLimit > 0 {
		bot.MessageLimit = params.MessageLimit
	}
	bot.UpdatedAt = time.Now().UTC()
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}
