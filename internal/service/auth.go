package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chirp-labs/chirp/internal/domain"
)

const (
	sessionTokenPrefix = "cs_"
	sessionTTL         = 24 * time.Hour
)

// AdminSessionStore persists dashboard sessions keyed by token hash.
type AdminSessionStore interface {
	Create(ctx context.Context, tokenHash, username string, createdAt, expiresAt time.Time) error
	GetUsername(ctx context.Context, tokenHash string) (string, error)
	Delete(ctx context.Context, tokenHash string) error
}

// AuthService handles admin login and widget credential validation.
type AuthService struct {
	sessions      AdminSessionStore
	botRepo       BotRepositoryInterface
	adminUsername string
	passwordHash  []byte
}

// NewAuthService builds an AuthService for a single admin account. The
// password may be supplied as a bcrypt hash or as plaintext; plaintext is
// hashed at startup so comparisons are always against a hash.
func NewAuthService(sessions AdminSessionStore, botRepo BotRepositoryInterface, adminUsername, adminPassword string) (*AuthService, error) {
	var hash []byte
	if adminPassword != "" {
		if strings.HasPrefix(adminPassword, "$2a$") || strings.HasPrefix(adminPassword, "$2b$") {
			hash = []byte(adminPassword)
		} else {
			h, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return nil, err
			}
			hash = h
		}
	}

	return &AuthService{
		sessions:      sessions,
		botRepo:       botRepo,
		adminUsername: adminUsername,
		passwordHash:  hash,
	}, nil
}

// Login verifies admin credentials and issues a session token. Only the
// SHA-256 hash of the token is stored.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", domain.ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) != 1 {
		// Burn a bcrypt comparison anyway so the timing does not reveal
		// whether the username matched.
		_ = bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
		return "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate session token", err)
	}

	now := time.Now().UTC()
	if err := s.sessions.Create(ctx, hashToken(token), username, now, now.Add(sessionTTL)); err != nil {
		return "", err
	}

	return token, nil
}

// ValidateSession resolves a session token to the logged-in username.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, sessionTokenPrefix) {
		return "", domain.ErrSessionNotFound
	}
	return s.sessions.GetUsername(ctx, hashToken(token))
}

// Logout invalidates a session token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, hashToken(token))
}

// ValidateWidgetKey authenticates a widget request: the bot must exist and
// the presented key must match its API key.
func (s *AuthService) ValidateWidgetKey(ctx context.Context, botID, apiKey string) (*domain.Bot, error) {
	if botID == "" || apiKey == "" {
		return nil, domain.ErrInvalidAPIKey
	}

	bot, err := s.botRepo.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, domain.ErrBotNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(bot.APIKey), []byte(apiKey)) != 1 {
		return nil, domain.ErrInvalidAPIKey
	}

	return bot, nil
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return sessionTokenPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
