package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chirp-labs/chirp/internal/api/handlers"
	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/chirp-labs/chirp/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) ValidateSession(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockBotService struct {
	mock.Mock
}

func (m *MockBotService) CreateBot(ctx context.Context, params service.CreateBotParams) (*domain.Bot, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotService) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotService) GetBotByKey(ctx context.Context, apiKey string) (*domain.Bot, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotService) ListBots(ctx context.Context) ([]*domain.Bot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Bot), args.Error(1)
}

func (m *MockBotService) UpdateBot(ctx context.Context, id string, params service.CreateBotParams) (*domain.Bot, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func (m *MockBotService) DeleteBot(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTrainingService struct {
	mock.Mock
}

func (m *MockTrainingService) StartTraining(ctx context.Context, botID string) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

func (m *MockTrainingService) Status(botID string) (service.TrainingState, bool) {
	args := m.Called(botID)
	return args.Get(0).(service.TrainingState), args.Bool(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Stream(ctx context.Context, req service.ChatRequest) (<-chan service.StreamEvent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan service.StreamEvent), args.Error(1)
}

func setupRouter() (http.Handler, *MockSessionValidator, *MockAuthService, *MockBotService, *MockTrainingService, *MockChatService) {
	validator := new(MockSessionValidator)
	authSvc := new(MockAuthService)
	botSvc := new(MockBotService)
	trainingSvc := new(MockTrainingService)
	chatSvc := new(MockChatService)

	cfg := RouterConfig{
		SessionValidator: validator,
		CORSOrigins:      []string{"*"},
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		BotHandler:       handlers.NewBotHandler(botSvc, trainingSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		PublicHandler:    handlers.NewPublicHandler(botSvc),
	}

	router := NewRouter(cfg)
	return router, validator, authSvc, botSvc, trainingSvc, chatSvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_AdminRoutes_RequireAuth(t *testing.T) {
	router, validator, _, _, _, _ := setupRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/bots"},
		{http.MethodPost, "/api/admin/bots"},
		{http.MethodGet, "/api/admin/bots/123"},
		{http.MethodPut, "/api/admin/bots/123"},
		{http.MethodDelete, "/api/admin/bots/123"},
		{http.MethodPost, "/api/admin/bots/123/train"},
		{http.MethodGet, "/api/admin/bots/123/train/status"},
		{http.MethodPost, "/api/admin/logout"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	validator.AssertExpectations(t)
}

func TestRouter_AdminRoutes_WithValidSession(t *testing.T) {
	router, validator, _, botSvc, _, _ := setupRouter()

	validator.On("ValidateSession", mock.Anything, "cs_sessiontoken").Return("admin", nil)
	botSvc.On("ListBots", mock.Anything).Return([]*domain.Bot{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/bots", nil)
	req.Header.Set("Authorization", "Bearer cs_sessiontoken")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	validator.AssertExpectations(t)
	botSvc.AssertExpectations(t)
}

func TestRouter_PublicConfig_NoAuthRequired(t *testing.T) {
	router, _, _, botSvc, _, _ := setupRouter()

	bot := domain.NewBot("bot-1", "cb_abc123", "Support Bot")
	botSvc.On("GetBotByKey", mock.Anything, "cb_abc123").Return(bot, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/public/config/cb_abc123", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	botSvc.AssertExpectations(t)
}

func TestRouter_Chat_NoAuthRequired(t *testing.T) {
	router, _, _, _, _, chatSvc := setupRouter()

	events := make(chan service.StreamEvent, 1)
	events <- service.StreamEvent{Type: service.EventDone}
	close(events)
	chatSvc.On("Stream", mock.Anything, mock.Anything).Return((<-chan service.StreamEvent)(events), nil)

	body := `{"bot_id":"bot-1","api_key":"cb_abc123","session_id":"sess-1","message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	chatSvc.AssertExpectations(t)
}

func TestRouter_Login_NoAuthRequired(t *testing.T) {
	router, _, authSvc, _, _, _ := setupRouter()

	authSvc.On("Login", mock.Anything, "admin", "secret").Return("cs_token", nil)

	body := `{"username":"admin","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	authSvc.AssertExpectations(t)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://customer.example.com")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://customer.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
