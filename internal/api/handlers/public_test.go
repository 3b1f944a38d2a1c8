package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWidgetConfigService struct {
	mock.Mock
}

func (m *MockWidgetConfigService) GetBotByKey(ctx context.Context, apiKey string) (*domain.Bot, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func TestPublicHandler_WidgetConfig_Success(t *testing.T) {
	mockSvc := new(MockWidgetConfigService)
	handler := NewPublicHandler(mockSvc)

	mockSvc.On("GetBotByKey", mock.Anything, "cb_abc123").Return(testBot(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/public/config/cb_abc123", nil)
	req = withURLParam(req, "api_key", "cb_abc123")
	w := httptest.NewRecorder()

	handler.WidgetConfig(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "bot-1", data["bot_id"])
	assert.Equal(t, "Support Bot", data["name"])
	assert.Equal(t, "#3B82F6", data["accent_color"])
	assert.Equal(t, "bottom-right", data["position"])
	mockSvc.AssertExpectations(t)
}

// The widget bootstrap response must never leak source content, the API key
// or quota counters.
func TestPublicHandler_WidgetConfig_OmitsPrivateFields(t *testing.T) {
	mockSvc := new(MockWidgetConfigService)
	handler := NewPublicHandler(mockSvc)

	mockSvc.On("GetBotByKey", mock.Anything, "cb_abc123").Return(testBot(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/public/config/cb_abc123", nil)
	req = withURLParam(req, "api_key", "cb_abc123")
	w := httptest.NewRecorder()

	handler.WidgetConfig(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "source_content")
	assert.NotContains(t, body, "api_key")
	assert.NotContains(t, body, "message_limit")
	assert.NotContains(t, body, "Our store opens at 9am.")
}

func TestPublicHandler_WidgetConfig_UnknownKey(t *testing.T) {
	mockSvc := new(MockWidgetConfigService)
	handler := NewPublicHandler(mockSvc)

	mockSvc.On("GetBotByKey", mock.Anything, "cb_bogus").Return(nil, domain.ErrInvalidAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/api/public/config/cb_bogus", nil)
	req = withURLParam(req, "api_key", "cb_bogus")
	w := httptest.NewRecorder()

	handler.WidgetConfig(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockSvc.AssertExpectations(t)
}
