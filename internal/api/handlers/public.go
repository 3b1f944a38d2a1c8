package handlers

import (
	"context"
	"net/http"

	"github.com/chirp-labs/chirp/internal/api"
	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/go-chi/chi/v5"
)

type WidgetConfigService interface {
	GetBotByKey(ctx context.Context, apiKey string) (*domain.Bot, error)
}

// PublicHandler serves the unauthenticated widget bootstrap endpoint. It
// exposes appearance fields only, never source content, keys or quota.
type PublicHandler struct {
	svc WidgetConfigService
}

func NewPublicHandler(svc WidgetConfigService) *PublicHandler {
	return &PublicHandler{svc: svc}
}

type WidgetConfigResponse struct {
	BotID          string `json:"bot_id"`
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcome_message"`
	AvatarURL      string `json:"avatar_url"`
	AccentColor    string `json:"accent_color"`
	Position       string `json:"position"`
	ShowButtonText bool   `json:"show_button_text"`
	ButtonText     string `json:"button_text"`
}

func (h *PublicHandler) WidgetConfig(w http.ResponseWriter, r *http.Request) {
	apiKey := chi.URLParam(r, "api_key")
	if apiKey == "" {
		api.Error(w, http.StatusBadRequest, "api_key is required")
		return
	}

	bot, err := h.svc.GetBotByKey(r.Context(), apiKey)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, WidgetConfigResponse{
		BotID:          bot.ID,
		Name:           bot.Name,
		WelcomeMessage: bot.WelcomeMessage,
		AvatarURL:      bot.AvatarURL,
		AccentColor:    bot.AccentColor,
		Position:       string(bot.Position),
		ShowButtonText: bot.ShowButtonText,
		ButtonText:     bot.ButtonText,
	})
}
