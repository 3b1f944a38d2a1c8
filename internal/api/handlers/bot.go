package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chirp-labs/chirp/internal/api"
	"github.com/chirp-labs/chirp/internal/domain"
	"github.com/chirp-labs/chirp/internal/service"
	"github.com/go-chi/chi/v5"
)

type BotService interface {
	CreateBot(ctx context.Context, params service.CreateBotParams) (*domain.Bot, error)
	GetBot(ctx context.Context, id string) (*domain.Bot, error)
	ListBots(ctx context.Context) ([]*domain.Bot, error)
	UpdateBot(ctx context.Context, id string, params service.CreateBotParams) (*domain.Bot, error)
	DeleteBot(ctx context.Context, id string) error
}

type TrainingService interface {
	StartTraining(ctx context.Context, botID string) error
	Status(botID string) (service.TrainingState, bool)
}

type BotHandler struct {
	svc      BotService
	training TrainingService
}

func NewBotHandler(svc BotService, training TrainingService) *BotHandler {
	return &BotHandler{svc: svc, training: training}
}

type BotRequest struct {
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcome_message"`
	AvatarURL      string `json:"avatar_url"`
	AccentColor    string `json:"accent_color"`
	Position       string `json:"position"`
	ShowButtonText *bool  `json:"show_button_text"`
	ButtonText     string `json:"button_text"`
	SourceType     string `json:"source_type"`
	SourceContent  string `json:"source_content"`
	MessageLimit   int    `json:"message_limit"`
}

type BotResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcome_message"`
	AvatarURL      string `json:"avatar_url"`
	AccentColor    string `json:"accent_color"`
	Position       string `json:"position"`
	ShowButtonText bool   `json:"show_button_text"`
	ButtonText     string `json:"button_text"`
	SourceType     string `json:"source_type"`
	SourceContent  string `json:"source_content"`
	APIKey         string `json:"api_key"`
	MessageCount   int    `json:"message_count"`
	MessageLimit   int    `json:"message_limit"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func botToResponse(b *domain.Bot) *BotResponse {
	return &BotResponse{
		ID:             b.ID,
		Name:           b.Name,
		WelcomeMessage: b.WelcomeMessage,
		AvatarURL:      b.AvatarURL,
		AccentColor:    b.AccentColor,
		Position:       string(b.Position),
		ShowButtonText: b.ShowButtonText,
		ButtonText:     b.ButtonText,
		SourceType:     string(b.SourceType),
		SourceContent:  b.SourceContent,
		APIKey:         b.APIKey,
		MessageCount:   b.MessageCount,
		MessageLimit:   b.MessageLimit,
		CreatedAt:      b.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:      b.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func botParamsFromRequest(req BotRequest) service.CreateBotParams {
	return service.CreateBotParams{
		Name:           req.Name,
		WelcomeMessage: req.WelcomeMessage,
		AvatarURL:      req.AvatarURL,
		AccentColor:    req.AccentColor,
		Position:       req.Position,
		ShowButtonText: req.ShowButtonText,
		ButtonText:     req.ButtonText,
		SourceType:     req.SourceType,
		SourceContent:  req.SourceContent,
		MessageLimit:   req.MessageLimit,
	}
}

func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	bot, err := h.svc.CreateBot(r.Context(), botParamsFromRequest(req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, botToResponse(bot))
}

func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	bot, err := h.svc.GetBot(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, botToResponse(bot))
}

type BotListResponse struct {
	Items []*BotResponse `json:"items"`
}

func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	bots, err := h.svc.ListBots(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*BotResponse, len(bots))
	for i, b := range bots {
		responses[i] = botToResponse(b)
	}

	api.Success(w, http.StatusOK, BotListResponse{Items: responses})
}

func (h *BotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req BotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	bot, err := h.svc.UpdateBot(r.Context(), id, botParamsFromRequest(req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, botToResponse(bot))
}

func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteBot(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type TrainStatusResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func (h *BotHandler) Train(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.training.StartTraining(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"status": "training started"})
}

func (h *BotHandler) TrainStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if _, err := h.svc.GetBot(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	state, ok := h.training.Status(id)
	if !ok {
		api.Success(w, http.StatusOK, TrainStatusResponse{Status: string(domain.TrainingStatusIdle)})
		return
	}

	resp := TrainStatusResponse{
		Status:     string(state.Status),
		Error:      state.Error,
		ChunkCount: state.ChunkCount,
	}
	if !state.StartedAt.IsZero() {
		resp.StartedAt = state.StartedAt.Format("2006-01-02T15:04:05Z")
	}
	if !state.FinishedAt.IsZero() {
		resp.FinishedAt = state.FinishedAt.Format("2006-01-02T15:04:05Z")
	}

	api.Success(w, http.StatusOK, resp)
}
