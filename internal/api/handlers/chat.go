package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/chirp-labs/chirp/internal/api"
	"github.com/chirp-labs/chirp/internal/api/middleware"
	"github.com/chirp-labs/chirp/internal/service"
)

type ChatService interface {
	Stream(ctx context.Context, req service.ChatRequest) (<-chan service.StreamEvent, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	BotID     string `json:"bot_id"`
	APIKey    string `json:"api_key"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Stream answers a widget message as a server-sent event stream. Errors
// before generation starts are plain JSON responses; once the stream is open,
// failures are reported as an "error" event since the status line is already
// written.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.BotID == "" {
		api.Error(w, http.StatusBadRequest, "bot_id is required")
		return
	}
	if req.APIKey == "" {
		api.Error(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if req.SessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := middleware.WithBotID(r.Context(), req.BotID)
	r = r.WithContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.svc.Stream(ctx, service.ChatRequest{
		BotID:     req.BotID,
		APIKey:    req.APIKey,
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeEvent(w, ev); err != nil {
			log.Printf("chat stream write failed: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev service.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
