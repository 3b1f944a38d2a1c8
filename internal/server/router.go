package server

import (
	"net/http"

	"github.com/chirp-labs/chirp/internal/api"
	"github.com/chirp-labs/chirp/internal/api/handlers"
	"github.com/chirp-labs/chirp/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	SessionValidator middleware.SessionValidator
	CORSOrigins      []string
	AuthHandler      *handlers.AuthHandler
	BotHandler       *handlers.BotHandler
	ChatHandler      *handlers.ChatHandler
	PublicHandler    *handlers.PublicHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/chat", cfg.ChatHandler.Stream)
	r.Get("/api/public/config/{api_key}", cfg.PublicHandler.WidgetConfig)

	r.Post("/api/admin/login", cfg.AuthHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.SessionValidator))

		r.Post("/api/admin/logout", cfg.AuthHandler.Logout)

		r.Route("/api/admin/bots", func(r chi.Router) {
			r.Post("/", cfg.BotHandler.Create)
			r.Get("/", cfg.BotHandler.List)
			r.Get("/{id}", cfg.BotHandler.Get)
			r.Put("/{id}", cfg.BotHandler.Update)
			r.Delete("/{id}", cfg.BotHandler.Delete)
			r.Post("/{id}/train", cfg.BotHandler.Train)
			r.Get("/{id}/train/status", cfg.BotHandler.TrainStatus)
		})
	})

	return r
}
