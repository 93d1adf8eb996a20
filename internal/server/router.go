package server

import (
	"net/http"

	"github.com/TheScouser/chatbox-sub000/internal/api"
	"github.com/TheScouser/chatbox-sub000/internal/api/handlers"
	"github.com/TheScouser/chatbox-sub000/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
	ChatHandler      *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/agents/{agentID}", func(r chi.Router) {
		r.Post("/knowledge", cfg.KnowledgeHandler.Add)
		r.Get("/knowledge", cfg.KnowledgeHandler.List)
		r.Post("/search", cfg.ChatHandler.Search)
	})

	r.Route("/knowledge/{id}", func(r chi.Router) {
		r.Put("/", cfg.KnowledgeHandler.Update)
		r.Delete("/", cfg.KnowledgeHandler.Delete)
	})

	r.Post("/conversations/{conversationID}/messages", cfg.ChatHandler.SendMessage)

	return r
}
