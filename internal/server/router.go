package server

import (
	"net/http"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/api/handlers"
	"github.com/cloo-solutions/ticketassist/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	Logger             zerolog.Logger
	CORSAllowedOrigins []string
	// MaxUploadBytes bounds document uploads; other bodies are capped at 1 MiB.
	MaxUploadBytes int64

	TicketHandler    *handlers.TicketHandler
	AssistHandler    *handlers.AssistHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	FeedbackHandler  *handlers.FeedbackHandler
	EventsHandler    *handlers.EventsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(defaultMaxBodyBytes))

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", cfg.TicketHandler.List)
			r.Post("/", cfg.TicketHandler.Create)
			r.Get("/{id}", cfg.TicketHandler.Get)
			r.Delete("/{id}", cfg.TicketHandler.Delete)
			r.Post("/{id}/reply", cfg.TicketHandler.Reply)
			r.Post("/{id}/resolve", cfg.TicketHandler.Resolve)
			r.Post("/{id}/suggest", cfg.AssistHandler.Suggest)
			r.Post("/{id}/summarize", cfg.AssistHandler.Summarize)
			r.Get("/{id}/events", cfg.EventsHandler.Stream)
		})

		r.Post("/recommend", cfg.AssistHandler.Recommend)
		r.Post("/translate", cfg.AssistHandler.Translate)
		r.Post("/feedback", cfg.FeedbackHandler.Record)
		r.Get("/analytics/gaps", cfg.FeedbackHandler.Gaps)

		r.Get("/knowledge", cfg.KnowledgeHandler.List)
		r.Post("/knowledge", cfg.KnowledgeHandler.Create)
		r.Delete("/knowledge/{id}", cfg.KnowledgeHandler.Delete)
		r.Get("/knowledge/documents/{document_id}", cfg.KnowledgeHandler.DownloadDocument)
	})

	r.With(middleware.MaxBodyBytes(cfg.MaxUploadBytes)).Post("/knowledge/upload", cfg.KnowledgeHandler.Upload)

	return r
}
