package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moodcine/backend/internal/handler/chat"
	"github.com/moodcine/backend/internal/handler/classify"
	"github.com/moodcine/backend/internal/handler/movies"
	"github.com/moodcine/backend/internal/handler/stream"
	"github.com/moodcine/backend/internal/handler/ws"
	"github.com/moodcine/backend/internal/logging"
	chatService "github.com/moodcine/backend/internal/service/chat"
	"github.com/moodcine/backend/pkg/utils"
)

// Options configures the shared middleware stack.
type Options struct {
	// RateLimit is the per-IP request budget per minute on /api. Zero disables it.
	RateLimit      int
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services. catalog may be nil.
func NewRouter(chatSvc *chatService.Service, catalog movies.Catalog, rankings movies.Rankings, opts Options) http.Handler {
	r := newBaseRouter(opts)

	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc)
	moviesHandler := movies.New(catalog, rankings)

	r.Route("/api", func(api chi.Router) {
		if opts.RateLimit > 0 {
			api.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}

		api.Route("/chat", chatHandler.RegisterRoutes)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		moviesHandler.RegisterRoutes(api)
	})

	return r
}

// NewClassifierRouter serves the classification endpoint contract at the root.
func NewClassifierRouter(engine classify.Engine, opts Options) http.Handler {
	r := newBaseRouter(opts)

	r.Group(func(g chi.Router) {
		if opts.RateLimit > 0 {
			g.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		classify.New(engine).RegisterRoutes(g)
	})

	return r
}

func newBaseRouter(opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
