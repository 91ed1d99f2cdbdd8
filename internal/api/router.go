package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/api/middleware"
	"github.com/super3/nilo.chat-sub000/internal/bus"
	"github.com/super3/nilo.chat-sub000/internal/channel"
	"github.com/super3/nilo.chat-sub000/internal/handlers"
	"github.com/super3/nilo.chat-sub000/internal/store"
	"github.com/super3/nilo.chat-sub000/internal/ws"
)

// Deps holds everything the router needs. redis may be nil; rate
// limiting is skipped without it.
type Deps struct {
	Logger   zerolog.Logger
	Store    store.DataStore
	Redis    *store.RedisStore
	Bus      *bus.Bus
	Registry *channel.Registry
	AdminKey string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting, when Redis is configured
	if deps.Redis != nil {
		limiter := middleware.NewRateLimiter(deps.Redis, deps.Logger)
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (agents call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(deps.Store, deps.Redis, deps.Bus, deps.Registry, deps.Logger)
	auth := middleware.NewAuthMiddleware(deps.Store, deps.AdminKey)
	socket := ws.NewServer(deps.Bus, deps.Store, deps.Registry, deps.Logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)
	r.Post("/keys", h.CreateKey)

	// Live transport
	r.Get("/ws", socket.Handle)

	// Authenticated routes (require API key)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/channels", h.ListChannels)
		r.Get("/messages/{channel}", h.GetMessages)
		r.Post("/messages", h.PostMessage)
		r.Get("/keys", h.ListKeys)
		r.Delete("/keys/{id}", h.DeleteKey)
	})

	return r
}
