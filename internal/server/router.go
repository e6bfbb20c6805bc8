package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lepinkainen/registry-preview/internal/ratelimit"
)

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	// Limiter guards the scrape endpoint; nil disables abuse limiting.
	Limiter        *ratelimit.Limiter
	AllowedOrigins []string
	// AdminToken guards the cache admin routes when non-empty.
	AdminToken string
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			MaxAge:         86400,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	scrape := http.Handler(http.HandlerFunc(h.ScrapePreview))
	if cfg.Limiter != nil {
		scrape = ratelimit.Middleware(cfg.Limiter, ratelimit.EndpointScrapePreview)(scrape)
	}

	// The registry item editor posts to the unprefixed path.
	r.Method(http.MethodPost, "/scrape-preview", scrape)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/scrape-preview", scrape)

		r.Route("/preview-cache", func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminToken))
			r.Get("/stats", h.CacheStats)
			r.Delete("/", h.InvalidateCache)
			r.Post("/cleanup", h.CleanupCache)
		})
	})

	return r
}
