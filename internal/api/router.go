package api

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the HTTP-layer knobs the router needs.
type RouterConfig struct {
	CORSOrigins     []string
	ScrapeRateLimit float64
	RequestTimeout  time.Duration
}

// NewRouter mounts all routes. The two scrape-triggering endpoints sit
// behind a per-IP rate limiter; everything else is read-mostly and
// stays open.
func NewRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ScrapeRateLimit <= 0 {
		cfg.ScrapeRateLimit = 1
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	scrapeLimiter := newScrapeLimiter(cfg.ScrapeRateLimit)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)
		r.Get("/products/{productID}/matches/suggestions", h.GetSuggestions)
		r.Get("/products/sku/{sku}/matches", h.GetMatchesBySKU)

		r.Get("/matches", h.ListMatches)
		r.Post("/matches/{matchID}/verify", h.VerifyMatch)

		r.Get("/dashboard/stats", h.GetDashboardStats)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(scrapeLimiter))
			r.Post("/scrape", h.ScrapeURLs)
			r.Post("/comparison/manual", h.ManualComparison)
		})
	})

	return r
}

// newScrapeLimiter builds the per-IP limiter for the scrape endpoints.
// Browser scrapes are expensive and hammer the retailers, so the
// ceiling is requests per second per client, not per server.
func newScrapeLimiter(ratePerSecond float64) *limiter.Limiter {
	lmt := tollbooth.NewLimiter(ratePerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lmt.SetIPLookups([]string{"RemoteAddr", "X-Forwarded-For", "X-Real-IP"})
	lmt.SetMessage(`{"error":"rate limit exceeded"}`)
	lmt.SetMessageContentType("application/json")
	return lmt
}

func rateLimit(lmt *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}
