/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Rate limit: Write routes only; reads are cheap and cached

ROUTE GROUPS:
  /api/purchases/*          Purchase recording and lookup
  /api/stats/*              Aggregation queries
  /api/revenue/reconciled   Reconciled revenue
  /api/healthz              Liveness

SECURITY NOTE:
  No authentication middleware. Purchase reports arrive from trusted
  frontends; see the deployment notes before exposing this publicly.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter creates a new router with all routes configured. writeRPS bounds
// the purchase-recording endpoints; zero disables the limiter.
func NewRouter(h *Handler, writeRPS float64) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Purchase routes (rate limited writes)
		r.Route("/purchases", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(throttle(writeRPS))
				r.Post("/base", h.RecordBasePurchase)
				r.Post("/token", h.RecordTokenPurchase)
			})
			r.Get("/{hash}", h.GetPurchase)
		})

		// Aggregate routes
		r.Route("/stats", func(r chi.Router) {
			r.Get("/", h.GetMarketStats)
			r.Get("/chart", h.GetChart)
			r.Get("/trends", h.GetTrends)
			r.Get("/top-items", h.GetTopItems)
		})

		// Revenue routes
		r.Get("/revenue/reconciled", h.GetReconciledRevenue)

		// Ops routes
		r.Get("/healthz", h.Healthz)
	})

	return r
}

// throttle builds a token-bucket limiter middleware. The bucket is shared
// across clients; purchase reports come from a handful of trusted frontends,
// not the open internet, so per-IP accounting is not worth the bookkeeping.
func throttle(rps float64) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
