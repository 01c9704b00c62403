// Package app assembles the HTTP surface: routing, middleware, and
// readiness checks for the optional adapters.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-code-grader/internal/adapter/observability"
	"github.com/fairyhunter13/ai-code-grader/internal/config"
)

// ParseOrigins normalizes the configured origin list: entries are trimmed,
// empties dropped, and an empty or wildcard-bearing list collapses to ["*"].
func ParseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(api chi.Router) {
		// Bounded endpoints run under the request timeout. The SSE stream
		// routes stay outside it: http.TimeoutHandler buffers responses
		// and drops the Flusher the streams depend on.
		api.Group(func(g chi.Router) {
			g.Use(httpserver.TimeoutMiddleware(30 * time.Second))
			g.Get("/health", srv.HealthHandler())
			g.Get("/grade/{id}", srv.GetGradeHandler())
			g.Get("/review/{id}", srv.GetReviewHandler())

			// Rate limit mutating endpoints
			g.Group(func(wr chi.Router) {
				wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
				wr.Post("/grade", srv.CreateGradeHandler())
				wr.Post("/review", srv.CreateReviewHandler())
			})
		})
		api.Get("/grade/{id}/stream", srv.StreamGradeHandler())
		api.Get("/review/{id}/stream", srv.StreamReviewHandler())
	})

	// Health and metrics
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}
