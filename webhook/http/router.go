package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wraps the peer routes with panic recovery, open CORS and a per-client rate limit.
func NewRouter(h *PeerHandler, rps float64, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	corsConfig := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Webhook-Secret"},
		MaxAge:         300,
	})
	r.Use(corsConfig.Handler)
	r.Use(RateLimit(rps, burst))

	h.RegisterRoutes(r)
	return r
}
