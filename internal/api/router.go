package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/kiranshivaraju/textbrief/internal/api/middleware"
	"github.com/kiranshivaraju/textbrief/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler  http.HandlerFunc
	AnalyzeHandler http.HandlerFunc
}

var corsOptions = cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{"GET", "OPTIONS", "PATCH", "DELETE", "POST", "PUT"},
	AllowedHeaders: []string{
		"X-CSRF-Token", "X-Requested-With", "Accept", "Accept-Version", "Content-Length",
		"Content-MD5", "Content-Type", "Date", "X-Api-Version",
	},
	ExposedHeaders:   []string{mw.RequestIDHeader},
	AllowCredentials: true,
	// Preflights fall through to the route so OPTIONS answers the same with or without CORS headers.
	OptionsPassthrough: true,
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(corsOptions))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/health", orNotImplemented(deps.HealthHandler))

	r.Post("/api/ai", orNotImplemented(deps.AnalyzeHandler))
	r.Options("/api/ai", func(w http.ResponseWriter, _ *http.Request) {
		response.Empty(w, http.StatusOK)
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "endpoint not yet implemented")
	}
}
