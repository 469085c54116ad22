package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/crashbot/internal/api/handler"
	mw "github.com/kiranshivaraju/crashbot/internal/api/middleware"
	"github.com/kiranshivaraju/crashbot/internal/api/response"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	// TrustProxyHeaders keys rate limits and logs on the forwarded client IP.
	TrustProxyHeaders bool

	HealthHandler http.HandlerFunc
	ListHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes,
// instrumented with otelhttp.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public probes
	r.Get("/ping", handler.Ping)
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)
		r.Use(deps.Auth.Authenticate)

		r.Get("/list", orNotImplemented(deps.ListHandler))
	})

	return otelhttp.NewHandler(r, "crashbot.http")
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
