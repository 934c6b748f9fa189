package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chat-relay-backend/internal/handlers"
	"chat-relay-backend/internal/logging"
	"chat-relay-backend/internal/metrics"
	"chat-relay-backend/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	// TrustProxyHeaders rewrites RemoteAddr from forwarding headers. Without
	// it the rate limit is keyed by the TCP peer.
	TrustProxyHeaders bool
}

// New wires the HTTP surface. m may be nil to disable /metrics.
func New(
	logger *zap.Logger,
	chatHandler *handlers.ChatHandler,
	m *metrics.Metrics,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(logging.Middleware(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health check
	r.Get("/", handlers.Health)
	r.Get("/health", handlers.Health)

	r.Post("/chat", chatHandler.Chat)

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}
