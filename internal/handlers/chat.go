package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"chat-relay-backend/internal/metrics"
	"chat-relay-backend/internal/middleware"
	"chat-relay-backend/internal/models"
	"chat-relay-backend/internal/services"
)

type relayer interface {
	Relay(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

type limiter interface {
	Check(ctx context.Context, clientID string) error
}

type ChatHandler struct {
	relay   relayer
	limiter limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewChatHandler(relay relayer, limiter limiter, logger *zap.Logger, m *metrics.Metrics) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		relay:   relay,
		limiter: limiter,
		logger:  logger.Named("chat"),
		metrics: m,
	}
}

// Chat validates the body, charges the client's quota and relays the message.
// Invalid requests never reach the limiter or the provider.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := services.ValidateChatRequest(req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.limiter.Check(r.Context(), middleware.ClientIP(r)); err != nil {
		h.fail(w, r, err)
		return
	}

	reply, err := h.relay.Relay(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
	h.metrics.ObserveRequest(http.StatusOK)
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := handleServiceError(w, r, h.logger, err)
	if status == http.StatusTooManyRequests {
		h.metrics.IncRateLimited()
	}
	h.metrics.ObserveRequest(status)
}
