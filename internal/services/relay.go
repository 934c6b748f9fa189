package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chat-relay-backend/internal/metrics"
	"chat-relay-backend/internal/models"
)

// SystemPrompt is always sent as the first message of every completion.
const SystemPrompt = "You are a helpful, friendly chatbot. " +
	"Use clear formatting with paragraphs, bullet points, and code blocks where appropriate."

const (
	genericUpstreamMessage = "Failed to get AI response"
	timeoutUpstreamMessage = "AI provider did not respond in time"
)

// CompletionRequest is the fully built message sequence sent upstream.
type CompletionRequest struct {
	Messages    []models.ChatMessage
	Temperature float32
}

// Completer performs one synchronous completion call and returns the text of
// the first candidate.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type RelayConfig struct {
	Temperature float32
	Timeout     time.Duration
	// ExposeUpstreamErrors passes raw provider error text to clients.
	ExposeUpstreamErrors bool
}

// RelayService forwards chat requests to the completion provider.
type RelayService struct {
	completer Completer
	cfg       RelayConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRelayService(completer Completer, cfg RelayConfig, logger *zap.Logger, m *metrics.Metrics) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		completer: completer,
		cfg:       cfg,
		logger:    logger.Named("relay"),
		metrics:   m,
	}
}

// BuildMessages returns the system prompt followed by the caller's history and
// the new user message.
func BuildMessages(req models.ChatRequest) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: SystemPrompt})
	messages = append(messages, req.History...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: req.Message})
	return messages
}

// Relay validates req, calls the provider and wraps its reply. Failures of the
// provider call are returned as *UpstreamError.
func (s *RelayService) Relay(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := ValidateChatRequest(req); err != nil {
		return nil, err
	}

	temperature := s.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.completer.Complete(ctx, CompletionRequest{
		Messages:    BuildMessages(req),
		Temperature: temperature,
	})
	took := time.Since(start)

	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		outcome := metrics.OutcomeError
		if timedOut {
			outcome = metrics.OutcomeTimeout
		}
		s.metrics.ObserveUpstream(outcome, took)
		s.logger.Error("completion failed",
			zap.Error(err),
			zap.String("outcome", outcome),
			zap.Duration("took", took),
		)
		return nil, s.upstreamError(err, timedOut)
	}

	s.metrics.ObserveUpstream(metrics.OutcomeSuccess, took)
	s.logger.Debug("completion succeeded",
		zap.Int("history", len(req.History)),
		zap.Int("reply_length", len(reply)),
		zap.Duration("took", took),
	)
	return &models.ChatResponse{Reply: reply}, nil
}

func (s *RelayService) upstreamError(err error, timedOut bool) *UpstreamError {
	msg := genericUpstreamMessage
	switch {
	case s.cfg.ExposeUpstreamErrors:
		msg = err.Error()
	case timedOut:
		msg = timeoutUpstreamMessage
	}
	return &UpstreamError{Message: msg, Err: err}
}
