package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay-backend/internal/metrics"
	"chat-relay-backend/internal/models"
	"chat-relay-backend/internal/ratelimit"
	"chat-relay-backend/internal/services"
)

type stubRelay struct {
	reply *models.ChatResponse
	err   error
	calls int
}

func (s *stubRelay) Relay(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	s.calls++
	return s.reply, s.err
}

type countingLimiter struct {
	err   error
	calls int
	last  string
}

func (c *countingLimiter) Check(ctx context.Context, clientID string) error {
	c.calls++
	c.last = clientID
	return c.err
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:40000"
	rr := httptest.NewRecorder()
	h.Chat(rr, req)
	return rr
}

func TestChatHandler_Success(t *testing.T) {
	relay := &stubRelay{reply: &models.ChatResponse{Reply: "hi there"}}
	lim := &countingLimiter{}
	h := NewChatHandler(relay, lim, nil, metrics.New())

	rr := postChat(t, h, `{"message": "hello"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"reply": "hi there"}`, rr.Body.String())
	assert.Equal(t, "192.0.2.10", lim.last)
	assert.Equal(t, 1, relay.calls)
}

func TestChatHandler_MissingMessageIs422BeforeLimiter(t *testing.T) {
	relay := &stubRelay{}
	lim := &countingLimiter{}
	h := NewChatHandler(relay, lim, nil, nil)

	rr := postChat(t, h, `{"text": "hello"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp models.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Detail, 1)
	assert.Equal(t, []string{"body", "message"}, resp.Detail[0].Loc)
	assert.Equal(t, services.ReasonMissing, resp.Detail[0].Type)

	assert.Zero(t, lim.calls)
	assert.Zero(t, relay.calls)
}

func TestChatHandler_MalformedBodies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType string
	}{
		{"not json", `message=hello`, services.ReasonJSONInvalid},
		{"empty body", ``, services.ReasonJSONInvalid},
		{"wrong type", `{"message": 42}`, services.ReasonType},
		{"trailing garbage", `{"message": "hi"} {"junk"`, services.ReasonJSONInvalid},
		{"second document", `{"message": "hi"}{"message": "again"}`, services.ReasonJSONInvalid},
		{"trailing array", `{"message": "hi"} [1]`, services.ReasonJSONInvalid},
		{"bad history role", `{"message": "hi", "history": [{"role": "system", "content": "x"}]}`, services.ReasonInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lim := &countingLimiter{}
			h := NewChatHandler(&stubRelay{}, lim, nil, nil)

			rr := postChat(t, h, tc.body)

			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			var resp models.ValidationErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Detail)
			assert.Equal(t, tc.wantType, resp.Detail[0].Type)
			assert.Zero(t, lim.calls)
		})
	}
}

func TestChatHandler_TrailingWhitespaceAccepted(t *testing.T) {
	relay := &stubRelay{reply: &models.ChatResponse{Reply: "ok"}}
	h := NewChatHandler(relay, &countingLimiter{}, nil, nil)

	rr := postChat(t, h, "{\"message\": \"hi\"}\n\t ")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, relay.calls)
}

func TestChatHandler_BodyTooLarge(t *testing.T) {
	h := NewChatHandler(&stubRelay{}, &countingLimiter{}, nil, nil)
	big := `{"message": "` + strings.Repeat("a", maxBodyBytes) + `"}`

	rr := postChat(t, h, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestChatHandler_RateLimited(t *testing.T) {
	relay := &stubRelay{reply: &models.ChatResponse{Reply: "ok"}}
	lim := &countingLimiter{err: &ratelimit.ExceededError{ClientID: "192.0.2.10", Limit: 20, Window: time.Minute, RetryAfter: 12 * time.Second}}
	h := NewChatHandler(relay, lim, nil, metrics.New())

	rr := postChat(t, h, `{"message": "hello"}`)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"detail": "Too many requests"}`, rr.Body.String())
	assert.Equal(t, "12", rr.Header().Get("Retry-After"))
	assert.Zero(t, relay.calls)
}

func TestChatHandler_RealLimiterRejectsAfterQuota(t *testing.T) {
	store, err := ratelimit.NewMemoryStore(100)
	require.NoError(t, err)
	relay := &stubRelay{reply: &models.ChatResponse{Reply: "ok"}}
	h := NewChatHandler(relay, ratelimit.New(store, 3, time.Minute), nil, nil)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, postChat(t, h, `{"message": "hello"}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, postChat(t, h, `{"message": "hello"}`).Code)
	assert.Equal(t, 3, relay.calls)
}

func TestChatHandler_UpstreamFailure(t *testing.T) {
	relay := &stubRelay{err: &services.UpstreamError{Message: "Failed to get AI response", Err: errors.New("dial tcp: timeout")}}
	h := NewChatHandler(relay, &countingLimiter{}, nil, nil)

	rr := postChat(t, h, `{"message": "hello"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"detail": "Failed to get AI response"}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "dial tcp")
}

func TestChatHandler_LimiterStoreFailure(t *testing.T) {
	relay := &stubRelay{}
	h := NewChatHandler(relay, &countingLimiter{err: errors.New("redis down")}, nil, nil)

	rr := postChat(t, h, `{"message": "hello"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "redis")
	assert.Zero(t, relay.calls)
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
