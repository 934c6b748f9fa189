package models

// Message roles understood by the relay.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message     string        `json:"message" validate:"required,notblank"`
	History     []ChatMessage `json:"history" validate:"omitempty,dive"`
	Temperature *float32      `json:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a plain error message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationErrorResponse lists every rejected field of a request.
type ValidationErrorResponse struct {
	Detail []FieldError `json:"detail"`
}
