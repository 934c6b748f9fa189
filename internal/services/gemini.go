package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chat-relay-backend/internal/models"
)

var errNoCandidates = errors.New("gemini returned no candidates")

// GeminiCompleter sends completions to Google Gemini.
type GeminiCompleter struct {
	client    *genai.Client
	modelName string
}

func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiCompleter, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCompleter{
		client:    client,
		modelName: modelName,
	}, nil
}

func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

func (g *GeminiCompleter) Model() string {
	return g.modelName
}

// Complete runs the conversation as a chat session: system messages become the
// system instruction, everything before the last message becomes history.
func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system, history, last, err := toGeminiContents(req.Messages)
	if err != nil {
		return "", err
	}

	// GenerativeModel carries per-call settings, so each call gets its own.
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(req.Temperature)
	model.SystemInstruction = system

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	return firstCandidateText(resp)
}

func toGeminiContents(messages []models.ChatMessage) (system *genai.Content, history []*genai.Content, last *genai.Content, err error) {
	var instructions []string
	var turns []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			instructions = append(instructions, msg.Content)
		case models.RoleUser:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		case models.RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			return nil, nil, nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return nil, nil, nil, errors.New("conversation must end with a user message")
	}

	if len(instructions) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(instructions, "\n\n"))}}
	}
	return system, turns[:len(turns)-1], turns[len(turns)-1], nil
}

// firstCandidateText concatenates the text parts of the first candidate.
func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: prompt blocked (%s)", errNoCandidates, resp.PromptFeedback.BlockReason)
		}
		return "", errNoCandidates
	}

	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("gemini candidate has no content (finish reason %s)", cand.FinishReason)
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini candidate has no text (finish reason %s)", cand.FinishReason)
	}
	return text.String(), nil
}
