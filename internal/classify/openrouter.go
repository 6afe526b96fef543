package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/openrouter"
)

const DefaultOpenRouterModel = "google/gemini-2.5-flash"

// Completer is the interface for OpenAI-compatible chat completion.
type Completer interface {
	Complete(ctx context.Context, req openrouter.ChatRequest) (string, error)
}

// OpenRouter classifies feedback through any model routed by OpenRouter,
// requesting json_schema structured output.
type OpenRouter struct {
	client Completer
	model  string
}

// NewOpenRouter creates an OpenRouter-backed classifier.
func NewOpenRouter(client Completer, model string) *OpenRouter {
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return &OpenRouter{client: client, model: model}
}

// Name returns the provider name (for logging).
func (o *OpenRouter) Name() string {
	return fmt.Sprintf("OpenRouter (%s)", o.model)
}

func openRouterSchema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"emotion": map[string]any{
				"type":        "string",
				"enum":        feedback.EmotionNames(),
				"description": emotionDescription,
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": reasoningDescription,
			},
		},
		"required":             []string{"emotion", "reasoning"},
		"additionalProperties": false,
	}
	b, _ := json.Marshal(schema)
	return b
}

// Classify requests a structured completion and parses it.
func (o *OpenRouter) Classify(ctx context.Context, text string) (feedback.Classification, error) {
	temperature := 0.0
	req := openrouter.ChatRequest{
		Model: o.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: SystemPrompt(true)},
			{Role: "user", Content: UserPrompt(text)},
		},
		Temperature: &temperature,
		ResponseFormat: &openrouter.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openrouter.JSONSchema{
				Name:   "student_emotion",
				Strict: true,
				Schema: openRouterSchema(),
			},
		},
	}

	raw, err := o.client.Complete(ctx, req)
	if err != nil {
		var se *openrouter.StatusError
		switch {
		case errors.Is(err, openrouter.ErrNoChoices):
			return feedback.Classification{}, fmt.Errorf("%w: %v", feedback.ErrMalformedClassification, err)
		case errors.As(err, &se), openrouter.IsRateLimit(err):
			return feedback.Classification{}, fmt.Errorf("%w: %v", feedback.ErrClassifierUnavailable, err)
		}
		return feedback.Classification{}, transportError(ctx, "openrouter", err)
	}
	return ParseResponse(raw)
}
