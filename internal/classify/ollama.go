package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/ollama"
)

// OllamaChatter is the interface for chat completion via Ollama.
type OllamaChatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Ollama classifies feedback with a local model through Ollama's structured
// output support.
type Ollama struct {
	client OllamaChatter
	model  string
}

// NewOllama creates an Ollama-backed classifier.
func NewOllama(client OllamaChatter, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

// Name returns the provider name (for logging).
func (o *Ollama) Name() string {
	return fmt.Sprintf("Ollama (%s)", o.model)
}

func ollamaSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"emotion":   {Type: "string", Description: emotionDescription, Enum: feedback.EmotionNames()},
			"reasoning": {Type: "string", Description: reasoningDescription},
		},
		Required: []string{"emotion", "reasoning"},
	}
}

// Classify sends the prompt to the local model and parses its JSON answer.
func (o *Ollama) Classify(ctx context.Context, text string) (feedback.Classification, error) {
	messages := []ollama.Message{
		{Role: "system", Content: SystemPrompt(true)},
		{Role: "user", Content: UserPrompt(text)},
	}

	raw, err := o.client.Chat(ctx, o.model, messages, ollamaSchema())
	if err != nil {
		var se *ollama.StatusError
		if errors.As(err, &se) {
			return feedback.Classification{}, fmt.Errorf("%w: %v", feedback.ErrClassifierUnavailable, err)
		}
		return feedback.Classification{}, transportError(ctx, "ollama", err)
	}
	return ParseResponse(raw)
}
