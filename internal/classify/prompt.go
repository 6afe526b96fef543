package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/edumood/internal/feedback"
)

const systemInstruction = "You are an expert NLP classifier for educational feedback. " +
	"Your task is to analyze the following student comment about a class or lecture " +
	"and strictly choose the single best-fitting emotion from the allowed list."

// jsonInstruction is appended for providers that do not enforce the schema
// server-side as strictly as Gemini does.
const jsonInstruction = "\n\nRespond with ONLY a JSON object of the form " +
	`{"emotion": "<one of the allowed labels, verbatim>", "reasoning": "<one sentence>"}. ` +
	"Do not include any other text, prose, or markdown."

const (
	emotionDescription   = "The single best emotion that describes the student's feedback."
	reasoningDescription = "A short, one-sentence justification for the chosen emotion."
)

// UserPrompt builds the per-submission prompt.
func UserPrompt(text string) string {
	quoted := make([]string, 0, len(feedback.Emotions()))
	for _, name := range feedback.EmotionNames() {
		quoted = append(quoted, fmt.Sprintf("%q", name))
	}
	return fmt.Sprintf(
		"Analyze the student feedback: %q. Based on the tone and content, select the single best emotion from the following list: [%s].",
		text, strings.Join(quoted, ", "),
	)
}

// SystemPrompt returns the system instruction, optionally with the explicit
// JSON output contract.
func SystemPrompt(withJSONContract bool) string {
	if withJSONContract {
		return systemInstruction + jsonInstruction
	}
	return systemInstruction
}

// rawClassification distinguishes missing fields from empty ones.
type rawClassification struct {
	Emotion   *string `json:"emotion"`
	Reasoning *string `json:"reasoning"`
}

// ParseResponse decodes a model answer into a Classification. Markdown code
// fences around the JSON are tolerated. A missing emotion is malformed; an
// emotion outside the closed set is ErrInvalidEmotion.
func ParseResponse(resp string) (feedback.Classification, error) {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var raw rawClassification
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return feedback.Classification{}, fmt.Errorf("%w: %v (response: %s)", feedback.ErrMalformedClassification, err, truncate(resp, 200))
	}
	if raw.Emotion == nil {
		return feedback.Classification{}, fmt.Errorf("%w: missing emotion", feedback.ErrMalformedClassification)
	}

	c := feedback.Classification{Emotion: feedback.Emotion(strings.TrimSpace(*raw.Emotion))}
	if raw.Reasoning != nil {
		c.Reasoning = strings.TrimSpace(*raw.Reasoning)
	}
	if !c.Emotion.Valid() {
		return feedback.Classification{}, fmt.Errorf("%w: %q", feedback.ErrInvalidEmotion, c.Emotion)
	}
	return c, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
