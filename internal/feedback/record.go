package feedback

import "errors"

// Emotion is one of the fixed classification labels.
type Emotion string

const (
	HappyEngaged       Emotion = "Happy/Engaged"
	NeutralCalm        Emotion = "Neutral/Calm"
	Confused           Emotion = "Confused"
	BoredDrowsy        Emotion = "Bored/Drowsy"
	FrustratedStressed Emotion = "Frustrated/Stressed"
)

var emotions = []Emotion{HappyEngaged, NeutralCalm, Confused, BoredDrowsy, FrustratedStressed}

// Emotions returns the closed set of labels in display order.
func Emotions() []Emotion {
	out := make([]Emotion, len(emotions))
	copy(out, emotions)
	return out
}

// EmotionNames returns the labels as plain strings, for prompts and schemas.
func EmotionNames() []string {
	out := make([]string, len(emotions))
	for i, e := range emotions {
		out[i] = string(e)
	}
	return out
}

// Valid reports whether e is a member of the closed set.
func (e Emotion) Valid() bool {
	for _, known := range emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Negative reports whether e counts toward the Confusion Index.
func (e Emotion) Negative() bool {
	switch e {
	case Confused, FrustratedStressed, BoredDrowsy:
		return true
	}
	return false
}

// Record is one classified feedback submission.
type Record struct {
	Timestamp int64   `json:"timestamp"`
	Feedback  string  `json:"feedback"`
	Emotion   Emotion `json:"emotion"`
	Reasoning string  `json:"reasoning"`
}

// Classification is what a Classifier returns for a piece of feedback.
type Classification struct {
	Emotion   Emotion `json:"emotion"`
	Reasoning string  `json:"reasoning"`
}

var (
	// ErrEmptyFeedback is returned when the text is empty after trimming.
	ErrEmptyFeedback = errors.New("no feedback text provided")

	// ErrClassifierTimeout is returned when the classifier did not answer in time.
	ErrClassifierTimeout = errors.New("classifier timed out")

	// ErrClassifierUnavailable covers transport failures, non-2xx responses,
	// rate limiting and an open circuit breaker.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrMalformedClassification is returned when the classifier response
	// cannot be parsed or lacks required fields.
	ErrMalformedClassification = errors.New("malformed classification response")

	// ErrInvalidEmotion is returned when the classifier picked a label outside
	// the closed set.
	ErrInvalidEmotion = errors.New("classification outside the emotion set")
)
