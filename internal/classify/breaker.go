package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kalambet/edumood/internal/feedback"
)

// BreakerConfig holds configuration for the classifier circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used by the server.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker wraps a classifier with a circuit breaker. Only outages and
// timeouts count as failures; a bad answer from a healthy provider does not
// trip it.
type Breaker struct {
	next feedback.Classifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next feedback.Classifier, cfg BreakerConfig) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("classifier circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isOutage(err)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func isOutage(err error) bool {
	return errors.Is(err, feedback.ErrClassifierUnavailable) ||
		errors.Is(err, feedback.ErrClassifierTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Classify runs the wrapped classifier unless the breaker is open.
func (b *Breaker) Classify(ctx context.Context, text string) (feedback.Classification, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Classify(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return feedback.Classification{}, fmt.Errorf("%w: %v", feedback.ErrClassifierUnavailable, err)
		}
		return feedback.Classification{}, err
	}
	return res.(feedback.Classification), nil
}
