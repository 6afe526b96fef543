package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/edumood/internal/feedback"
)

// transportError classifies a failed call as a timeout or an outage. A
// caller cancellation is returned wrapping context.Canceled and is neither.
func transportError(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", feedback.ErrClassifierTimeout, provider, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", provider, context.Canceled)
	}
	return fmt.Errorf("%w: %s: %v", feedback.ErrClassifierUnavailable, provider, err)
}
