package uploader

import (
	"context"
	"time"

	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
)

const (
	maxAttempts  = 5
	initialDelay = 200 * time.Millisecond
	backoffFactor = 1.05
)

// withRetry runs fn up to maxAttempts times with a 200ms initial delay and
// a 1.05 multiplicative backoff factor between attempts (spec.md §4.6
// Retry, §9 "preserve these numbers for behavioral parity"). A
// KindUploadFatal or KindCannotShrink error stops retrying immediately;
// every other error is logged as a warning and retried while attempts
// remain. The signal is checked before each attempt and while sleeping
// between attempts (spec.md §5 "Upload retry loops check the signal
// between attempts").
func (u *Uploader) withRetry(ctx context.Context, fn func() error) error {
	delay := initialDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if kind, ok := ierr.Of(err); ok && (kind == ierr.KindUploadFatal || kind == ierr.KindCannotShrink) {
			return err
		}

		if attempt == maxAttempts {
			break
		}

		u.logger.Warn("upload batch attempt failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * backoffFactor)
	}

	return lastErr
}
