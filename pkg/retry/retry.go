package retry

import (
	"time"
)

type fn func() error
type shouldRetry func(err error, attempt int) bool

// WrapWithRetry wraps the given function and retries it with a fixed delay
// while shouldRetry returns true, up to maxAttempts.
func WrapWithRetry(f fn, shouldRetry shouldRetry, maxAttempts int, delay time.Duration) func() error {
	return func() error {
		var err error

		for attempt := 1; ; attempt++ {
			err = f()
			if err == nil {
				return nil
			}

			if attempt >= maxAttempts || !shouldRetry(err, attempt) {
				return err
			}

			time.Sleep(delay)
		}
	}
}
