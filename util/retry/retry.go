package retry

import (
	"context"
	"time"
)

// Call f at most retryCount+1 times, sleeping delay between failed attempts.
//
// attempt starts at 0. The last error is returned once the attempts are exhausted
// or ctx is cancelled while waiting.
func CallFixedDelay(ctx context.Context, retryCount int, delay time.Duration, f func(attempt int) error) error {
	var last error
	for attempt := 0; attempt <= retryCount; attempt++ {
		if attempt > 0 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return last
			}
		}
		if last = f(attempt); last == nil {
			return nil
		}
	}
	return last
}

// Call f once, then once more after each backoff duration, until it succeeds.
func CallWithBackoffCtx(ctx context.Context, backoff []time.Duration, f func(attempt int) error) error {
	last := f(0)
	if last == nil {
		return nil
	}
	for i, d := range backoff {
		if err := sleep(ctx, d); err != nil {
			return last
		}
		if last = f(i + 1); last == nil {
			return nil
		}
	}
	return last
}

// Build exponential backoff durations, doubling from initial and capped at max.
func ExponentialBackoff(initial time.Duration, max time.Duration, attempts int) []time.Duration {
	if attempts < 1 {
		return nil
	}
	if initial <= 0 {
		initial = time.Millisecond
	}
	b := make([]time.Duration, 0, attempts)
	d := initial
	for i := 0; i < attempts; i++ {
		if max > 0 && d > max {
			d = max
		}
		b = append(b, d)
		d *= 2
	}
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
