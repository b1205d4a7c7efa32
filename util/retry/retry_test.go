package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallWithBackoff(t *testing.T) {
	backoff := []time.Duration{time.Millisecond, time.Millisecond * 2, time.Millisecond}
	calls := 0
	err := CallWithBackoffCtx(context.Background(), backoff, func(attempt int) error {
		if attempt != calls {
			t.Fatalf("expected attempt %d, got %d", calls, attempt)
		}
		calls++
		return errors.New("no")
	})
	if err == nil {
		t.Fatal("err should not be nil")
	}
	if calls != len(backoff)+1 {
		t.Fatalf("expected %d calls, got %d", len(backoff)+1, calls)
	}
}

func TestCallFixedDelay(t *testing.T) {
	attempts := 0
	err := CallFixedDelay(context.Background(), 3, time.Millisecond, func(attempt int) error {
		if attempt != attempts {
			t.Fatalf("expected attempt %d, got %d", attempts, attempt)
		}
		attempts++
		return errors.New("publish failed")
	})
	if err == nil || err.Error() != "publish failed" {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}

	attempts = 0
	err = CallFixedDelay(context.Background(), 3, time.Millisecond, func(attempt int) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestCallFixedDelayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := CallFixedDelay(ctx, 5, time.Hour, func(attempt int) error {
		attempts++
		cancel()
		return errors.New("no")
	})
	if err == nil {
		t.Fatal("err should not be nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100*time.Millisecond, 500*time.Millisecond, 5)
	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		500 * time.Millisecond, 500 * time.Millisecond}
	if len(b) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, b)
	}
	for i := range b {
		if b[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, b)
		}
	}
	if ExponentialBackoff(time.Second, time.Second, 0) != nil {
		t.Fatal("expected nil")
	}
}
