package scrape

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterSampleWithinBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 30*time.Millisecond
	r := NewRateLimiter(min, max)
	for i := 0; i < 1000; i++ {
		d := r.sample()
		if d < min || d > max {
			t.Fatalf("sample %s outside [%s, %s]", d, min, max)
		}
	}
}

func TestRateLimiterSwapsMisorderedBounds(t *testing.T) {
	r := NewRateLimiter(30*time.Millisecond, 10*time.Millisecond)
	if r.min != 10*time.Millisecond || r.max != 30*time.Millisecond {
		t.Errorf("bounds not swapped: min=%s max=%s", r.min, r.max)
	}
}

func TestRateLimiterDegenerateWindow(t *testing.T) {
	r := NewRateLimiter(5*time.Millisecond, 5*time.Millisecond)
	for i := 0; i < 100; i++ {
		if d := r.sample(); d != 5*time.Millisecond {
			t.Fatalf("sample() = %s, want 5ms", d)
		}
	}
}

func TestRateLimiterWaitHonorsCancellation(t *testing.T) {
	r := NewRateLimiter(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestRateLimiterZeroWindowReturnsImmediately(t *testing.T) {
	r := NewRateLimiter(0, 0)
	start := time.Now()
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("zero-window Wait took %s", elapsed)
	}
}
