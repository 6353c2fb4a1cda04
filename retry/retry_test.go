package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

var fast = Config{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &StatusError{StatusCode: 429}, true},
		{"http 503", &StatusError{StatusCode: 503}, true},
		{"http 404", &StatusError{StatusCode: 404}, false},
		{"wrapped 502", fmt.Errorf("fetch: %w", &StatusError{StatusCode: 502}), true},
		{"regular error", errors.New("something"), false},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want %q after 1", got, calls, "ok")
	}
}

func TestDoRetryThenSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{StatusCode: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{StatusCode: 502}
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 502 {
		t.Fatalf("expected last status error, got %v", err)
	}
	if calls != fast.MaxAttempts {
		t.Errorf("expected %d calls, got %d", fast.MaxAttempts, calls)
	}
}

func TestDoNonRetryable(t *testing.T) {
	calls := 0
	sentinel := errors.New("transcripts disabled")
	_, err := Do(context.Background(), fast, func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoCustomRetryable(t *testing.T) {
	calls := 0
	rc := fast
	rc.Retryable = func(error) bool { return true }
	_, _ = Do(context.Background(), rc, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("flaky")
	})
	if calls != rc.MaxAttempts {
		t.Errorf("expected %d calls, got %d", rc.MaxAttempts, calls)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := Config{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, rc, func(context.Context) (int, error) {
			calls++
			return 0, &StatusError{StatusCode: 503}
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBackoffBounds(t *testing.T) {
	rc := Config{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}
	for attempt := 1; attempt <= 5; attempt++ {
		wait := Backoff(rc, attempt)
		if wait < 100*time.Millisecond || wait >= 450*time.Millisecond {
			t.Errorf("attempt %d: backoff %v out of bounds", attempt, wait)
		}
	}
	if wait := Backoff(Config{}, 1); wait != 0 {
		t.Errorf("zero config should not wait, got %v", wait)
	}
}
