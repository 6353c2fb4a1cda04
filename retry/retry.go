package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config controls retry behavior. MaxAttempts counts the first call.
type Config struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Retryable overrides IsRetryable when set.
	Retryable func(error) bool
	// Op names the operation in log lines.
	Op string
}

var DefaultConfig = Config{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// Retry warnings are rate limited so that a provider outage does not flood the log.
var retryLog = rate.Sometimes{First: 5, Interval: 30 * time.Second}

// StatusError carries an unexpected HTTP status from a remote call.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, rc Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := rc.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt == attempts {
			return zero, err
		}

		wait := Backoff(rc, attempt)
		retryLog.Do(func() {
			logrus.WithFields(logrus.Fields{
				"op":      rc.Op,
				"attempt": attempt,
				"max":     attempts,
				"wait":    wait,
			}).WithError(err).Warn("Retrying after transient failure")
		})

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}
	return zero, lastErr
}

// Backoff returns the wait before the attempt following the given one:
// exponential growth capped at MaxWait plus up to half of that in jitter.
func Backoff(rc Config, attempt int) time.Duration {
	multiplier := rc.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}
	wait := time.Duration(float64(rc.InitialWait) * math.Pow(multiplier, float64(attempt-1)))
	if rc.MaxWait > 0 && wait > rc.MaxWait {
		wait = rc.MaxWait
	}
	if half := int64(wait / 2); half > 0 {
		wait += time.Duration(rand.Int63n(half))
	}
	return wait
}

// IsRetryable returns true for transient errors worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
