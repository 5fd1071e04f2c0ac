package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/BountyIndexor/pkg/config"
)

var transientMarkers = []string{
	// timeouts
	"timeout", "deadline exceeded",
	// rate limiting
	"429", "too many requests", "rate limit",
	// temporary server errors
	"502", "503", "504", "bad gateway", "service unavailable",
	// connection problems
	"connection reset", "connection refused", "broken pipe", "eof",
	"connection pool", "no available connection",
}

// IsRetryable reports whether err is a transient transport failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Backoff computes the delay before the given attempt (1-based) with ±25% jitter.
// The first attempt has no delay.
func Backoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 || cfg == nil {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	backoff = math.Min(backoff, float64(cfg.MaxBackoff.Duration))

	jitter := backoff * 0.25
	backoff += rand.Float64()*2*jitter - jitter

	return time.Duration(math.Max(backoff, 0))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryWithBackoff executes fn with exponential backoff, at most cfg.MaxAttempts times.
// Non-retryable errors are returned immediately.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := Sleep(ctx, Backoff(attempt, cfg)); err != nil {
			return fmt.Errorf("context cancelled before attempt %d/%d: %w", attempt, cfg.MaxAttempts, err)
		}
		if attempt > 1 {
			rpcRetries.WithLabelValues(operation).Inc()
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("all %d attempts failed after %v: %w", cfg.MaxAttempts, time.Since(start), lastErr)
}
