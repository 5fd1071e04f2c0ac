package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/goran-ethernal/BountyIndexor/internal/common"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// mockNetError implements net.Error for testing
type mockNetError struct {
	msg     string
	timeout bool
}

func (e *mockNetError) Error() string   { return e.msg }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "net error", err: &mockNetError{msg: "dial", timeout: true}, want: true},
		{name: "op error", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, want: true},
		{name: "wrapped reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "timeout message", err: errors.New("request timeout"), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), want: true},
		{name: "bad gateway", err: errors.New("502 Bad Gateway"), want: true},
		{name: "cancelled", err: context.Canceled},
		{name: "invalid params", err: errors.New("invalid params")},
		{name: "reverted", err: errors.New("execution reverted")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func testRetryConfig() *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    common.NewDuration(100 * time.Millisecond),
		MaxBackoff:        common.NewDuration(300 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

func TestBackoff(t *testing.T) {
	cfg := testRetryConfig()

	require.Zero(t, Backoff(1, cfg))
	require.Zero(t, Backoff(5, nil))

	within := func(d, base time.Duration) {
		t.Helper()
		require.GreaterOrEqual(t, d, time.Duration(float64(base)*0.75))
		require.LessOrEqual(t, d, time.Duration(float64(base)*1.25))
	}

	for range 50 {
		within(Backoff(2, cfg), 100*time.Millisecond)
		within(Backoff(3, cfg), 200*time.Millisecond)
		within(Backoff(4, cfg), 300*time.Millisecond) // capped
		within(Backoff(20, cfg), 300*time.Millisecond)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestRetryWithBackoff(t *testing.T) {
	fast := &config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(2 * time.Millisecond),
		BackoffMultiplier: 2,
	}
	transient := errors.New("503 service unavailable")

	t.Run("success after retries", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fast, "op", func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("non retryable returns at once", func(t *testing.T) {
		calls := 0
		permanent := errors.New("invalid params")
		err := retryWithBackoff(context.Background(), fast, "op", func() error {
			calls++
			return permanent
		})
		require.ErrorIs(t, err, permanent)
		require.Equal(t, 1, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fast, "op", func() error {
			calls++
			return transient
		})
		require.ErrorIs(t, err, transient)
		require.ErrorContains(t, err, "all 3 attempts failed")
		require.Equal(t, 3, calls)
	})

	t.Run("nil config runs once", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), nil, "op", func() error {
			calls++
			return transient
		})
		require.ErrorIs(t, err, transient)
		require.Equal(t, 1, calls)
	})

	t.Run("context cancelled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		slow := testRetryConfig()
		slow.InitialBackoff = common.NewDuration(time.Second)
		slow.MaxBackoff = common.NewDuration(time.Second)

		err := retryWithBackoff(ctx, slow, "op", func() error { return transient })
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
