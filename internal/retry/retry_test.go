package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	return cfg
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("actor not found")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig()
	cfg.OnRetry = func(_ int, d time.Duration, _ error) { delays = append(delays, d) }

	transient := errors.New("connection reset by peer")
	err := Do(context.Background(), cfg, func() error { return transient })

	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Hour

	err := Do(ctx, cfg, func() error {
		cancel()
		return errors.New("timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsTransient(errors.New("Rate limit exceeded")))
	assert.False(t, IsTransient(errors.New("invalid input")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
}
