package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("rate limited")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithLog_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	var logged []int

	err := DoWithLog(context.Background(), fastConfig(3), "search", func() error {
		calls++
		return boom
	}, func(attempt int, err error, _ time.Duration) {
		logged = append(logged, attempt)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "search: max retry attempts (3) exceeded")
	assert.Equal(t, 3, calls)
	// No wait after the final attempt.
	assert.Equal(t, []int{1, 2}, logged)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("unavailable")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithJitter_Bounds(t *testing.T) {
	assert.Equal(t, time.Second, withJitter(time.Second, 0))
	for i := 0; i < 100; i++ {
		d := withJitter(time.Second, time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestSearchConfig(t *testing.T) {
	cfg := SearchConfig(3)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, time.Second, cfg.Jitter)
	assert.Zero(t, cfg.MaxTotalTimeout)
}
