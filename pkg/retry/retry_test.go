package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventintake/internal/config"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("down")
	}, func(attempt int, _ error, next time.Duration) {
		retried = append(retried, attempt)
		assert.Positive(t, next)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryFatalErrorStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("bad config")
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(boom)
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(0), func() error {
		calls++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyFromConfig(t *testing.T) {
	policy := PolicyFromConfig(config.RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxElapsedTime:  time.Minute,
	})
	assert.Zero(t, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.InitialInterval)
	assert.Equal(t, 30*time.Second, policy.MaxInterval)
	assert.Equal(t, 2.0, policy.Multiplier)
	assert.Equal(t, time.Minute, policy.MaxElapsedTime)
}
