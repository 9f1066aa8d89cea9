package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventintake/internal/config"
)

func TestWrapperOpensAfterFailures(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-open"))
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())

	_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
		t.Fatal("must not run while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapperIsSuccessfulExcludesErrors(t *testing.T) {
	notFound := errors.New("not found")
	cfg := DefaultConfig("test-successful")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, notFound) }
	w := NewWrapper(cfg)

	for i := 0; i < 5; i++ {
		_, _ = w.ExecuteWithContext(context.Background(), func() (interface{}, error) {
			return nil, notFound
		})
	}

	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestWrapperCancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	cbConfig := FromConfig("github", config.CircuitBreakerConfig{
		MaxRequests:  7,
		Timeout:      5 * time.Second,
		FailureRatio: 0.9,
		MinRequests:  10,
	})

	assert.Equal(t, "github", cbConfig.Name)
	assert.Equal(t, uint32(7), cbConfig.MaxRequests)
	assert.Equal(t, 5*time.Second, cbConfig.Timeout)
	assert.Equal(t, 60*time.Second, cbConfig.Interval)
	assert.False(t, cbConfig.ReadyToTrip(gobreaker.Counts{Requests: 9, TotalFailures: 9}))
	assert.True(t, cbConfig.ReadyToTrip(gobreaker.Counts{Requests: 10, TotalFailures: 9}))
}
