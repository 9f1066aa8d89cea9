package quota

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventintake/internal/config"
	"eventintake/internal/constants"
	"eventintake/internal/logger"
)

type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) Take(context.Context, string, time.Time) (Decision, error) {
	s.calls++
	return Decision{}, s.err
}

type recordingStore struct {
	identities []string
}

func (s *recordingStore) Take(_ context.Context, identity string, _ time.Time) (Decision, error) {
	s.identities = append(s.identities, identity)
	return Decision{Allowed: true, Count: 1, Limit: 5}, nil
}

func TestLimiterUsesClock(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(Policy{Limit: 1, Window: time.Hour}, nil)
	limiter := NewLimiter(store, Policy{Limit: 1, Window: time.Hour}, logger.NopLogger(),
		WithClock(func() time.Time { return now }),
	)

	d, err := limiter.CheckAndRecord(context.Background(), "id")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = limiter.CheckAndRecord(context.Background(), "id")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	now = now.Add(time.Hour + time.Second)
	d, err = limiter.CheckAndRecord(context.Background(), "id")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterEmptyIdentityUsesUnknownBucket(t *testing.T) {
	store := &recordingStore{}
	limiter := NewLimiter(store, dayPolicy, logger.NopLogger())

	_, err := limiter.CheckAndRecord(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{constants.UnknownIdentity}, store.identities)
}

func TestLimiterStoreErrorStrategies(t *testing.T) {
	storeErr := errors.New("connection refused")

	t.Run("allow", func(t *testing.T) {
		limiter := NewLimiter(&failingStore{err: storeErr}, dayPolicy, logger.NopLogger())
		d, err := limiter.CheckAndRecord(context.Background(), "id")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Degraded)
	})

	t.Run("deny", func(t *testing.T) {
		limiter := NewLimiter(&failingStore{err: storeErr}, dayPolicy, logger.NopLogger(),
			WithStoreErrorStrategy(constants.FallbackDeny),
		)
		d, err := limiter.CheckAndRecord(context.Background(), "id")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.True(t, d.Degraded)
		assert.Positive(t, d.RetryAfterSeconds())
	})

	t.Run("error", func(t *testing.T) {
		limiter := NewLimiter(&failingStore{err: storeErr}, dayPolicy, logger.NopLogger(),
			WithStoreErrorStrategy(constants.FallbackError),
		)
		_, err := limiter.CheckAndRecord(context.Background(), "id")
		assert.ErrorIs(t, err, storeErr)
	})
}

func TestCircuitBreakerStoreOpens(t *testing.T) {
	inner := &failingStore{err: errors.New("timeout")}
	store := NewCircuitBreakerStore(inner, config.CircuitBreakerConfig{
		Enabled:      true,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 2; i++ {
		_, err := store.Take(context.Background(), "id", time.Now())
		require.Error(t, err)
	}
	assert.Equal(t, "open", store.State())

	_, err := store.Take(context.Background(), "id", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerStoreDisabledPassesThrough(t *testing.T) {
	inner := &recordingStore{}
	store := NewCircuitBreakerStore(inner, config.CircuitBreakerConfig{})

	d, err := store.Take(context.Background(), "id", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "disabled", store.State())
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "forwarded wins", headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "10.0.0.2"}, want: "203.0.113.7"},
		{name: "edge client header", headers: map[string]string{"X-NF-Client-Connection-IP": "198.51.100.4", "X-Real-IP": "10.0.0.2"}, want: "198.51.100.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.2"}, want: "10.0.0.2"},
		{name: "blank forwarded falls through", headers: map[string]string{"X-Forwarded-For": " , 10.0.0.1", "X-Real-IP": "10.0.0.2"}, want: "10.0.0.2"},
		{name: "header beats peer", headers: map[string]string{"X-Real-IP": "10.0.0.2"}, remoteAddr: "192.0.2.1:5555", want: "10.0.0.2"},
		{name: "peer address", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "peer ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "peer without port", remoteAddr: "192.0.2.9", want: "192.0.2.9"},
		{name: "unparseable peer", remoteAddr: "pipe", want: "unknown"},
		{name: "none", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Header: http.Header{}, RemoteAddr: tt.remoteAddr}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, Identity(r))
		})
	}
}
