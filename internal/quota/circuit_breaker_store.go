package quota

import (
	"context"
	"fmt"
	"time"

	"eventintake/internal/config"
	"eventintake/pkg/circuitbreaker"
)

type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{store: store}
	}
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(circuitbreaker.FromConfig("redis-quota", cfg)),
	}
}

func (s *CircuitBreakerStore) Take(ctx context.Context, identity string, now time.Time) (Decision, error) {
	if s.cb == nil {
		return s.store.Take(ctx, identity, now)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.Take(ctx, identity, now)
	})
	if err != nil {
		if s.cb.IsOpen() {
			return Decision{}, fmt.Errorf("circuit breaker is open for redis-quota: %w", err)
		}
		return Decision{}, err
	}

	decision, ok := result.(Decision)
	if !ok {
		return Decision{}, fmt.Errorf("quota store returned invalid result type")
	}
	return decision, nil
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
