package contentrepo

import (
	"context"
	"fmt"

	"eventintake/internal/config"
	"eventintake/pkg/circuitbreaker"
)

// CircuitBreakerRepository stops calling the hosting API after repeated
// failures so requests fail fast instead of waiting on timeouts.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(circuitbreaker.FromConfig("content-repository", cfg)),
	}
}

func (r *CircuitBreakerRepository) DefaultBranch() string {
	return r.repo.DefaultBranch()
}

func (r *CircuitBreakerRepository) Exists(ctx context.Context, path, ref string) (bool, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.repo.Exists(ctx, path, ref)
	})
	if err != nil {
		return false, err
	}
	exists, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("repository returned invalid result type")
	}
	return exists, nil
}

func (r *CircuitBreakerRepository) PutFile(ctx context.Context, change FileChange) (string, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.repo.PutFile(ctx, change)
	})
	if err != nil {
		return "", err
	}
	sha, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("repository returned invalid result type")
	}
	return sha, nil
}

func (r *CircuitBreakerRepository) CreateBranch(ctx context.Context, name, base string) error {
	_, err := r.execute(ctx, func() (interface{}, error) {
		return nil, r.repo.CreateBranch(ctx, name, base)
	})
	return err
}

func (r *CircuitBreakerRepository) OpenPullRequest(ctx context.Context, pr PullRequest) (string, error) {
	result, err := r.execute(ctx, func() (interface{}, error) {
		return r.repo.OpenPullRequest(ctx, pr)
	})
	if err != nil {
		return "", err
	}
	prURL, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("repository returned invalid result type")
	}
	return prURL, nil
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerRepository) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if r.cb == nil {
		return fn()
	}
	result, err := r.cb.ExecuteWithContext(ctx, fn)
	if err != nil && r.cb.IsOpen() {
		return nil, fmt.Errorf("circuit breaker is open for content-repository: %w", err)
	}
	return result, err
}
