package submission

import (
	"context"
	"errors"
	"sync"
	"time"

	"eventintake/internal/contentrepo"
	"eventintake/internal/ledger"
	"eventintake/internal/logger"
	"eventintake/internal/quota"
	"eventintake/pkg/models"
)

type fakeRepository struct {
	mu       sync.Mutex
	existing map[string]bool
	probes   []string
	branches []string
	puts     []contentrepo.FileChange
	pulls    []contentrepo.PullRequest

	probeErr error
	putErr   error
}

func newFakeRepository(existing ...string) *fakeRepository {
	r := &fakeRepository{existing: map[string]bool{}}
	for _, p := range existing {
		r.existing[p] = true
	}
	return r
}

func (r *fakeRepository) DefaultBranch() string { return "main" }

func (r *fakeRepository) Exists(_ context.Context, path, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes = append(r.probes, ref+":"+path)
	if r.probeErr != nil {
		return false, r.probeErr
	}
	return r.existing[path], nil
}

func (r *fakeRepository) PutFile(_ context.Context, change contentrepo.FileChange) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return "", r.putErr
	}
	r.puts = append(r.puts, change)
	r.existing[change.Path] = true
	return "commit-sha", nil
}

func (r *fakeRepository) CreateBranch(_ context.Context, name, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches = append(r.branches, name)
	return nil
}

func (r *fakeRepository) OpenPullRequest(_ context.Context, pr contentrepo.PullRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls = append(r.pulls, pr)
	return "https://github.com/acme/site/pull/7", nil
}

type fakeLedger struct {
	entries []ledger.Entry
	err     error
}

func (l *fakeLedger) Record(_ context.Context, entry ledger.Entry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

type fakeNotifier struct {
	events []models.SubmissionEvent
	err    error
}

func (n *fakeNotifier) NotifyAccepted(_ context.Context, event models.SubmissionEvent) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

type staticLimiter struct {
	decision quota.Decision
	err      error
	calls    int
}

func (l *staticLimiter) CheckAndRecord(context.Context, string) (quota.Decision, error) {
	l.calls++
	return l.decision, l.err
}

var errUpstream = errors.New("upstream exploded")

func newTestService(repo *fakeRepository, opts ...ServiceOption) *Service {
	store := quota.NewMemoryStore(quota.Policy{Limit: 5, Window: 24 * time.Hour}, nil)
	limiter := quota.NewLimiter(store, quota.Policy{Limit: 5, Window: 24 * time.Hour}, logger.NopLogger(),
		quota.WithClock(fixedClock),
	)
	opts = append([]ServiceOption{WithClock(fixedClock)}, opts...)
	return NewService(limiter, repo, NewSynthesizer("content/events"), logger.NopLogger(), opts...)
}
