package quota

import (
	"context"
	"sync"
	"time"

	"eventintake/internal/logger"
	"eventintake/pkg/metrics"
)

type record struct {
	windowStart time.Time
	timestamps  []time.Time
}

// prune drops timestamps that have aged out of the window.
func (r *record) prune(now time.Time, window time.Duration) {
	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept
	if len(kept) > 0 {
		r.windowStart = kept[0]
	}
}

// MemoryStore keeps per-identity history in process memory. State is lost on
// restart and is not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	policy  Policy
	logger  logger.Logger
}

func NewMemoryStore(policy Policy, log logger.Logger) *MemoryStore {
	if log == nil {
		log = logger.NopLogger()
	}
	return &MemoryStore{
		records: make(map[string]*record),
		policy:  policy,
		logger:  log,
	}
}

func (s *MemoryStore) Take(_ context.Context, identity string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		rec = &record{windowStart: now}
		s.records[identity] = rec
	}
	rec.prune(now, s.policy.Window)

	if len(rec.timestamps) >= s.policy.Limit {
		return Decision{
			Allowed:    false,
			Count:      len(rec.timestamps),
			Limit:      s.policy.Limit,
			RetryAfter: rec.timestamps[0].Add(s.policy.Window).Sub(now),
		}, nil
	}

	if len(rec.timestamps) == 0 {
		rec.windowStart = now
	}
	rec.timestamps = append(rec.timestamps, now)
	return Decision{Allowed: true, Count: len(rec.timestamps), Limit: s.policy.Limit}, nil
}

// Sweep removes identities with no timestamps left inside the window and
// returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for identity, rec := range s.records {
		rec.prune(now, s.policy.Window)
		if len(rec.timestamps) == 0 {
			delete(s.records, identity)
			removed++
		}
	}
	metrics.SetQuotaTrackedIdentities(len(s.records))
	return removed
}

// Len reports how many identities are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// RunSweeper sweeps on every tick until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if removed := s.Sweep(now); removed > 0 {
				s.logger.Debugw("Swept expired quota records", "removed", removed)
			}
		}
	}
}
