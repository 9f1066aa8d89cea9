package quota

import (
	"context"
	"time"
)

// Policy is the sliding-window allowance per client identity.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed bool
	// Count is the number of recorded submissions inside the window after
	// this check.
	Count      int
	Limit      int
	RetryAfter time.Duration
	// Degraded is set when the store failed and the fallback strategy decided.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one
// for a denial.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Store checks and records submissions atomically: two concurrent calls for
// the same identity never both observe the last free slot.
type Store interface {
	Take(ctx context.Context, identity string, now time.Time) (Decision, error)
}
