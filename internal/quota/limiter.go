package quota

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"eventintake/internal/constants"
	"eventintake/internal/logger"
	"eventintake/pkg/metrics"
)

// Limiter enforces the per-identity submission allowance and applies the
// configured strategy when the backing store fails.
type Limiter struct {
	store        Store
	policy       Policy
	onStoreError string
	clock        func() time.Time
	logger       logger.Logger
}

type LimiterOption func(*Limiter)

func WithClock(clock func() time.Time) LimiterOption {
	return func(l *Limiter) { l.clock = clock }
}

// WithStoreErrorStrategy sets the fallback: constants.FallbackAllow,
// constants.FallbackDeny or constants.FallbackError.
func WithStoreErrorStrategy(strategy string) LimiterOption {
	return func(l *Limiter) { l.onStoreError = strategy }
}

func NewLimiter(store Store, policy Policy, log logger.Logger, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:        store,
		policy:       policy,
		onStoreError: constants.FallbackAllow,
		clock:        time.Now,
		logger:       log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord decides whether identity may submit now and, if so, records
// the submission. A denial records nothing.
func (l *Limiter) CheckAndRecord(ctx context.Context, identity string) (Decision, error) {
	if identity == "" {
		identity = constants.UnknownIdentity
	}

	decision, err := l.store.Take(ctx, identity, l.clock())
	if err != nil {
		return l.handleStoreError(ctx, err)
	}

	if decision.Allowed {
		metrics.IncQuotaDecision("allowed")
	} else {
		metrics.IncQuotaDecision("denied")
		l.logger.InfowCtx(ctx, "Submission quota exhausted",
			"count", decision.Count,
			"limit", decision.Limit,
			"retry_after", decision.RetryAfter,
		)
	}
	return decision, nil
}

func (l *Limiter) handleStoreError(ctx context.Context, err error) (Decision, error) {
	metrics.IncQuotaStoreError(l.onStoreError)

	switch l.onStoreError {
	case constants.FallbackAllow:
		l.logger.WarnwCtx(ctx, "Quota store error, allowing submission (fallback: allow)", "error", err)
		return Decision{Allowed: true, Limit: l.policy.Limit, Degraded: true}, nil
	case constants.FallbackDeny:
		l.logger.WarnwCtx(ctx, "Quota store error, denying submission (fallback: deny)", "error", err)
		return Decision{Allowed: false, Limit: l.policy.Limit, RetryAfter: time.Minute, Degraded: true}, nil
	default:
		return Decision{}, fmt.Errorf("quota store unavailable: %w", err)
	}
}

// Identity derives the client key from proxy headers: the first
// X-Forwarded-For hop, then X-NF-Client-Connection-IP, then X-Real-IP. Direct
// callers fall back to the connection's peer address. Requests with none of
// these share the "unknown" bucket.
func Identity(r *http.Request) string {
	h := r.Header
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, name := range []string{"X-NF-Client-Connection-IP", "X-Real-IP"} {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	if peer := peerAddress(r.RemoteAddr); peer != "" {
		return peer
	}
	return constants.UnknownIdentity
}

func peerAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = strings.TrimSpace(remoteAddr)
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}
