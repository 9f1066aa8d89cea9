package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"eventintake/internal/config"
	"eventintake/pkg/metrics"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a per-client token bucket that absorbs request bursts before
// they reach the submission quota.
type Throttle struct {
	cfg      config.ThrottleConfig
	keyFunc  func(*gin.Context) string
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func DefaultConfig() config.ThrottleConfig {
	return config.ThrottleConfig{
		Enabled:         true,
		RPS:             1.0,
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// NewThrottle keys clients with keyFunc, falling back to gin's ClientIP.
func NewThrottle(cfg config.ThrottleConfig, keyFunc func(*gin.Context) string) *Throttle {
	defaults := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = defaults.RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaults.MaxAge
	}
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &Throttle{
		cfg:      cfg,
		keyFunc:  keyFunc,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(t.cfg.RPS), t.cfg.Burst)}
		t.visitors[key] = v
	}
	now := t.now()
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than MaxAge and returns how many
// were removed.
func (t *Throttle) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, v := range t.visitors {
		if now.Sub(v.lastSeen) > t.cfg.MaxAge {
			delete(t.visitors, key)
			removed++
		}
	}
	return removed
}

// Run cleans up idle clients every CleanupInterval until ctx is done.
func (t *Throttle) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := t.keyFunc(c)
		if key == "" {
			key = c.RemoteIP()
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(t.cfg.Burst))
		if !t.allow(key) {
			metrics.ThrottleRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests",
				"message":    "Too many requests",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.ThrottleRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
