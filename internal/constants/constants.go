package constants

import "time"

const (
	ServiceName = "submission-service"
)

const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second
	ShutdownTimeout     = 5 * time.Second
)

const (
	DefaultSubmitPath   = "/submit-event"
	DefaultMaxBodyBytes = 64 << 10
)

const (
	DefaultEventsDir    = "content/events"
	DefaultBranchPrefix = "new-event-"
)

const (
	PublishModePullRequest = "pull_request"
	PublishModeDirect      = "direct"
)

const (
	DefaultSubmissionLimit  = 5
	DefaultSubmissionWindow = 24 * time.Hour
	DefaultSweepInterval    = time.Hour
	UnknownIdentity         = "unknown"
)

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

const (
	CacheKeyPrefixQuota = "submission-quota:"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
	FallbackError = "error"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)
