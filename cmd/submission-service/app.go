package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"eventintake/internal/config"
	"eventintake/internal/constants"
	"eventintake/internal/contentrepo"
	"eventintake/internal/ledger"
	"eventintake/internal/logger"
	"eventintake/internal/quota"
	"eventintake/internal/submission"
	"eventintake/pkg/bootstrap"
	"eventintake/pkg/health"
	"eventintake/pkg/metrics"
	"eventintake/pkg/middleware"
	"eventintake/pkg/ratelimit"
	"eventintake/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redisClient    *redis.Client
	db             *sql.DB
	memoryStore    *quota.MemoryStore
	throttle       *ratelimit.Throttle
	health         *health.CheckerRegistry
	service        *submission.Service
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	limiter, err := a.initQuota(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	repo, err := a.initRepository()
	if err != nil {
		return fmt.Errorf("failed to initialize content repository: %w", err)
	}

	opts := []submission.ServiceOption{
		submission.WithPublishMode(a.Config.Repository.Mode, a.Config.Repository.BranchPrefix),
	}

	recorder, err := a.initLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	if recorder != nil {
		opts = append(opts, submission.WithLedger(recorder))
	}

	if err := a.InitBroker(); err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to create notification producer, notifications disabled", "error", err)
	} else if a.Producer != nil {
		opts = append(opts, submission.WithNotifier(submission.NewBrokerNotifier(a.Producer, a.Config.Broker.Kafka.Topic)))
		a.Logger.InfowCtx(ctx, "Submission notifications enabled", "topic", a.Config.Broker.Kafka.Topic)
	}

	eventsDir := a.Config.Repository.EventsDir
	if eventsDir == "" {
		eventsDir = constants.DefaultEventsDir
	}
	a.service = submission.NewService(limiter, repo, submission.NewSynthesizer(eventsDir), a.Logger, opts...)

	a.initRouter()
	a.initServer()
	return nil
}

func (a *App) initQuota(ctx context.Context) (*quota.Limiter, error) {
	policy := quota.Policy{
		Limit:  a.Config.RateLimit.Limit,
		Window: a.Config.RateLimit.Window,
	}
	if policy.Limit <= 0 {
		policy.Limit = constants.DefaultSubmissionLimit
	}
	if policy.Window <= 0 {
		policy.Window = constants.DefaultSubmissionWindow
	}

	var store quota.Store
	switch a.Config.RateLimit.Backend {
	case constants.RateLimitBackendRedis:
		client, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return nil, err
		}
		a.redisClient = client
		a.health.Register(health.NewRedisChecker(client))

		prefix := a.Config.RateLimit.KeyPrefix
		if prefix == "" {
			prefix = constants.CacheKeyPrefixQuota
		}
		breakerStore := quota.NewCircuitBreakerStore(quota.NewRedisStore(client, policy, prefix), a.Config.CircuitBreaker)
		a.health.Register(health.NewCircuitBreakerChecker("redis-quota", breakerStore))
		store = breakerStore

	default:
		a.memoryStore = quota.NewMemoryStore(policy, a.Logger)
		store = a.memoryStore
	}

	a.Logger.InfowCtx(ctx, "Submission quota configured",
		"backend", a.Config.RateLimit.Backend,
		"limit", policy.Limit,
		"window", policy.Window,
		"on_store_error", a.Config.RateLimit.OnStoreError,
	)

	return quota.NewLimiter(store, policy, a.Logger,
		quota.WithStoreErrorStrategy(a.Config.RateLimit.OnStoreError),
	), nil
}

func (a *App) initRepository() (contentrepo.Repository, error) {
	timeout := a.Config.Repository.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	gh, err := contentrepo.NewGitHubRepository(a.Config.Repository, tracing.HTTPClient(timeout))
	if err != nil {
		return nil, err
	}

	repo := contentrepo.NewCircuitBreakerRepository(gh, a.Config.CircuitBreaker)
	a.health.Register(health.NewCircuitBreakerChecker("content-repository", repo))
	return repo, nil
}

func (a *App) initLedger(ctx context.Context) (ledger.Recorder, error) {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		a.Logger.InfowCtx(ctx, "Postgres not configured, submission ledger disabled")
		return nil, nil
	}
	a.db = db
	a.health.Register(health.NewPostgreSQLChecker(db))

	if a.Config.Database.RunMigrations {
		if err := ledger.Migrate(db); err != nil {
			return nil, err
		}
		a.Logger.InfowCtx(ctx, "Ledger migrations applied")
	}
	return ledger.NewPostgresLedger(db), nil
}

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.CORSMiddleware(a.Config.Server.AllowOrigin))

	metrics.Register()

	router.GET("/health", func(c *gin.Context) {
		h := a.health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	submit := router.Group("")
	if a.Config.Server.Throttle.Enabled {
		a.throttle = ratelimit.NewThrottle(a.Config.Server.Throttle, func(c *gin.Context) string {
			return quota.Identity(c.Request)
		})
		submit.Use(a.throttle.Middleware())
		a.Logger.Infow("Request throttle enabled",
			"rps", a.Config.Server.Throttle.RPS,
			"burst", a.Config.Server.Throttle.Burst,
		)
	}

	submitPath := a.Config.Server.SubmitPath
	if submitPath == "" {
		submitPath = constants.DefaultSubmitPath
	}
	submission.NewHandler(a.service, a.Logger, a.Config.Server.MaxBodyBytes).RegisterRoutes(submit, submitPath)

	a.router = router
}

func (a *App) initServer() {
	readTimeout := a.Config.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = constants.DefaultReadTimeout
	}
	writeTimeout := a.Config.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = constants.DefaultWriteTimeout
	}
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.memoryStore != nil {
		interval := a.Config.RateLimit.SweepInterval
		if interval <= 0 {
			interval = constants.DefaultSweepInterval
		}
		g.Go(func() error {
			return a.memoryStore.RunSweeper(gCtx, interval)
		})
	}

	if a.throttle != nil {
		g.Go(func() error {
			return a.throttle.Run(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	return a.Shutdown(ctx, func(context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return append(errs, a.dbConnector.ShutdownDatabases(a.redisClient, a.db)...)
	})
}
