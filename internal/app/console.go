package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ivankomartin/deposit-console/internal/config"
	"github.com/ivankomartin/deposit-console/internal/event"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/lookup"
	"github.com/ivankomartin/deposit-console/internal/querycache"
	"github.com/ivankomartin/deposit-console/internal/remote"
	"github.com/ivankomartin/deposit-console/internal/service"
	"github.com/ivankomartin/deposit-console/pkg/database"
	"github.com/ivankomartin/deposit-console/pkg/health"
	"github.com/ivankomartin/deposit-console/pkg/httpclient"
	pkgkafka "github.com/ivankomartin/deposit-console/pkg/kafka"
	"github.com/ivankomartin/deposit-console/pkg/tracing"
)

// ServiceName identifies the console in traces, metrics, and events.
const ServiceName = "deposit-console"

// Version is reported to the tracing backend.
var Version = "0.1.0"

// Console is the dependency graph shared by the HTTP server and the CLI.
type Console struct {
	cfg    *config.Config
	logger *slog.Logger

	Client  *remote.Client
	Cache   *querycache.Cache
	Finder  *lookup.Finder
	Catalog *service.Catalog
	Health  *health.Handler

	rdb            *redis.Client
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error
}

// NewConsole connects every dependency described by cfg.
func NewConsole(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Console, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTELEndpoint,
		Insecure:       true,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	c := &Console{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	// HTTP client with retries, rate limiting, and a circuit breaker in front
	// of the product API.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.APITimeout(),
		MaxRetries:      cfg.APIMaxRetries,
		RetryWaitMin:    250 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 32,
		RateLimit:       cfg.APIRateLimitRPS,
		RateBurst:       cfg.APIRateLimitBurst,
	})
	breakerCfg := httpclient.DefaultBreakerConfig(remote.ServiceName)
	breaker := httpclient.NewBreaker(baseClient, breakerCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", breakerCfg.Name),
		slog.Uint64("min_requests", uint64(breakerCfg.MinRequests)),
	)
	c.Client = remote.NewClient(breaker, cfg.ProductsAPIURL, logger)

	// Query cache: redis when configured, memory otherwise.
	if cfg.RedisAddr != "" {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		c.rdb = rdb

		if err := prometheus.Register(database.NewPoolStatsCollector(rdb, ServiceName)); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				logger.Warn("register redis pool metrics", slog.String("error", err.Error()))
			}
		}
		if cfg.SlowCommandThresholdMs > 0 {
			database.SetSlowCommandLogging(time.Duration(cfg.SlowCommandThresholdMs)*time.Millisecond, logger)
		}

		// Entries outlive their stale time so stale pages can still serve as
		// placeholders and lookup sources.
		ttl := 10 * max(cfg.ListStaleTime(), cfg.ReferenceStaleTime())
		c.Cache = querycache.New(querycache.NewRedisStore(rdb, cfg.CacheKeyPrefix, ttl), logger)
	} else {
		c.Cache = querycache.NewMemory(logger)
	}

	// Audit events.
	var audit event.Publisher = event.Nop{}
	if cfg.AuditEnabled() {
		c.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		audit = event.NewProducer(c.producer, cfg.AuditTopic, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	c.Finder = lookup.NewFinder(c.Client, c.Cache, lookup.Budget{
		MaxPages: cfg.LookupMaxPages,
		PageSize: cfg.LookupPageSize,
	}, logger)
	c.Catalog = service.NewCatalog(service.Options{
		API:                c.Client,
		Cache:              c.Cache,
		Finder:             c.Finder,
		Audit:              audit,
		ListStaleTime:      cfg.ListStaleTime(),
		ReferenceStaleTime: cfg.ReferenceStaleTime(),
		Logger:             logger,
	})

	// Health checks.
	c.Health = health.NewHandler()
	c.Health.RegisterCritical("product-api", c.Client.Ping)
	if c.rdb != nil {
		c.Health.RegisterNonCritical("redis", database.RedisChecker(c.rdb))
	}
	if c.producer != nil {
		c.Health.RegisterNonCritical("kafka", c.producer.Ping)
	}

	return c, nil
}

// NewController starts a product list controller reading and writing loc.
func (c *Console) NewController(loc listview.Location) *listview.Controller {
	return listview.NewController(listview.Options{
		Source:    c.Client,
		Cache:     c.Cache,
		StaleTime: c.cfg.ListStaleTime(),
		Budget: listview.SearchBudget{
			MaxPages: c.cfg.SearchMaxPages,
			PageSize: c.cfg.SearchPageSize,
		},
		Debounce: c.cfg.SearchDebounce(),
		Location: loc,
		Logger:   c.logger,
	})
}

// Close releases every connection the console holds.
func (c *Console) Close() {
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			c.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			c.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if c.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.tracerShutdown(ctx); err != nil {
			c.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
