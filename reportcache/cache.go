// Package reportcache remembers computed reports in redis.
//
// Reports are stored as JSON under a common key prefix and the current generation number.
// Invalidate bumps the generation before it drops the stored reports, so a report computed from data
// older than the invalidation is written under a generation nobody reads anymore. Redis is an optimization
// only: when it is unreachable every call falls back to computing the report.
package reportcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/AntonStoeckl/library-history-go/library"
)

const (
	// DefaultTTL is how long a remembered report stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultPrefix is prepended to every key.
	DefaultPrefix = "library:"

	generationKey = "generation"
	scanBatchSize = 100
)

// Metric names and labels.
const (
	HitsMetric   = "reportcache_hits_total"
	MissesMetric = "reportcache_misses_total"
	ErrorsMetric = "reportcache_errors_total"

	labelOperation = "operation"
	labelKey       = "key"

	logMsgRedisFailed = "report cache unavailable, computing directly"
)

var (
	// ErrNilClient is returned when New gets no redis client.
	ErrNilClient = errors.New("redis client must not be nil")

	// ErrInvalidTTL is returned when WithTTL gets a non-positive duration.
	ErrInvalidTTL = errors.New("ttl must be positive")

	// ErrEmptyPrefix is returned when WithPrefix gets an empty prefix, which would make Invalidate
	// delete every key of the redis database.
	ErrEmptyPrefix = errors.New("key prefix must not be empty")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache is a redis backed report cache. It is safe for concurrent use.
type Cache struct {
	client           redis.UniversalClient
	ttl              time.Duration
	prefix           string
	group            *singleflight.Group
	metricsCollector library.MetricsCollector
	contextualLogger library.ContextualLogger
	logger           library.Logger
}

// New creates a Cache on top of the given redis client.
func New(client redis.UniversalClient, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	c := &Cache{
		client: client,
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
		group:  &singleflight.Group{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Remember decodes the report stored under key into dst. On a miss it runs compute once per key,
// even for concurrent callers, and stores the result. Errors of compute are returned and never stored.
func (c *Cache) Remember(
	ctx context.Context,
	key string,
	dst any,
	compute func(ctx context.Context) (any, error),
) error {
	generation, err := c.client.Get(ctx, c.prefix+generationKey).Int64()

	switch {
	case err == nil, errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		c.failed(ctx, "get", key, err)
		return c.computeDirectly(ctx, dst, compute)
	}

	fullKey := fmt.Sprintf("%s%d:%s", c.prefix, generation, key)

	raw, err := c.client.Get(ctx, fullKey).Bytes()

	switch {
	case err == nil:
		decodeErr := json.Unmarshal(raw, dst)
		if decodeErr == nil {
			c.count(ctx, HitsMetric, "get")
			return nil
		}

		c.failed(ctx, "decode", key, decodeErr)
	case errors.Is(err, redis.Nil):
		c.count(ctx, MissesMetric, "get")
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		c.failed(ctx, "get", key, err)
	}

	encoded, err, _ := c.group.Do(fullKey, func() (any, error) {
		value, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}

		data, marshalErr := json.Marshal(value)
		if marshalErr != nil {
			return nil, fmt.Errorf("encoding report %s: %w", key, marshalErr)
		}

		if setErr := c.client.Set(ctx, fullKey, data, c.ttl).Err(); setErr != nil {
			c.failed(ctx, "set", key, setErr)
		}

		return data, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(encoded.([]byte), dst)
}

func (c *Cache) computeDirectly(ctx context.Context, dst any, compute func(ctx context.Context) (any, error)) error {
	value, err := compute(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	return json.Unmarshal(data, dst)
}

// Invalidate starts a new generation and deletes every report remembered so far.
func (c *Cache) Invalidate(ctx context.Context) error {
	generation := c.prefix + generationKey

	if err := c.client.Incr(ctx, generation).Err(); err != nil {
		c.failed(ctx, "incr", generation, err)
		return fmt.Errorf("starting a new report generation: %w", err)
	}

	var keys []string

	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		if iter.Val() != generation {
			keys = append(keys, iter.Val())
		}
	}

	if err := iter.Err(); err != nil {
		c.failed(ctx, "scan", c.prefix, err)
		return fmt.Errorf("scanning report keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.failed(ctx, "del", c.prefix, err)
		return fmt.Errorf("deleting %d report keys: %w", len(keys), err)
	}

	return nil
}

func (c *Cache) failed(ctx context.Context, operation, key string, err error) {
	c.count(ctx, ErrorsMetric, operation)

	args := []any{labelOperation, operation, labelKey, key, "error", err.Error()}
	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, logMsgRedisFailed, args...)
	} else if c.logger != nil {
		c.logger.Warn(logMsgRedisFailed, args...)
	}
}

func (c *Cache) count(ctx context.Context, metric, operation string) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation}

	if contextual, ok := c.metricsCollector.(library.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	c.metricsCollector.IncrementCounter(metric, labels)
}

// Option configures a Cache.
type Option func(*Cache) error

// WithTTL sets how long reports are remembered. Defaults to DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}

		c.ttl = ttl

		return nil
	}
}

// WithPrefix sets the key prefix. Defaults to DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) error {
		if prefix == "" {
			return ErrEmptyPrefix
		}

		c.prefix = prefix

		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector library.MetricsCollector) Option {
	return func(c *Cache) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger library.ContextualLogger) Option {
	return func(c *Cache) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithLogger sets the basic logger.
func WithLogger(logger library.Logger) Option {
	return func(c *Cache) error {
		c.logger = logger
		return nil
	}
}
