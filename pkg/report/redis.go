package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
	"github.com/vnykmshr/goexec/pkg/common/validation"
	"github.com/vnykmshr/goexec/pkg/metrics"
)

const module = "report"

// RedisConfig holds configuration for a RedisReporter.
type RedisConfig struct {
	// Redis client used for all writes
	Client redis.UniversalClient

	// Prefix is prepended to every key and channel (default "goexec")
	Prefix string

	// TTL is how long a pool hash lives after its last report (default 5m)
	TTL time.Duration

	// Timeout bounds each Report call (default 500ms)
	Timeout time.Duration

	// Metrics counts delivered and failed reports when non-nil
	Metrics *metrics.Registry
}

// DefaultRedisConfig returns the defaults applied to zero fields.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:  "goexec",
		TTL:     5 * time.Minute,
		Timeout: 500 * time.Millisecond,
	}
}

// RedisReporter stores each snapshot in the hash "<prefix>:<pool>" and
// publishes it as JSON on "<prefix>:events".
type RedisReporter struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	metrics *metrics.Registry
}

// NewRedisReporter validates cfg and returns a reporter.
func NewRedisReporter(cfg RedisConfig) (*RedisReporter, error) {
	if err := validation.ValidateNotNil(module, "client", cfg.Client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "ttl", cfg.TTL); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "timeout", cfg.Timeout); err != nil {
		return nil, err
	}

	defaults := DefaultRedisConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = defaults.Prefix
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &RedisReporter{
		client:  cfg.Client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
	}, nil
}

// Key returns the hash key for a pool.
func (r *RedisReporter) Key(pool string) string {
	return r.prefix + ":" + pool
}

// EventsChannel returns the pub/sub channel snapshots are published on.
func (r *RedisReporter) EventsChannel() string {
	return r.prefix + ":events"
}

// Report implements Reporter.
func (r *RedisReporter) Report(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return r.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := r.Key(snap.Name)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, hashFields(snap))
	pipe.Expire(ctx, key, r.ttl)
	pipe.Publish(ctx, r.EventsChannel(), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return r.fail(err)
	}

	if r.metrics != nil {
		r.metrics.ReportsSent.WithLabelValues("redis").Inc()
	}
	return nil
}

func (r *RedisReporter) fail(err error) error {
	if r.metrics != nil {
		r.metrics.ReportsFailed.WithLabelValues("redis").Inc()
	}
	return gferrors.NewOperationError(module, "Report", err).WithContext("redis")
}

func hashFields(snap Snapshot) map[string]interface{} {
	fields := map[string]interface{}{
		"state":                snap.State,
		"length":               snap.Length,
		"largest_length":       snap.LargestLength,
		"active_count":         snap.ActiveCount,
		"queue_length":         snap.QueueLength,
		"remaining_capacity":   snap.RemainingCapacity,
		"scheduled_task_count": snap.ScheduledTaskCount,
		"completed_task_count": snap.CompletedTaskCount,
		"min_length":           snap.MinLength,
		"max_length":           snap.MaxLength,
		"max_queue":            snap.MaxQueue,
		"overflow_policy":      string(snap.OverflowPolicy),
		"idle_time":            snap.IdleTime.String(),
		"timestamp":            snap.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if snap.Graceful != nil {
		fields["graceful"] = *snap.Graceful
	}
	return fields
}
