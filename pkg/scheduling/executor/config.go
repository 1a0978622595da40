package executor

import (
	"log/slog"
	"math"
	"time"

	"github.com/vnykmshr/goexec/pkg/common/validation"
	"github.com/vnykmshr/goexec/pkg/metrics"
)

const module = "executor"

// Defaults applied by DefaultConfig and the factory constructors.
const (
	DefaultMaxThreads = math.MaxInt32
	DefaultIdleTime   = 60 * time.Second
	DefaultGCInterval = time.Second
)

// OverflowPolicy decides what happens to a task that finds every worker
// busy and the queue full.
type OverflowPolicy string

const (
	// PolicyAbort rejects the task with errors.ErrRejectedExecution.
	PolicyAbort OverflowPolicy = "abort"
	// PolicyDiscard silently drops the task.
	PolicyDiscard OverflowPolicy = "discard"
	// PolicyCallerRuns runs the task on the submitting goroutine.
	PolicyCallerRuns OverflowPolicy = "caller_runs"
)

func (p OverflowPolicy) String() string {
	return string(p)
}

// ParseOverflowPolicy converts a policy name into an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	if err := validation.ValidateOneOf(module, "overflow_policy", s,
		string(PolicyAbort), string(PolicyDiscard), string(PolicyCallerRuns)); err != nil {
		return "", err
	}
	return OverflowPolicy(s), nil
}

// Clock is the time source used for idle bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds configuration options for a ThreadPoolExecutor.
type Config struct {
	// Name identifies the pool in logs and metrics.
	Name string

	// MinThreads is the number of workers kept alive even when idle.
	// Must be >= 0 and <= MaxThreads.
	MinThreads int

	// MaxThreads caps the number of workers. Must be >= 1.
	MaxThreads int

	// IdleTime is how long a worker may wait without work before it is
	// reclaimed. Zero disables idle reclamation.
	IdleTime time.Duration

	// MaxQueue bounds the number of tasks waiting for a worker.
	// Zero means unbounded, except under PolicyCallerRuns where it means
	// tasks are only handed to free or new workers and otherwise run on
	// the caller.
	MaxQueue int

	// OverflowPolicy applies when all workers are busy and the queue is
	// full. Empty means PolicyAbort.
	OverflowPolicy OverflowPolicy

	// GCInterval is the minimum time between prune passes triggered by
	// Post. Zero means DefaultGCInterval.
	GCInterval time.Duration

	// Logger receives task failures and worker lifecycle events.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry

	// Clock overrides the time source. If nil, the system clock is used.
	Clock Clock
}

// DefaultConfig returns the configuration of a cached, unbounded pool.
func DefaultConfig() Config {
	return Config{
		MinThreads:     0,
		MaxThreads:     DefaultMaxThreads,
		IdleTime:       DefaultIdleTime,
		MaxQueue:       0,
		OverflowPolicy: PolicyAbort,
		GCInterval:     DefaultGCInterval,
	}
}

// Validate checks the configuration without applying defaults.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegativeInt(module, "min_threads", c.MinThreads); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "max_threads", c.MaxThreads); err != nil {
		return err
	}
	if err := validation.ValidateAtMost(module, "min_threads", c.MinThreads, "max_threads", c.MaxThreads); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration(module, "idle_time", c.IdleTime); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt(module, "max_queue", c.MaxQueue); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration(module, "gc_interval", c.GCInterval); err != nil {
		return err
	}
	if c.OverflowPolicy != "" {
		if _, err := ParseOverflowPolicy(string(c.OverflowPolicy)); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults fills optional fields. It assumes Validate passed.
func (c Config) withDefaults() Config {
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = PolicyAbort
	}
	if c.GCInterval == 0 {
		c.GCInterval = DefaultGCInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.Name == "" {
		c.Name = "pool"
	}
	return c
}

// FixedThreadPoolConfig returns a pool of exactly n workers with an
// unbounded queue.
func FixedThreadPoolConfig(n int) Config {
	c := DefaultConfig()
	c.MinThreads = n
	c.MaxThreads = n
	c.IdleTime = 0
	return c
}

// CachedThreadPoolConfig returns a pool that grows on demand and reclaims
// workers idle for DefaultIdleTime.
func CachedThreadPoolConfig() Config {
	return DefaultConfig()
}

// SingleThreadConfig returns a pool with one worker that runs tasks in
// submission order.
func SingleThreadConfig() Config {
	return FixedThreadPoolConfig(1)
}
