package executor

import (
	"time"

	"github.com/vnykmshr/goexec/pkg/metrics"
)

// instruments records executor metrics. A nil registry turns every call
// into a no-op.
type instruments struct {
	registry *metrics.Registry
	name     string
}

func (i instruments) enabled() bool {
	return i.registry != nil
}

func (i instruments) scheduled() {
	if !i.enabled() {
		return
	}
	i.registry.TasksScheduled.WithLabelValues(i.name).Inc()
}

func (i instruments) finished(duration time.Duration, err error) {
	if !i.enabled() {
		return
	}
	i.registry.TasksCompleted.WithLabelValues(i.name).Inc()
	i.registry.TaskDuration.WithLabelValues(i.name).Observe(duration.Seconds())
	if err != nil {
		i.registry.TasksFailed.WithLabelValues(i.name).Inc()
	}
}

func (i instruments) overflowed(policy OverflowPolicy) {
	if !i.enabled() {
		return
	}
	i.registry.TasksRejected.WithLabelValues(i.name, policy.String()).Inc()
}

func (i instruments) callerRan() {
	if !i.enabled() {
		return
	}
	i.registry.TasksCallerRuns.WithLabelValues(i.name).Inc()
}

func (i instruments) gauges(size, largest, queued, active int) {
	if !i.enabled() {
		return
	}
	i.registry.PoolSize.WithLabelValues(i.name).Set(float64(size))
	i.registry.PoolLargest.WithLabelValues(i.name).Set(float64(largest))
	i.registry.QueueLength.WithLabelValues(i.name).Set(float64(queued))
	i.registry.ActiveWorkers.WithLabelValues(i.name).Set(float64(active))
}
