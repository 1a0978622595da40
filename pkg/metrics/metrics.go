// Package metrics provides Prometheus instrumentation for goexec components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "goexec"

// Registry holds all metric instances for goexec components.
type Registry struct {
	// Executor Metrics
	TasksScheduled  *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TasksFailed     *prometheus.CounterVec
	TasksRejected   *prometheus.CounterVec
	TasksCallerRuns *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	PoolSize        *prometheus.GaugeVec
	PoolLargest     *prometheus.GaugeVec
	QueueLength     *prometheus.GaugeVec
	ActiveWorkers   *prometheus.GaugeVec

	// Scheduler Metrics
	SchedulerFired      *prometheus.CounterVec
	SchedulerPostFailed *prometheus.CounterVec

	// Reporting Metrics
	ReportsSent   *prometheus.CounterVec
	ReportsFailed *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by goexec components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, defaultNamespace, nil)
}

// NewRegistryFromConfig creates a registry honouring the namespace and
// constant labels of config. It returns nil when metrics are disabled.
func NewRegistryFromConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	return newRegistry(reg, namespace, config.Labels)
}

func newRegistry(reg prometheus.Registerer, namespace string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "tasks_scheduled_total",
				Help:        "Total number of tasks accepted into the queue",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks finished by workers, successful or not",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "tasks_overflowed_total",
				Help:        "Total number of tasks that hit the overflow policy",
				ConstLabels: labels,
			},
			[]string{"pool_name", "policy"},
		),

		TasksCallerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "tasks_caller_runs_total",
				Help:        "Total number of tasks executed on the submitting goroutine",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "pool_size",
				Help:        "Current number of workers",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PoolLargest: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "pool_largest_size",
				Help:        "Largest number of workers ever alive at once",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		QueueLength: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "queue_length",
				Help:        "Number of tasks waiting for a worker",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		ActiveWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "executor",
				Name:        "active_workers",
				Help:        "Number of workers currently running a task",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		SchedulerFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "tasks_fired_total",
				Help:        "Total number of scheduled tasks handed to an executor",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		SchedulerPostFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "post_failures_total",
				Help:        "Total number of scheduled tasks the executor did not accept",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		ReportsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "report",
				Name:        "sent_total",
				Help:        "Total number of status reports delivered",
				ConstLabels: labels,
			},
			[]string{"reporter"},
		),

		ReportsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "report",
				Name:        "failed_total",
				Help:        "Total number of status reports that could not be delivered",
				ConstLabels: labels,
			},
			[]string{"reporter"},
		),
	}
}
