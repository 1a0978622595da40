// Package metrics provides Prometheus instrumentation for goexec components.
//
// A Registry groups the collectors used by executors, schedulers and status
// reporters. Components take an optional *Registry; a nil registry disables
// instrumentation.
//
// # Quick Start
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//
//	pool, err := executor.NewThreadPoolExecutor(executor.Config{
//		Name:       "convergence",
//		MaxThreads: 8,
//		Metrics:    reg,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Available Metrics
//
// Executor (label pool_name):
//
//   - goexec_executor_tasks_scheduled_total
//   - goexec_executor_tasks_completed_total
//   - goexec_executor_tasks_failed_total
//   - goexec_executor_tasks_overflowed_total (extra label policy)
//   - goexec_executor_tasks_caller_runs_total
//   - goexec_executor_task_duration_seconds
//   - goexec_executor_pool_size
//   - goexec_executor_pool_largest_size
//   - goexec_executor_queue_length
//   - goexec_executor_active_workers
//
// Scheduler (label scheduler_name):
//
//   - goexec_scheduler_tasks_fired_total
//   - goexec_scheduler_post_failures_total
//
// Reporting (label reporter):
//
//   - goexec_report_sent_total
//   - goexec_report_failed_total
//
// # Configuration
//
//	reg := metrics.NewRegistryFromConfig(metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.NewRegistry(),
//		Namespace: "myapp",                             // Override default "goexec"
//		Labels:    prometheus.Labels{"version": "1.0"}, // Constant labels
//	})
package metrics
