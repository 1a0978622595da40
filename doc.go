/*
Package goexec provides thread pools and related concurrency primitives for
Go applications.

Synchronization (pkg/concurrent):
  - event: One-shot latch with timed waits
  - condition: Condition variable with timed waits and explicit lock ownership

Task Scheduling (pkg/scheduling):
  - queue: Blocking FIFO queue with optional capacity
  - executor: Growable thread pool with overflow policies and idle reclamation
  - scheduler: Delayed, interval and cron scheduling onto an executor

Reporting (pkg/report, pkg/metrics):
  - report: Shutdown handshake and pool status snapshots, optionally to Redis
  - metrics: Prometheus collectors for executors and schedulers

Example usage:

	import "github.com/vnykmshr/goexec/pkg/scheduling/executor"

	pool, _ := executor.NewThreadPoolExecutor(executor.Config{
		MaxThreads:     5,
		MaxQueue:       100,
		OverflowPolicy: executor.PolicyCallerRuns,
	})

	pool.Post(task)

	pool.Shutdown()
	pool.WaitForTermination(30 * time.Second)
*/
package goexec
