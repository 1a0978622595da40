/*
Package scheduler hands tasks to an executor at a point in time, on a fixed
interval or on a cron schedule.

The scheduler does not run tasks itself. Each due task is posted to the
configured executor.Executor, so the pool's sizing and overflow policy
apply to scheduled work exactly as they do to direct posts. A post that the
executor does not accept is logged and counted; it is never retried.

Basic Usage:

	pool, _ := executor.NewFixedThreadPool(4)
	s, _ := scheduler.NewWithConfig(scheduler.Config{Executor: pool})
	s.Start()
	defer func() { <-s.Stop() }()

	task := executor.TaskFunc(func(ctx context.Context) error {
		fmt.Println("Task executed!")
		return nil
	})

	// One-time tasks
	s.Schedule("report", task, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	s.ScheduleAfter("warmup", task, 5*time.Second)

	// Every 30 seconds, starting now
	s.ScheduleRepeating("heartbeat", task, 30*time.Second)

	// Cron expressions carry a seconds field
	s.ScheduleCron("cleanup", "0 0 3 * * *", task)

Cron expressions are parsed with github.com/robfig/cron/v3. Descriptors such
as "@hourly" and "@every 1m30s" are accepted. ValidateCronExpression and
NextRuns inspect an expression without scheduling it.

When Config.Executor is nil the scheduler creates a cached thread pool of
its own and shuts it down in Stop. A caller-supplied executor is left
running.
*/
package scheduler
