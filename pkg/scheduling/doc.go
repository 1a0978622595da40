/*
Package scheduling provides task execution and scheduling primitives for Go applications.

  - queue: Blocking FIFO queue shared by producers and workers
  - executor: Thread pools that run posted tasks
  - scheduler: Time-based task scheduling and cron-like functionality

Thread Pool:

A ThreadPoolExecutor starts with no workers, adds one per post until it
reaches MaxThreads, then queues up to MaxQueue tasks. Beyond that the
overflow policy decides: abort returns an error, discard drops the task and
caller_runs executes it on the posting goroutine.

	pool, err := executor.NewThreadPoolExecutor(executor.Config{
		MaxThreads: 4,
		MaxQueue:   100,
	})

	ok, err := pool.Post(executor.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	}))

	pool.Shutdown()
	pool.WaitForTermination(0)

Task Scheduler:

The scheduler posts tasks to an executor when they become due:

	s, _ := scheduler.NewWithConfig(scheduler.Config{Executor: pool})
	s.Start()
	defer func() { <-s.Stop() }()

	s.ScheduleAfter("once", task, time.Minute)
	s.ScheduleRepeating("hourly", task, time.Hour)
	s.ScheduleCron("weekdays", "0 0 9 * * MON-FRI", task)

All components are safe for concurrent use.
*/
package scheduling
