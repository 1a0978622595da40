// Package executor runs tasks asynchronously on a dynamically sized pool of
// worker goroutines.
//
// ThreadPoolExecutor keeps at least MinThreads workers once work arrives,
// grows up to MaxThreads while tasks wait, and reclaims workers that have
// been idle for longer than IdleTime. The queue can be bounded with
// MaxQueue; an OverflowPolicy decides what happens to tasks that find it
// full:
//
//   - PolicyAbort rejects the task with errors.ErrRejectedExecution
//   - PolicyDiscard drops it and Post returns false
//   - PolicyCallerRuns runs it on the goroutine that called Post
//
// Every executor shares one lifecycle: running, shutting down and shut
// down. Shutdown lets queued work drain; Kill discards it and cancels the
// context passed to in-flight tasks.
//
// Basic usage:
//
//	pool, err := executor.NewThreadPoolExecutor(executor.Config{
//		Name:           "uploads",
//		MinThreads:     2,
//		MaxThreads:     8,
//		IdleTime:       30 * time.Second,
//		MaxQueue:       100,
//		OverflowPolicy: executor.PolicyCallerRuns,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pool.Post(executor.TaskFunc(func(ctx context.Context) error {
//		return upload(ctx, file)
//	}))
//
//	pool.Shutdown()
//	pool.WaitForTermination(0)
//
// Go cannot stop a running goroutine, so Kill abandons in-flight tasks
// rather than terminating them. Tasks that run for long should watch their
// context.
package executor
