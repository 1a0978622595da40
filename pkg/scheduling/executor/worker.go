package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vnykmshr/goexec/pkg/scheduling/queue"
)

// Worker states reported by Status.
const (
	WorkerIdle    = "idle"
	WorkerRunning = "running"
	WorkerDead    = "dead"
)

// workItem is what travels through the pool queue. A stop item tells
// exactly one worker to exit.
type workItem struct {
	task Task
	stop bool
}

var stopItem = workItem{stop: true}

// worker owns one goroutine that pulls work off the shared queue until it
// receives a stop item, is reclaimed for idleness or the pool is killed.
type worker struct {
	id    int
	pool  *ThreadPoolExecutor
	queue *queue.BlockingQueue[workItem]
	ctx   context.Context

	mu           sync.Mutex
	lastActivity time.Time
	state        string

	done chan struct{}
}

func newWorker(id int, pool *ThreadPoolExecutor) *worker {
	return &worker{
		id:           id,
		pool:         pool,
		queue:        pool.queue,
		ctx:          pool.ctx,
		lastActivity: pool.clock.Now(),
		state:        WorkerIdle,
		done:         make(chan struct{}),
	}
}

func (w *worker) start() {
	go w.run()
}

func (w *worker) run() {
	defer close(w.done)
	w.pool.logger.Debug("worker started", "pool", w.pool.name, "worker_id", w.id)

	for {
		item, err := w.next()
		if err != nil {
			w.markDead()
			if errors.Is(err, errIdleExit) {
				w.pool.logger.Debug("worker reclaimed", "pool", w.pool.name, "worker_id", w.id)
				return
			}
			w.pool.onWorkerExit(w, false)
			return
		}
		if item.stop {
			w.markDead()
			w.pool.onWorkerExit(w, true)
			w.pool.logger.Debug("worker stopped", "pool", w.pool.name, "worker_id", w.id)
			return
		}

		if w.ctx.Err() != nil {
			// Killed between the pop and the start; the task is abandoned.
			w.markDead()
			return
		}

		w.setState(WorkerRunning)
		duration, taskErr := runTask(w.ctx, item.task)

		if w.ctx.Err() != nil {
			// Killed while the task was in flight; its result is abandoned.
			w.markDead()
			return
		}

		w.mu.Lock()
		w.state = WorkerIdle
		w.lastActivity = w.pool.clock.Now()
		w.mu.Unlock()

		w.pool.onEndTask(w, duration, taskErr)
	}
}

var errIdleExit = errors.New("worker idle")

// next pops the next work item. When idle reclamation is enabled the pop is
// bounded by the idle time, after which the pool decides whether this
// worker may exit.
func (w *worker) next() (workItem, error) {
	for {
		idle := w.pool.idleTime
		if idle <= 0 {
			return w.queue.Pop(w.ctx)
		}

		ctx, cancel := context.WithTimeout(w.ctx, idle)
		item, err := w.queue.Pop(ctx)
		cancel()

		if err == nil || w.ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
			return item, err
		}
		if w.pool.onWorkerIdle(w) {
			return workItem{}, errIdleExit
		}
	}
}

func (w *worker) setState(state string) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

func (w *worker) markDead() {
	w.setState(WorkerDead)
}

// Dead reports whether the worker goroutine has finished or is finishing.
func (w *worker) Dead() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WorkerDead
}

// LastActivity returns the time the worker last finished a task, or its
// start time if it has not run one.
func (w *worker) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

// Status returns one of WorkerIdle, WorkerRunning or WorkerDead.
func (w *worker) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// idleSince reports whether the worker has been idle for at least d as of
// now. It holds the worker lock so a task starting concurrently is seen.
func (w *worker) idleSince(now time.Time, d time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WorkerIdle && now.Sub(w.lastActivity) >= d
}

// runTask executes task and converts a panic into an error.
func runTask(ctx context.Context, task Task) (duration time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\nStack trace:\n%s", ErrTaskPanicked, r, debug.Stack())
		}
		duration = time.Since(start)
	}()

	err = task.Execute(ctx)
	return
}

// ErrTaskPanicked wraps the value recovered from a panicking task.
var ErrTaskPanicked = errors.New("task panicked")

func logTaskResult(logger *slog.Logger, pool string, workerID int, duration time.Duration, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskPanicked):
		logger.Error("task panicked", "pool", pool, "worker_id", workerID, "duration", duration, "error", err)
	default:
		logger.Warn("task failed", "pool", pool, "worker_id", workerID, "duration", duration, "error", err)
	}
}
