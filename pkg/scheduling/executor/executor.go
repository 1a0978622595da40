package executor

import (
	"context"
	"time"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
)

// Task represents a unit of work that can be executed by an executor.
type Task interface {
	// Execute runs the task. The context is canceled when the executor is
	// killed; long-running tasks should watch it.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Executor is the lifecycle contract shared by every executor in this
// package.
//
// The three state predicates are mutually exclusive and together exhaustive:
// an executor is running until Shutdown or Kill is called, shutting down
// while queued work drains, and shut down once it has terminated.
type Executor interface {
	// Post submits task for asynchronous execution. It reports whether the
	// task was accepted. A nil task fails with errors.ErrNilTask; an
	// executor that is not running returns false without error.
	Post(task Task) (bool, error)

	IsRunning() bool
	IsShuttingDown() bool
	IsShutdown() bool

	// Shutdown stops accepting tasks and lets queued tasks finish. Calls
	// after the first are no-ops.
	Shutdown()

	// Kill stops accepting tasks, discards queued tasks, abandons in-flight
	// tasks and terminates immediately.
	Kill()

	// WaitForTermination blocks until the executor has terminated or
	// timeout elapses, and reports whether it terminated. A non-positive
	// timeout waits forever. It never initiates shutdown.
	WaitForTermination(timeout time.Duration) bool

	// AwaitTermination is WaitForTermination bounded by ctx.
	AwaitTermination(ctx context.Context) error

	// CanOverflow reports whether the executor has a bounded queue.
	CanOverflow() bool

	// Serialized reports whether tasks run one at a time in submission order.
	Serialized() bool
}

// PostFunc submits a plain function to ex.
func PostFunc(ex Executor, fn func()) (bool, error) {
	if fn == nil {
		return false, gferrors.ErrNilTask
	}
	return ex.Post(TaskFunc(func(context.Context) error {
		fn()
		return nil
	}))
}

func isNilTask(task Task) bool {
	if task == nil {
		return true
	}
	fn, ok := task.(TaskFunc)
	return ok && fn == nil
}
