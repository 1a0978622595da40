package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ImmediateExecutor runs every posted task synchronously on the caller's
// goroutine. It satisfies Executor so code written against a pool can run
// inline in tests or single-threaded tools.
type ImmediateExecutor struct {
	lifecycle

	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	completed atomic.Int64

	// Guarded by lifecycle.mu.
	inflight int
}

// NewImmediateExecutor returns a running ImmediateExecutor. A nil logger
// means slog.Default().
func NewImmediateExecutor(logger *slog.Logger) *ImmediateExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &ImmediateExecutor{logger: logger, ctx: ctx, cancel: cancel}
	e.init(e)
	return e
}

func (e *ImmediateExecutor) execute(Task) (outcome, error) {
	e.inflight++
	return callerRuns, nil
}

func (e *ImmediateExecutor) runInline(task Task) {
	duration, err := runTask(e.ctx, task)
	logTaskResult(e.logger, "immediate", -1, duration, err)
	e.completed.Add(1)

	e.mu.Lock()
	e.inflight--
	if e.inflight == 0 && !e.IsRunning() && !e.stopped.IsSet() {
		e.stopped.Set()
	}
	e.mu.Unlock()
}

// shutdownExecution lets tasks already running on their callers finish;
// the executor reports shut down once the last of them returns.
func (e *ImmediateExecutor) shutdownExecution() {
	if e.inflight == 0 {
		e.stopped.Set()
	}
}

func (e *ImmediateExecutor) killExecution() {
	e.cancel()
}

// CompletedTaskCount returns the number of tasks run so far.
func (e *ImmediateExecutor) CompletedTaskCount() int64 {
	return e.completed.Load()
}

// CanOverflow always returns false.
func (e *ImmediateExecutor) CanOverflow() bool { return false }

// Serialized always returns true.
func (e *ImmediateExecutor) Serialized() bool { return true }

var _ Executor = (*ImmediateExecutor)(nil)
