package executor

import (
	"context"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
	"github.com/vnykmshr/goexec/pkg/concurrent/event"
)

// Lifecycle states reported by State.
const (
	StateRunning      = "running"
	StateShuttingDown = "shuttingdown"
	StateShutdown     = "shutdown"
)

type outcome int

const (
	accepted outcome = iota
	dropped
	callerRuns
)

// executionHooks is implemented by concrete executors. execute,
// shutdownExecution and killExecution are called with the lifecycle mutex
// held; runInline is called without it.
type executionHooks interface {
	execute(task Task) (outcome, error)
	runInline(task Task)
	shutdownExecution()
	killExecution()
}

// lifecycle implements the parts of Executor that do not depend on how
// tasks are run. Executors embed it and supply the hooks.
type lifecycle struct {
	mu      sync.Mutex
	stop    *event.Event
	stopped *event.Event
	hooks   executionHooks
}

func (l *lifecycle) init(hooks executionHooks) {
	l.stop = event.New()
	l.stopped = event.New()
	l.hooks = hooks
}

// Post implements Executor.
func (l *lifecycle) Post(task Task) (bool, error) {
	if isNilTask(task) {
		return false, gferrors.ErrNilTask
	}

	l.mu.Lock()
	if !l.IsRunning() {
		l.mu.Unlock()
		return false, nil
	}
	out, err := l.hooks.execute(task)
	l.mu.Unlock()

	if err != nil {
		return false, err
	}

	switch out {
	case dropped:
		return false, nil
	case callerRuns:
		l.hooks.runInline(task)
	}
	return true, nil
}

// IsRunning implements Executor.
func (l *lifecycle) IsRunning() bool {
	return !l.stop.IsSet()
}

// IsShuttingDown implements Executor.
func (l *lifecycle) IsShuttingDown() bool {
	return l.stop.IsSet() && !l.stopped.IsSet()
}

// IsShutdown implements Executor.
func (l *lifecycle) IsShutdown() bool {
	return l.stopped.IsSet()
}

// State returns the lifecycle state as a string.
func (l *lifecycle) State() string {
	switch {
	case l.IsShutdown():
		return StateShutdown
	case l.IsShuttingDown():
		return StateShuttingDown
	default:
		return StateRunning
	}
}

// Shutdown implements Executor.
func (l *lifecycle) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.IsRunning() {
		return
	}
	l.stop.Set()
	l.hooks.shutdownExecution()
}

// Kill implements Executor.
func (l *lifecycle) Kill() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsShutdown() {
		return
	}
	l.stop.Set()
	l.hooks.killExecution()
	l.stopped.Set()
}

// WaitForTermination implements Executor.
func (l *lifecycle) WaitForTermination(timeout time.Duration) bool {
	return l.stopped.WaitTimeout(timeout)
}

// AwaitTermination implements Executor.
func (l *lifecycle) AwaitTermination(ctx context.Context) error {
	if l.stopped.WaitContext(ctx) {
		return nil
	}
	return ctx.Err()
}
