package report

import (
	"context"
	"log/slog"
	"time"

	gfcontext "github.com/vnykmshr/goexec/pkg/common/context"
	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
)

// Snapshot is the executor state at one instant.
type Snapshot struct {
	executor.Stats
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Graceful  *bool     `json:"graceful,omitempty" yaml:"graceful,omitempty"`
}

// StatsProvider is implemented by executors that expose counters, such as
// *executor.ThreadPoolExecutor.
type StatsProvider interface {
	Stats() executor.Stats
}

// Reporter delivers snapshots.
type Reporter interface {
	Report(ctx context.Context, snap Snapshot) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, snap Snapshot) error

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Take builds a snapshot of ex. Executors without counters only report
// their lifecycle state.
func Take(ex executor.Executor, now time.Time) Snapshot {
	var stats executor.Stats
	if p, ok := ex.(StatsProvider); ok {
		stats = p.Stats()
	} else {
		stats.State = stateOf(ex)
	}
	return Snapshot{Stats: stats, Timestamp: now}
}

func stateOf(ex executor.Executor) string {
	switch {
	case ex.IsShutdown():
		return executor.StateShutdown
	case ex.IsShuttingDown():
		return executor.StateShuttingDown
	default:
		return executor.StateRunning
	}
}

// Handshake shuts ex down and waits up to grace for it to terminate. If the
// grace period elapses or ctx is canceled first, ex is killed. The final
// snapshot is then sent to reporter, which may be nil. A non-positive grace
// waits until ctx is done.
//
// The returned bool reports whether queued work drained without a kill.
func Handshake(ctx context.Context, ex executor.Executor, reporter Reporter, grace time.Duration) (bool, error) {
	ex.Shutdown()

	waitCtx, cancel := gfcontext.WithOptionalTimeout(ctx, grace)
	err := ex.AwaitTermination(waitCtx)
	cancel()

	graceful := err == nil
	if !graceful {
		ex.Kill()
	}

	if reporter == nil {
		return graceful, nil
	}

	snap := Take(ex, time.Now())
	snap.Graceful = &graceful

	// The caller's ctx may already be done; the final report still gets a
	// bounded attempt.
	reportCtx := ctx
	if gfcontext.IsCanceled(ctx) {
		var cancelReport context.CancelFunc
		reportCtx, cancelReport = context.WithTimeout(context.WithoutCancel(ctx), finalReportTimeout)
		defer cancelReport()
	}
	return graceful, reporter.Report(reportCtx, snap)
}

const finalReportTimeout = 2 * time.Second

// Periodic reports a snapshot of ex every interval until ctx is done or ex
// has shut down. Delivery errors are logged and do not stop the loop.
func Periodic(ctx context.Context, ex executor.Executor, reporter Reporter, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := Take(ex, now)
			if err := reporter.Report(ctx, snap); err != nil && !gfcontext.IsCanceled(ctx) {
				logger.Warn("status report failed", "pool", snap.Name, "error", err)
			}
			if snap.State == executor.StateShutdown {
				return
			}
		}
	}
}
