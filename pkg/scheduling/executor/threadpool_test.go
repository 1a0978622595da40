package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/goexec/internal/testutil"
	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
)

func newTestPool(t *testing.T, cfg Config) *ThreadPoolExecutor {
	t.Helper()
	pool, err := NewThreadPoolExecutor(cfg)
	testutil.AssertNoError(t, err)
	t.Cleanup(pool.Kill)
	return pool
}

func countingTask(counter *int32) Task {
	return TaskFunc(func(context.Context) error {
		atomic.AddInt32(counter, 1)
		return nil
	})
}

// blockingTask signals started and then waits for release or cancellation.
func blockingTask(started chan<- struct{}, release <-chan struct{}) Task {
	return TaskFunc(func(ctx context.Context) error {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func shutdownAndWait(t *testing.T, pool Executor) {
	t.Helper()
	pool.Shutdown()
	if !pool.WaitForTermination(testutil.TestTimeout) {
		t.Fatal("pool did not terminate")
	}
}

func TestNewThreadPoolExecutor_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"fixed", Config{MinThreads: 4, MaxThreads: 4}, false},
		{"negative min", Config{MinThreads: -1, MaxThreads: 2}, true},
		{"zero max", Config{MaxThreads: 0}, true},
		{"min above max", Config{MinThreads: 3, MaxThreads: 2}, true},
		{"negative idle", Config{MaxThreads: 1, IdleTime: -time.Second}, true},
		{"negative queue", Config{MaxThreads: 1, MaxQueue: -1}, true},
		{"negative gc interval", Config{MaxThreads: 1, GCInterval: -time.Second}, true},
		{"unknown policy", Config{MaxThreads: 1, OverflowPolicy: "block"}, true},
		{"caller runs", Config{MaxThreads: 1, OverflowPolicy: PolicyCallerRuns}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewThreadPoolExecutor(tt.cfg)
			if tt.wantErr {
				testutil.AssertError(t, err)
				if !gferrors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				if !errors.Is(err, gferrors.ErrInvalidConfiguration) {
					t.Error("expected error to wrap ErrInvalidConfiguration")
				}
				return
			}
			testutil.AssertNoError(t, err)
			shutdownAndWait(t, pool)
		})
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	for _, name := range []string{"abort", "discard", "caller_runs"} {
		policy, err := ParseOverflowPolicy(name)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, policy.String(), name)
	}

	_, err := ParseOverflowPolicy("retry")
	testutil.AssertError(t, err)
}

func TestPost_NilTask(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	ok, err := pool.Post(nil)
	if ok || !errors.Is(err, gferrors.ErrNilTask) {
		t.Fatalf("Post(nil) = %v, %v; want false, ErrNilTask", ok, err)
	}

	var fn TaskFunc
	ok, err = pool.Post(fn)
	if ok || !errors.Is(err, gferrors.ErrNilTask) {
		t.Fatalf("Post(nil func) = %v, %v; want false, ErrNilTask", ok, err)
	}

	ok, err = PostFunc(pool, nil)
	if ok || !errors.Is(err, gferrors.ErrNilTask) {
		t.Fatalf("PostFunc(nil) = %v, %v; want false, ErrNilTask", ok, err)
	}
}

func TestUnboundedQueueRunsEveryTask(t *testing.T) {
	const n = 200

	for _, policy := range []OverflowPolicy{PolicyAbort, PolicyDiscard, PolicyCallerRuns} {
		t.Run(string(policy), func(t *testing.T) {
			pool := newTestPool(t, Config{
				MinThreads:     1,
				MaxThreads:     4,
				OverflowPolicy: policy,
			})

			var executed int32
			for i := 0; i < n; i++ {
				ok, err := pool.Post(countingTask(&executed))
				testutil.AssertNoError(t, err)
				testutil.AssertEqual(t, ok, true)
			}

			shutdownAndWait(t, pool)
			testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(n))
			testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(n))
			testutil.AssertEqual(t, pool.ScheduledTaskCount(), int64(n))
		})
	}
}

func TestScenario_BoundedAbortPool(t *testing.T) {
	pool := newTestPool(t, Config{
		MinThreads:     2,
		MaxThreads:     4,
		IdleTime:       time.Second,
		MaxQueue:       2,
		OverflowPolicy: PolicyAbort,
	})

	var (
		wg       sync.WaitGroup
		executed int32
		rejected int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Post(countingTask(&executed)); err != nil {
				atomic.AddInt32(&rejected, 1)
			}
			if l := pool.Length(); l > 4 {
				t.Errorf("pool length %d exceeds max", l)
			}
		}()
	}
	wg.Wait()

	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, atomic.LoadInt32(&rejected), int32(0))
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(6))
	testutil.AssertEqual(t, pool.ScheduledTaskCount(), int64(6))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(6))
	if pool.LargestLength() > 4 {
		t.Errorf("largest length %d exceeds max", pool.LargestLength())
	}
}

func TestScenario_CallerRunsWhenWorkerBusy(t *testing.T) {
	pool := newTestPool(t, Config{
		MaxThreads:     1,
		MaxQueue:       0,
		OverflowPolicy: PolicyCallerRuns,
	})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	ok, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	<-started

	var ranInline bool
	ok, err = pool.Post(TaskFunc(func(context.Context) error {
		ranInline = true
		return nil
	}))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)

	// Post returned only after the task ran on this goroutine.
	testutil.AssertEqual(t, ranInline, true)
	testutil.AssertEqual(t, pool.ActiveCount(), 1)

	close(release)
	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(2))
}

func TestShutdown_WaitsForCallerRunsTask(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1, OverflowPolicy: PolicyCallerRuns})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	inlineStarted := make(chan struct{})
	inlineRelease := make(chan struct{})
	inlineCtxErr := make(chan error, 1)
	posted := make(chan error, 1)
	go func() {
		_, err := pool.Post(TaskFunc(func(ctx context.Context) error {
			close(inlineStarted)
			<-inlineRelease
			inlineCtxErr <- ctx.Err()
			return nil
		}))
		posted <- err
	}()
	<-inlineStarted

	close(release)
	pool.Shutdown()
	testutil.AssertEventually(t, func() bool { return pool.Length() == 0 })

	// The worker is gone but the caller-runs task is still in flight.
	testutil.AssertEqual(t, pool.WaitForTermination(50*time.Millisecond), false)
	testutil.AssertEqual(t, pool.IsShuttingDown(), true)

	close(inlineRelease)
	testutil.AssertNoError(t, <-inlineCtxErr)
	testutil.AssertNoError(t, <-posted)

	testutil.AssertEqual(t, pool.WaitForTermination(testutil.TestTimeout), true)
	testutil.AssertEqual(t, pool.ScheduledTaskCount(), int64(2))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(2))
}

func TestCallerRunsRemainingCapacity(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1, OverflowPolicy: PolicyCallerRuns})
	testutil.AssertEqual(t, pool.RemainingCapacity(), 0)
	testutil.AssertEqual(t, pool.CanOverflow(), true)
	shutdownAndWait(t, pool)
}

func TestOverflow_Abort(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1, MaxQueue: 1, OverflowPolicy: PolicyAbort})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var executed int32

	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	ok, err := pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, pool.QueueLength(), 1)
	testutil.AssertEqual(t, pool.RemainingCapacity(), 0)

	ok, err = pool.Post(countingTask(&executed))
	testutil.AssertEqual(t, ok, false)
	if !gferrors.IsRejected(err) {
		t.Fatalf("expected rejected execution, got %v", err)
	}
	if !strings.Contains(err.Error(), "executor.Post failed") {
		t.Errorf("unexpected error message %q", err.Error())
	}

	close(release)
	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(2))
}

func TestOverflow_Discard(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1, MaxQueue: 1, OverflowPolicy: PolicyDiscard})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var queued, discarded int32

	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	ok, err := pool.Post(countingTask(&queued))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)

	ok, err = pool.Post(countingTask(&discarded))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)

	close(release)
	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, atomic.LoadInt32(&queued), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&discarded), int32(0))
	testutil.AssertEqual(t, pool.ScheduledTaskCount(), int64(2))
}

func TestOverflow_CallerRunsWithBoundedQueue(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1, MaxQueue: 1, OverflowPolicy: PolicyCallerRuns})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var queued int32

	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	_, err = pool.Post(countingTask(&queued))
	testutil.AssertNoError(t, err)

	inline := false
	ok, err := pool.Post(TaskFunc(func(context.Context) error {
		inline = true
		return errors.New("inline failure")
	}))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, inline, true)
	testutil.AssertEqual(t, atomic.LoadInt32(&queued), int32(0))

	close(release)
	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, atomic.LoadInt32(&queued), int32(1))
}

func TestShutdown_DrainsQueuedTasks(t *testing.T) {
	pool := newTestPool(t, FixedThreadPoolConfig(2))

	var executed int32
	for i := 0; i < 10; i++ {
		_, err := pool.Post(TaskFunc(func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&executed, 1)
			return nil
		}))
		testutil.AssertNoError(t, err)
	}

	pool.Shutdown()
	if pool.IsRunning() {
		t.Error("pool should not be running after Shutdown")
	}

	ok, err := pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)

	if !pool.WaitForTermination(testutil.TestTimeout) {
		t.Fatal("pool did not terminate")
	}
	testutil.AssertEqual(t, pool.IsShutdown(), true)
	testutil.AssertEqual(t, pool.IsShuttingDown(), false)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(10))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), pool.ScheduledTaskCount())
	testutil.AssertEqual(t, pool.Length(), 0)
}

func TestShutdown_ReportsShuttingDownWhileDraining(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	pool.Shutdown()
	testutil.AssertEqual(t, pool.State(), StateShuttingDown)
	testutil.AssertEqual(t, pool.IsShuttingDown(), true)
	testutil.AssertEqual(t, pool.IsShutdown(), false)

	close(release)
	testutil.AssertEqual(t, pool.WaitForTermination(testutil.TestTimeout), true)
	testutil.AssertEqual(t, pool.State(), StateShutdown)
}

func TestShutdown_EmptyPool(t *testing.T) {
	pool := newTestPool(t, Config{MinThreads: 2, MaxThreads: 2})

	pool.Shutdown()
	testutil.AssertEqual(t, pool.IsShutdown(), true)
	testutil.AssertEqual(t, pool.WaitForTermination(time.Millisecond), true)
}

func TestShutdown_Idempotent(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 2})

	var executed int32
	_, err := pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)

	pool.Shutdown()
	pool.Shutdown()
	testutil.AssertEqual(t, pool.WaitForTermination(testutil.TestTimeout), true)
	pool.Shutdown()

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(1))
}

func TestKill_DiscardsQueuedTasks(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	started := make(chan struct{}, 1)
	var executed int32

	_, err := pool.Post(blockingTask(started, nil))
	testutil.AssertNoError(t, err)
	<-started

	for i := 0; i < 5; i++ {
		_, err := pool.Post(countingTask(&executed))
		testutil.AssertNoError(t, err)
	}
	testutil.AssertEqual(t, pool.QueueLength(), 5)

	pool.Kill()
	testutil.AssertEqual(t, pool.IsShutdown(), true)
	testutil.AssertEqual(t, pool.WaitForTermination(time.Millisecond), true)
	testutil.AssertEqual(t, pool.QueueLength(), 0)
	testutil.AssertEqual(t, pool.Length(), 0)

	time.Sleep(20 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(0))
	testutil.AssertEqual(t, pool.ScheduledTaskCount(), int64(6))

	ok, err := pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ok, false)
}

func TestKill_Idempotent(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 2})

	_, err := PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)

	pool.Kill()
	pool.Kill()
	testutil.AssertEqual(t, pool.IsShutdown(), true)
}

func TestKill_AfterShutdownWhileDraining(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	started := make(chan struct{}, 1)
	var executed int32
	_, err := pool.Post(blockingTask(started, nil))
	testutil.AssertNoError(t, err)
	<-started
	_, err = pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)

	pool.Shutdown()
	testutil.AssertEqual(t, pool.IsShuttingDown(), true)

	pool.Kill()
	testutil.AssertEqual(t, pool.IsShutdown(), true)
	time.Sleep(20 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))
}

func TestWaitForTermination_DoesNotStopPool(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	testutil.AssertEqual(t, pool.WaitForTermination(10*time.Millisecond), false)
	testutil.AssertEqual(t, pool.IsRunning(), true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.AwaitTermination(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitTermination() = %v, want DeadlineExceeded", err)
	}

	pool.Shutdown()
	testutil.AssertNoError(t, pool.AwaitTermination(context.Background()))
}

func TestTaskFailuresAreIsolated(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	pool := newTestPool(t, Config{MaxThreads: 1, Logger: logger})

	var executed int32
	_, err := pool.Post(TaskFunc(func(context.Context) error {
		panic("boom")
	}))
	testutil.AssertNoError(t, err)
	_, err = pool.Post(TaskFunc(func(context.Context) error {
		return errors.New("bad input")
	}))
	testutil.AssertNoError(t, err)
	_, err = pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)

	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(3))

	logs := buf.String()
	for _, want := range []string{"task panicked", "boom", "task failed", "bad input"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %q:\n%s", want, logs)
		}
	}
}

func TestPrunePool_ReclaimsIdleWorkers(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	pool := newTestPool(t, Config{
		MinThreads: 1,
		MaxThreads: 4,
		IdleTime:   time.Hour,
		GCInterval: time.Second,
		Clock:      clock,
	})

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		_, err := pool.Post(blockingTask(started, release))
		testutil.AssertNoError(t, err)
	}
	for i := 0; i < 4; i++ {
		<-started
	}
	testutil.AssertEqual(t, pool.Length(), 4)

	close(release)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 4 })

	// Not idle long enough yet.
	clock.Advance(30 * time.Minute)
	_, err := PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 5 })
	testutil.AssertEqual(t, pool.Length(), 4)

	clock.Advance(2 * time.Hour)
	_, err = PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)

	testutil.AssertEventually(t, func() bool { return pool.Length() == 1 })
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 6 })
	testutil.AssertEqual(t, pool.LargestLength(), 4)

	// The floor holds no matter how long the pool sits idle.
	clock.Advance(24 * time.Hour)
	_, err = PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 7 })
	testutil.AssertEqual(t, pool.Length(), 1)

	shutdownAndWait(t, pool)
}

func TestPrunePool_SkipsBusyWorkers(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	pool := newTestPool(t, Config{
		MaxThreads: 1,
		IdleTime:   time.Hour,
		GCInterval: time.Second,
		Clock:      clock,
	})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	_, err := pool.Post(blockingTask(started, release))
	testutil.AssertNoError(t, err)
	<-started

	// The worker's last activity is far in the past, but it is running.
	clock.Advance(2 * time.Hour)
	var executed int32
	_, err = pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)

	pool.mu.Lock()
	pendingStops := pool.pendingStops
	queued := pool.queue.Len()
	pool.mu.Unlock()
	testutil.AssertEqual(t, pendingStops, 0)
	testutil.AssertEqual(t, queued, 1)
	testutil.AssertEqual(t, pool.Length(), 1)

	close(release)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 2 })
	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(1))
	testutil.AssertEqual(t, pool.Length(), 1)

	shutdownAndWait(t, pool)
}

func TestPrunePool_ZeroIdleTimeNeverReclaims(t *testing.T) {
	clock := testutil.NewMockClock(time.Time{})
	pool := newTestPool(t, Config{MaxThreads: 2, Clock: clock})

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		_, err := pool.Post(blockingTask(started, release))
		testutil.AssertNoError(t, err)
	}
	<-started
	<-started
	close(release)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 2 })

	clock.Advance(365 * 24 * time.Hour)
	_, err := PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)
	testutil.AssertEventually(t, func() bool { return pool.CompletedTaskCount() == 3 })
	testutil.AssertEqual(t, pool.Length(), 2)

	shutdownAndWait(t, pool)
}

func TestIdleWorkersExitOnTheirOwn(t *testing.T) {
	pool := newTestPool(t, Config{
		MinThreads: 0,
		MaxThreads: 2,
		IdleTime:   20 * time.Millisecond,
	})

	var executed int32
	_, err := pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)
	testutil.WaitForInt32(t, &executed, 1, testutil.TestTimeout)

	testutil.AssertEventually(t, func() bool { return pool.Length() == 0 })
	testutil.AssertEqual(t, pool.IsRunning(), true)

	// A reclaimed pool grows again on demand.
	_, err = pool.Post(countingTask(&executed))
	testutil.AssertNoError(t, err)
	testutil.WaitForInt32(t, &executed, 2, testutil.TestTimeout)

	shutdownAndWait(t, pool)
}

func TestIdleWorkersKeepMinimum(t *testing.T) {
	pool := newTestPool(t, Config{
		MinThreads: 1,
		MaxThreads: 3,
		IdleTime:   10 * time.Millisecond,
	})

	started := make(chan struct{}, 3)
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		_, err := pool.Post(blockingTask(started, release))
		testutil.AssertNoError(t, err)
	}
	for i := 0; i < 3; i++ {
		<-started
	}
	close(release)

	testutil.AssertEventually(t, func() bool { return pool.Length() == 1 })
	time.Sleep(50 * time.Millisecond)
	testutil.AssertEqual(t, pool.Length(), 1)

	shutdownAndWait(t, pool)
}

func TestIntrospection(t *testing.T) {
	pool := newTestPool(t, Config{
		Name:           "introspect",
		MinThreads:     1,
		MaxThreads:     2,
		IdleTime:       time.Minute,
		MaxQueue:       3,
		OverflowPolicy: PolicyDiscard,
	})

	testutil.AssertEqual(t, pool.Name(), "introspect")
	testutil.AssertEqual(t, pool.MinLength(), 1)
	testutil.AssertEqual(t, pool.MaxLength(), 2)
	testutil.AssertEqual(t, pool.IdleTime(), time.Minute)
	testutil.AssertEqual(t, pool.MaxQueue(), 3)
	testutil.AssertEqual(t, pool.OverflowPolicy(), PolicyDiscard)
	testutil.AssertEqual(t, pool.RemainingCapacity(), 3)
	testutil.AssertEqual(t, pool.Length(), 0)

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		_, err := pool.Post(blockingTask(started, release))
		testutil.AssertNoError(t, err)
	}
	<-started
	<-started
	_, err := PostFunc(pool, func() {})
	testutil.AssertNoError(t, err)

	stats := pool.Stats()
	testutil.AssertEqual(t, stats.Name, "introspect")
	testutil.AssertEqual(t, stats.State, StateRunning)
	testutil.AssertEqual(t, stats.Length, 2)
	testutil.AssertEqual(t, stats.ActiveCount, 2)
	testutil.AssertEqual(t, stats.QueueLength, 1)
	testutil.AssertEqual(t, stats.RemainingCapacity, 2)
	testutil.AssertEqual(t, stats.ScheduledTaskCount, int64(3))
	testutil.AssertEqual(t, stats.LargestLength, 2)

	status := pool.Status()
	testutil.AssertEqual(t, len(status), 2)
	for _, s := range status {
		testutil.AssertEqual(t, s, WorkerRunning)
	}

	close(release)
	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, len(pool.Status()), 0)
}

func TestUnboundedRemainingCapacity(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})
	testutil.AssertEqual(t, pool.RemainingCapacity(), -1)
	testutil.AssertEqual(t, pool.CanOverflow(), false)
	shutdownAndWait(t, pool)
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		canOverflow bool
		serialized  bool
	}{
		{"single unbounded", Config{MaxThreads: 1}, false, true},
		{"single bounded abort", Config{MaxThreads: 1, MaxQueue: 5}, true, true},
		{"single caller runs", Config{MaxThreads: 1, OverflowPolicy: PolicyCallerRuns}, true, false},
		{"multi", Config{MaxThreads: 4, MaxQueue: 2}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool(t, tt.cfg)
			testutil.AssertEqual(t, pool.CanOverflow(), tt.canOverflow)
			testutil.AssertEqual(t, pool.Serialized(), tt.serialized)
			shutdownAndWait(t, pool)
		})
	}
}

func TestFactories(t *testing.T) {
	fixed, err := NewFixedThreadPool(3, WithName("fixed"))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, fixed.MinLength(), 3)
	testutil.AssertEqual(t, fixed.MaxLength(), 3)
	testutil.AssertEqual(t, fixed.IdleTime(), time.Duration(0))
	testutil.AssertEqual(t, fixed.Name(), "fixed")
	shutdownAndWait(t, fixed)

	cached, err := NewCachedThreadPool(WithMaxQueue(10), WithOverflowPolicy(PolicyDiscard))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cached.MinLength(), 0)
	testutil.AssertEqual(t, cached.MaxLength(), DefaultMaxThreads)
	testutil.AssertEqual(t, cached.IdleTime(), DefaultIdleTime)
	testutil.AssertEqual(t, cached.MaxQueue(), 10)
	testutil.AssertEqual(t, cached.OverflowPolicy(), PolicyDiscard)
	shutdownAndWait(t, cached)

	single, err := NewSingleThreadExecutor(WithLogger(slog.Default()))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, single.Serialized(), true)
	shutdownAndWait(t, single)

	_, err = NewFixedThreadPool(0)
	testutil.AssertError(t, err)
}

func TestSingleThreadExecutor_PreservesOrder(t *testing.T) {
	pool, err := NewSingleThreadExecutor()
	testutil.AssertNoError(t, err)
	t.Cleanup(pool.Kill)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 50; i++ {
		i := i
		_, err := PostFunc(pool, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		testutil.AssertNoError(t, err)
	}

	shutdownAndWait(t, pool)
	testutil.AssertEqual(t, len(order), 50)
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestKillCancelsTaskContext(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	started := make(chan struct{}, 1)
	canceled := make(chan struct{})
	_, err := pool.Post(TaskFunc(func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}))
	testutil.AssertNoError(t, err)
	<-started

	pool.Kill()
	select {
	case <-canceled:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("task context was not canceled")
	}
}

func TestWorker_AbandonsTaskPoppedAfterKill(t *testing.T) {
	pool := newTestPool(t, Config{MaxThreads: 1})

	var executed int32
	testutil.AssertEqual(t, pool.queue.TryPush(workItem{task: countingTask(&executed)}), true)
	pool.cancel()

	w := newWorker(1, pool)
	w.run()

	testutil.AssertEqual(t, atomic.LoadInt32(&executed), int32(0))
	testutil.AssertEqual(t, w.Dead(), true)
	testutil.AssertEqual(t, pool.CompletedTaskCount(), int64(0))
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
