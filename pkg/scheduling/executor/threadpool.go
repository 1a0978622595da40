package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
	"github.com/vnykmshr/goexec/pkg/scheduling/queue"
)

// ThreadPoolExecutor runs tasks on a pool of worker goroutines that grows
// on demand up to MaxThreads and shrinks back to MinThreads when workers
// sit idle for longer than IdleTime.
//
// Tasks are dequeued in submission order. When every worker is busy and
// the queue holds MaxQueue tasks, the OverflowPolicy decides the fate of
// the next task.
type ThreadPoolExecutor struct {
	lifecycle

	name       string
	minLength  int
	maxLength  int
	idleTime   time.Duration
	maxQueue   int
	policy     OverflowPolicy
	gcInterval time.Duration
	logger     *slog.Logger
	clock      Clock
	metrics    instruments

	ctx    context.Context
	cancel context.CancelFunc
	queue  *queue.BlockingQueue[workItem]

	// Guarded by lifecycle.mu.
	pool            []*worker
	nextID          int
	pendingStops    int
	scheduled       int64
	completed       int64
	inlineScheduled int64
	inlineCompleted int64
	largestLength   int
	lastGC          time.Time
}

// NewThreadPoolExecutor validates cfg and returns a running executor.
// Workers are started lazily by Post.
func NewThreadPoolExecutor(cfg Config) (*ThreadPoolExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &ThreadPoolExecutor{
		name:       cfg.Name,
		minLength:  cfg.MinThreads,
		maxLength:  cfg.MaxThreads,
		idleTime:   cfg.IdleTime,
		maxQueue:   cfg.MaxQueue,
		policy:     cfg.OverflowPolicy,
		gcInterval: cfg.GCInterval,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		metrics:    instruments{registry: cfg.Metrics, name: cfg.Name},
		ctx:        ctx,
		cancel:     cancel,
		queue:      queue.New[workItem](queue.Unbounded),
	}
	p.lastGC = p.clock.Now()
	p.init(p)
	return p, nil
}

// Option adjusts the Config used by the factory constructors.
type Option func(*Config)

// WithName sets the pool name used in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithMaxQueue bounds the pool queue.
func WithMaxQueue(n int) Option {
	return func(c *Config) { c.MaxQueue = n }
}

// WithOverflowPolicy sets the overflow policy.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(c *Config) { c.OverflowPolicy = policy }
}

// WithIdleTime sets the idle reclamation threshold.
func WithIdleTime(d time.Duration) Option {
	return func(c *Config) { c.IdleTime = d }
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(c *Config) { c.Clock = clock }
}

func newWithOptions(cfg Config, opts []Option) (*ThreadPoolExecutor, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewThreadPoolExecutor(cfg)
}

// NewFixedThreadPool returns a pool of exactly n workers with an
// unbounded queue.
func NewFixedThreadPool(n int, opts ...Option) (*ThreadPoolExecutor, error) {
	return newWithOptions(FixedThreadPoolConfig(n), opts)
}

// NewCachedThreadPool returns a pool that creates workers as needed and
// reclaims them after DefaultIdleTime without work.
func NewCachedThreadPool(opts ...Option) (*ThreadPoolExecutor, error) {
	return newWithOptions(CachedThreadPoolConfig(), opts)
}

// NewSingleThreadExecutor returns a pool with one worker. Tasks run one at
// a time in submission order.
func NewSingleThreadExecutor(opts ...Option) (*ThreadPoolExecutor, error) {
	return newWithOptions(SingleThreadConfig(), opts)
}

func (p *ThreadPoolExecutor) execute(task Task) (outcome, error) {
	p.prunePool(p.clock.Now())

	if p.ensureCapacity() {
		if !p.queue.TryPush(workItem{task: task}) {
			return dropped, gferrors.NewOperationError(module, "Post", gferrors.ErrClosed).WithContext("pool " + p.name)
		}
		p.scheduled++
		p.metrics.scheduled()
		p.updateGauges()
		return accepted, nil
	}

	p.metrics.overflowed(p.policy)
	switch p.policy {
	case PolicyDiscard:
		p.logger.Debug("task discarded", "pool", p.name, "queue_length", p.queueLength())
		return dropped, nil
	case PolicyCallerRuns:
		p.inlineScheduled++
		return callerRuns, nil
	default:
		return dropped, gferrors.NewOperationError(module, "Post", gferrors.ErrRejectedExecution).
			WithContext(fmt.Sprintf("pool %s: %d workers busy, %d queued", p.name, p.effectiveLength(), p.queueLength()))
	}
}

func (p *ThreadPoolExecutor) runInline(task Task) {
	duration, err := runTask(p.ctx, task)
	logTaskResult(p.logger, p.name, -1, duration, err)

	p.mu.Lock()
	p.inlineCompleted++
	if !p.IsRunning() && p.drained() && !p.stopped.IsSet() {
		p.terminate()
	}
	p.mu.Unlock()

	p.metrics.callerRan()
	p.metrics.finished(duration, err)
}

func (p *ThreadPoolExecutor) shutdownExecution() {
	if p.drained() {
		p.terminate()
		return
	}
	n := p.effectiveLength()
	for i := 0; i < n; i++ {
		p.queue.TryPush(stopItem)
	}
	p.pendingStops += n
}

func (p *ThreadPoolExecutor) killExecution() {
	p.cancel()
	discarded := p.queue.Clear()
	p.queue.Close()
	for _, w := range p.pool {
		w.markDead()
	}
	if len(p.pool) > 0 || discarded > 0 {
		p.logger.Debug("pool killed", "pool", p.name, "workers", len(p.pool), "discarded", discarded-p.pendingStops)
	}
	p.pool = nil
	p.pendingStops = 0
	p.updateGauges()
}

// terminate releases the queue and marks the pool shut down. Called with
// the mutex held once drained reports true. The task context stays live;
// only Kill cancels it.
func (p *ThreadPoolExecutor) terminate() {
	p.queue.Close()
	p.stopped.Set()
	p.updateGauges()
}

// drained reports whether no worker remains and no caller-runs task is
// still in flight.
func (p *ThreadPoolExecutor) drained() bool {
	return len(p.pool) == 0 && p.inlineScheduled == p.inlineCompleted
}

// effectiveLength is the roster size minus workers already told to stop.
func (p *ThreadPoolExecutor) effectiveLength() int {
	return len(p.pool) - p.pendingStops
}

func (p *ThreadPoolExecutor) queueLength() int {
	n := p.queue.Len() - p.pendingStops
	if n < 0 {
		return 0
	}
	return n
}

// unboundedQueue reports whether MaxQueue == 0 means "no bound". Under
// PolicyCallerRuns it means "no waiting room": a task that cannot be
// handed to a worker runs on the caller.
func (p *ThreadPoolExecutor) unboundedQueue() bool {
	return p.maxQueue == 0 && p.policy != PolicyCallerRuns
}

// ensureCapacity decides whether the pool can take one more task, growing
// it if needed. Outstanding tasks are those scheduled but not yet
// completed, so a task is only counted as waiting when no worker is free
// to take it.
func (p *ThreadPoolExecutor) ensureCapacity() bool {
	length := p.effectiveLength()
	outstanding := int(p.scheduled - p.completed)

	switch {
	case length < p.minLength:
		p.spawn(p.minLength - length)
		return true
	case outstanding < length:
		return true
	case length == 0:
		p.spawn(1)
		return true
	case length < p.maxLength:
		p.spawn(1)
		return true
	case p.unboundedQueue():
		return true
	default:
		return outstanding-length < p.maxQueue
	}
}

func (p *ThreadPoolExecutor) spawn(n int) {
	for i := 0; i < n; i++ {
		p.nextID++
		w := newWorker(p.nextID, p)
		p.pool = append(p.pool, w)
		w.start()
	}
	if len(p.pool) > p.largestLength {
		p.largestLength = len(p.pool)
	}
}

// prunePool drops dead workers and asks workers idle for longer than the
// idle time to stop, never going below the minimum. It runs at most once
// per GC interval.
func (p *ThreadPoolExecutor) prunePool(now time.Time) {
	if now.Sub(p.lastGC) < p.gcInterval {
		return
	}
	p.lastGC = now

	live := p.pool[:0]
	for _, w := range p.pool {
		if !w.Dead() {
			live = append(live, w)
		}
	}
	for i := len(live); i < len(p.pool); i++ {
		p.pool[i] = nil
	}
	p.pool = live

	if p.idleTime <= 0 {
		return
	}
	for _, w := range p.pool {
		if p.effectiveLength() <= p.minLength {
			break
		}
		if w.idleSince(now, p.idleTime) {
			p.queue.TryPush(stopItem)
			p.pendingStops++
		}
	}
}

func (p *ThreadPoolExecutor) removeWorker(w *worker) bool {
	for i, candidate := range p.pool {
		if candidate == w {
			last := len(p.pool) - 1
			p.pool[i] = p.pool[last]
			p.pool[last] = nil
			p.pool = p.pool[:last]
			return true
		}
	}
	return false
}

// onWorkerExit is called by a worker whose loop has ended, either on a
// stop item or because the queue was closed.
func (p *ThreadPoolExecutor) onWorkerExit(w *worker, stopItem bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.removeWorker(w) && stopItem && p.pendingStops > 0 {
		p.pendingStops--
	}
	if !p.IsRunning() && p.drained() && !p.stopped.IsSet() {
		p.terminate()
		return
	}
	p.updateGauges()
}

// onWorkerIdle is called by a worker that waited the full idle time
// without receiving work. It reports whether the worker may exit; if so the
// worker has already been removed from the roster.
func (p *ThreadPoolExecutor) onWorkerIdle(w *worker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.IsRunning() || p.effectiveLength() <= p.minLength || p.queueLength() > 0 {
		return false
	}
	if !w.idleSince(p.clock.Now(), p.idleTime) {
		return false
	}
	if !p.removeWorker(w) {
		return false
	}
	w.markDead()
	p.updateGauges()
	return true
}

func (p *ThreadPoolExecutor) onEndTask(w *worker, duration time.Duration, err error) {
	logTaskResult(p.logger, p.name, w.id, duration, err)

	p.mu.Lock()
	p.completed++
	p.updateGauges()
	p.mu.Unlock()

	p.metrics.finished(duration, err)
}

func (p *ThreadPoolExecutor) updateGauges() {
	if !p.metrics.enabled() {
		return
	}
	p.metrics.gauges(len(p.pool), p.largestLength, p.queueLength(), p.activeCount())
}

func (p *ThreadPoolExecutor) activeCount() int {
	n := 0
	for _, w := range p.pool {
		if w.Status() == WorkerRunning {
			n++
		}
	}
	return n
}

// CanOverflow reports whether a task can hit the overflow policy.
func (p *ThreadPoolExecutor) CanOverflow() bool {
	return !p.unboundedQueue()
}

// Serialized reports whether tasks run one at a time in submission order.
// Caller-runs overflow breaks ordering, so such pools are never serialized.
func (p *ThreadPoolExecutor) Serialized() bool {
	return p.maxLength == 1 && p.policy != PolicyCallerRuns
}

// Name returns the pool name.
func (p *ThreadPoolExecutor) Name() string {
	return p.name
}

// Length returns the number of workers in the roster.
func (p *ThreadPoolExecutor) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pool)
}

// QueueLength returns the number of tasks waiting for a worker.
func (p *ThreadPoolExecutor) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueLength()
}

// RemainingCapacity returns how many more tasks the queue can hold, or -1
// if it is unbounded. A caller-runs pool with MaxQueue 0 hands tasks
// straight to workers and has no waiting room, so it reports 0.
func (p *ThreadPoolExecutor) RemainingCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remainingCapacity()
}

func (p *ThreadPoolExecutor) remainingCapacity() int {
	if p.unboundedQueue() {
		return -1
	}
	if n := p.maxQueue - p.queueLength(); n > 0 {
		return n
	}
	return 0
}

// ScheduledTaskCount returns the number of tasks ever accepted, including
// tasks run on the caller by the caller-runs policy.
func (p *ThreadPoolExecutor) ScheduledTaskCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled + p.inlineScheduled
}

// CompletedTaskCount returns the number of tasks that have finished,
// successfully or not. Tasks discarded or abandoned by Kill never count.
func (p *ThreadPoolExecutor) CompletedTaskCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed + p.inlineCompleted
}

// LargestLength returns the largest roster size seen.
func (p *ThreadPoolExecutor) LargestLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.largestLength
}

// ActiveCount returns the number of workers currently running a task.
func (p *ThreadPoolExecutor) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeCount()
}

// Status returns the state of every worker in the roster.
func (p *ThreadPoolExecutor) Status() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make([]string, len(p.pool))
	for i, w := range p.pool {
		status[i] = w.Status()
	}
	return status
}

// MinLength returns the configured minimum number of workers.
func (p *ThreadPoolExecutor) MinLength() int { return p.minLength }

// MaxLength returns the configured maximum number of workers.
func (p *ThreadPoolExecutor) MaxLength() int { return p.maxLength }

// IdleTime returns the idle reclamation threshold.
func (p *ThreadPoolExecutor) IdleTime() time.Duration { return p.idleTime }

// MaxQueue returns the configured queue bound.
func (p *ThreadPoolExecutor) MaxQueue() int { return p.maxQueue }

// OverflowPolicy returns the configured overflow policy.
func (p *ThreadPoolExecutor) OverflowPolicy() OverflowPolicy { return p.policy }

// Stats is a point-in-time view of a pool.
type Stats struct {
	Name               string         `json:"name" yaml:"name"`
	State              string         `json:"state" yaml:"state"`
	Length             int            `json:"length" yaml:"length"`
	LargestLength      int            `json:"largest_length" yaml:"largest_length"`
	ActiveCount        int            `json:"active_count" yaml:"active_count"`
	QueueLength        int            `json:"queue_length" yaml:"queue_length"`
	RemainingCapacity  int            `json:"remaining_capacity" yaml:"remaining_capacity"`
	ScheduledTaskCount int64          `json:"scheduled_task_count" yaml:"scheduled_task_count"`
	CompletedTaskCount int64          `json:"completed_task_count" yaml:"completed_task_count"`
	MinLength          int            `json:"min_length" yaml:"min_length"`
	MaxLength          int            `json:"max_length" yaml:"max_length"`
	IdleTime           time.Duration  `json:"idle_time" yaml:"idle_time"`
	MaxQueue           int            `json:"max_queue" yaml:"max_queue"`
	OverflowPolicy     OverflowPolicy `json:"overflow_policy" yaml:"overflow_policy"`
}

// Stats returns a consistent snapshot of the pool counters.
func (p *ThreadPoolExecutor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Name:               p.name,
		State:              p.State(),
		Length:             len(p.pool),
		LargestLength:      p.largestLength,
		ActiveCount:        p.activeCount(),
		QueueLength:        p.queueLength(),
		RemainingCapacity:  p.remainingCapacity(),
		ScheduledTaskCount: p.scheduled + p.inlineScheduled,
		CompletedTaskCount: p.completed + p.inlineCompleted,
		MinLength:          p.minLength,
		MaxLength:          p.maxLength,
		IdleTime:           p.idleTime,
		MaxQueue:           p.maxQueue,
		OverflowPolicy:     p.policy,
	}
}

var _ Executor = (*ThreadPoolExecutor)(nil)
