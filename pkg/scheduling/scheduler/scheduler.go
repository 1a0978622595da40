package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
	"github.com/vnykmshr/goexec/pkg/common/validation"
	"github.com/vnykmshr/goexec/pkg/metrics"
	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
)

const (
	module = "scheduler"

	defaultTickInterval = 50 * time.Millisecond
	defaultMaxTasks     = 10000
	maxIDLength         = 255
)

// Entry describes a scheduled task as returned by List.
type Entry struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron tasks
	CronExpr string
	Created  time.Time
	Runs     int
}

// Scheduler hands tasks to an executor at a given time, on an interval or
// on a cron schedule.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, task executor.Task, runAt time.Time) error
	ScheduleAfter(id string, task executor.Task, delay time.Duration) error
	ScheduleRepeating(id string, task executor.Task, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, task executor.Task) error

	// Task management
	Cancel(id string) bool
	CancelAll()
	List() []Entry

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Executor receives due tasks. If nil, the scheduler creates and owns a
	// cached thread pool, which Stop shuts down.
	Executor executor.Executor

	Name         string
	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 50ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 10000)
	Logger       *slog.Logger
	Metrics      *metrics.Registry

	// OnPostFailure, if set, is called when the executor does not accept a
	// due task. err is nil when the task was dropped without an error.
	OnPostFailure func(id string, err error)
}

type scheduledTask struct {
	id           string
	task         executor.Task
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
	runs         int
}

type scheduler struct {
	exec         executor.Executor
	ownExec      bool
	name         string
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	logger       *slog.Logger
	metrics      *metrics.Registry
	onFailure    func(id string, err error)

	mu      sync.RWMutex
	tasks   map[string]*scheduledTask
	done    chan struct{}
	exited  chan struct{}
	running bool
}

// New creates a scheduler with default configuration.
func New() (Scheduler, error) {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	if err := validation.ValidateNonNegativeDuration(module, "tick_interval", cfg.TickInterval); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeInt(module, "max_tasks", cfg.MaxTasks); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "scheduler"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exec := cfg.Executor
	ownExec := false
	if exec == nil {
		pool, err := executor.NewCachedThreadPool(
			executor.WithName(name),
			executor.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		exec = pool
		ownExec = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = defaultTickInterval
	}

	maxTasks := cfg.MaxTasks
	if maxTasks == 0 {
		maxTasks = defaultMaxTasks
	}

	return &scheduler{
		exec:         exec,
		ownExec:      ownExec,
		name:         name,
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		logger:       logger,
		metrics:      cfg.Metrics,
		onFailure:    cfg.OnPostFailure,
		tasks:        make(map[string]*scheduledTask),
	}, nil
}

func validateEntry(id string, task executor.Task) error {
	if err := validation.ValidateNotEmpty(module, "id", id); err != nil {
		return err
	}
	if len(id) > maxIDLength {
		return gferrors.NewValidationError(module, "id", id, "too long").
			WithHint(fmt.Sprintf("use at most %d characters", maxIDLength))
	}
	if task == nil {
		return gferrors.ErrNilTask
	}
	return nil
}

// add registers t. Called with s.mu held.
func (s *scheduler) add(t *scheduledTask) error {
	if _, exists := s.tasks[t.id]; exists {
		return gferrors.NewValidationError(module, "id", t.id, "already scheduled").
			WithHint("use a different ID or cancel the existing task first")
	}
	if len(s.tasks) >= s.maxTasks {
		return gferrors.NewOperationError(module, "Schedule", gferrors.ErrCapacityExceeded).
			WithContext(fmt.Sprintf("maximum of %d tasks", s.maxTasks))
	}
	s.tasks[t.id] = t
	return nil
}

func (s *scheduler) Schedule(id string, task executor.Task, runAt time.Time) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return gferrors.NewValidationError(module, "run_at", runAt, "cannot be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.add(&scheduledTask{
		id:      id,
		task:    task,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, task executor.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task executor.Task, interval time.Duration) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "interval", int(interval)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	return s.add(&scheduledTask{
		id:       id,
		task:     task,
		runAt:    now,
		interval: interval,
		created:  now,
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task executor.Task) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.add(&scheduledTask{
		id:           id,
		task:         task,
		runAt:        schedule.Next(time.Now().In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
		created:      time.Now(),
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*scheduledTask)
}

func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.tasks))
	for _, t := range s.tasks {
		entries = append(entries, Entry{
			ID:       t.id,
			RunAt:    t.runAt,
			Interval: t.interval,
			CronExpr: t.cronExpr,
			Created:  t.created,
			Runs:     t.runs,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RunAt.Equal(entries[j].RunAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].RunAt.Before(entries[j].RunAt)
	})

	return entries
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return gferrors.NewOperationError(module, "Start", fmt.Errorf("already running")).
			WithContext("call Stop() first")
	}
	if !s.exec.IsRunning() {
		return gferrors.NewOperationError(module, "Start", gferrors.ErrClosed).
			WithContext("executor is not running")
	}

	s.running = true
	s.done = make(chan struct{})
	s.exited = make(chan struct{})

	go s.run(s.done, s.exited)
	return nil
}

// Stop halts the tick loop. The returned channel closes once the loop has
// exited and, if the scheduler owns its executor, the executor has drained.
// Tasks already handed to a caller-supplied executor are unaffected.
func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	exited := s.exited
	if s.running {
		s.running = false
		close(s.done)
	}
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if exited != nil {
			<-exited
		}
		if s.ownExec {
			s.exec.Shutdown()
			s.exec.WaitForTermination(0)
		}
	}()

	return stopped
}

func (s *scheduler) run(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			s.processReadyTasks(now)
		}
	}
}

func (s *scheduler) processReadyTasks(now time.Time) {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}

	type due struct {
		*scheduledTask
		dueAt time.Time
	}
	ready := make([]due, 0, len(s.tasks))
	for id, t := range s.tasks {
		if now.Before(t.runAt) {
			continue
		}
		ready = append(ready, due{scheduledTask: t, dueAt: t.runAt})
		t.runs++

		switch {
		case t.interval > 0:
			t.runAt = now.Add(t.interval)
		case t.cronSchedule != nil:
			t.runAt = t.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	// Map iteration order is random; post in due order, ties by ID.
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].dueAt.Equal(ready[j].dueAt) {
			return ready[i].id < ready[j].id
		}
		return ready[i].dueAt.Before(ready[j].dueAt)
	})
	for _, t := range ready {
		s.post(t.scheduledTask)
	}
}

// post hands t to the executor. Failures are logged and counted, never
// retried.
func (s *scheduler) post(t *scheduledTask) {
	ok, err := s.exec.Post(t.task)
	if ok {
		if s.metrics != nil {
			s.metrics.SchedulerFired.WithLabelValues(s.name).Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.SchedulerPostFailed.WithLabelValues(s.name).Inc()
	}
	if s.onFailure != nil {
		s.onFailure(t.id, err)
	}
	if err != nil {
		s.logger.Warn("scheduled task rejected", "scheduler", s.name, "task_id", t.id, "error", err)
		return
	}
	s.logger.Warn("scheduled task dropped", "scheduler", s.name, "task_id", t.id, "executor_running", s.exec.IsRunning())
}
