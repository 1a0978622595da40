package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vnykmshr/goexec/internal/config"
	"github.com/vnykmshr/goexec/internal/output"
	gfcontext "github.com/vnykmshr/goexec/pkg/common/context"
	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
)

var errDropped = errors.New("dropped by overflow policy")

// jobRunner turns job definitions into executor tasks and collects their
// results. Every job is finished exactly once.
type jobRunner struct {
	jobs   []config.Job
	index  map[string]int
	logger *slog.Logger

	mu        sync.Mutex
	results   []output.JobResult
	finished  []bool
	remaining int
	done      chan struct{}
}

func newJobRunner(jobs []config.Job, logger *slog.Logger) *jobRunner {
	r := &jobRunner{
		jobs:      jobs,
		index:     make(map[string]int, len(jobs)),
		logger:    logger,
		results:   make([]output.JobResult, len(jobs)),
		finished:  make([]bool, len(jobs)),
		remaining: len(jobs),
		done:      make(chan struct{}),
	}
	for i, job := range jobs {
		r.index[job.Name] = i
		r.results[i] = output.JobResult{Name: job.Name, Status: output.StatusNotRun}
	}
	if len(jobs) == 0 {
		close(r.done)
	}
	return r
}

// Done is closed once every job has a final result.
func (r *jobRunner) Done() <-chan struct{} {
	return r.done
}

// Results returns a copy of the current results in job order.
func (r *jobRunner) Results() []output.JobResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]output.JobResult(nil), r.results...)
}

func (r *jobRunner) finish(i int, res output.JobResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished[i] {
		return
	}
	r.finished[i] = true
	r.results[i] = res
	r.remaining--
	if r.remaining == 0 {
		close(r.done)
	}
}

// reject records that job i was never accepted by the pool.
func (r *jobRunner) reject(i int, err error) {
	if err == nil {
		err = errDropped
	}
	r.logger.Warn("job not accepted", "job", r.jobs[i].Name, "error", err)
	r.finish(i, output.JobResult{
		Name:   r.jobs[i].Name,
		Status: output.StatusRejected,
		Err:    err,
	})
}

// rejectByName adapts reject to the scheduler's post-failure callback.
func (r *jobRunner) rejectByName(name string, err error) {
	if i, ok := r.index[name]; ok {
		r.reject(i, err)
	}
}

// task returns the executor task running job i.
func (r *jobRunner) task(i int) executor.Task {
	job := r.jobs[i]

	return executor.TaskFunc(func(ctx context.Context) error {
		jobCtx, cancel := gfcontext.WithOptionalTimeout(ctx, job.Timeout)
		defer cancel()

		var out bytes.Buffer
		cmd := exec.CommandContext(jobCtx, job.Command, job.Args...)
		cmd.Stdout = &out
		cmd.Stderr = &out

		start := time.Now()
		err := cmd.Run()
		res := output.JobResult{
			Name:     job.Name,
			Status:   output.StatusSucceeded,
			Duration: time.Since(start),
		}

		if err != nil {
			res.Status = output.StatusFailed
			res.ExitCode = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitCode()
			}
			if gfcontext.IsTimedOut(jobCtx) {
				err = fmt.Errorf("timed out after %s: %w", job.Timeout, err)
			}
			res.Err = err
		}

		r.logger.Debug("job finished",
			"job", job.Name,
			"status", res.Status,
			"exit_code", res.ExitCode,
			"duration", res.Duration,
			"output", strings.TrimSpace(out.String()))

		r.finish(i, res)
		return res.Err
	})
}
