package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/goexec/internal/config"
	"github.com/vnykmshr/goexec/internal/output"
	"github.com/vnykmshr/goexec/pkg/metrics"
	"github.com/vnykmshr/goexec/pkg/report"
	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
	"github.com/vnykmshr/goexec/pkg/scheduling/scheduler"
)

type runOptions struct {
	root     *rootOptions
	jobsPath string
	wide     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{root: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job file through a thread pool",
		Long: `Run every job in a job file on a thread pool and print a summary.

Jobs without a delay are posted immediately; delayed jobs are posted by a
scheduler. Once every job has finished (or on interrupt) the pool is shut
down, given --grace to drain and killed if it does not.`,
		Example: `  goexec run --jobs jobs.yaml
  goexec run --jobs jobs.yaml --max-threads 4 --max-queue 10 --overflow-policy caller_runs
  goexec run --jobs jobs.yaml --metrics-addr :9090 --redis-addr localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.jobsPath, "jobs", "j", "", "job file (YAML)")
	f.BoolVarP(&opts.wide, "wide", "w", false, "show job errors in the summary table")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.String("redis-addr", "", "publish pool status to this Redis server")
	f.Duration("report-interval", 0, "interval between status reports")
	f.Duration("grace", 0, "time allowed for queued jobs to drain at shutdown")
	_ = cmd.MarkFlagRequired("jobs")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := o.root.loadConfig(cmd)
	if err != nil {
		return err
	}
	jobs, err := config.LoadJobs(o.jobsPath)
	if err != nil {
		return err
	}

	var registry *metrics.Registry
	if cfg.Metrics.Addr != "" {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = metrics.NewRegistryFromConfig(metrics.Config{
			Enabled:   true,
			Registry:  promReg,
			Namespace: cfg.Metrics.Namespace,
		})

		srv, err := serveMetrics(cfg.Metrics, promReg, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	execCfg, err := cfg.Pool.ExecutorConfig(logger, registry)
	if err != nil {
		return err
	}
	pool, err := executor.NewThreadPoolExecutor(execCfg)
	if err != nil {
		return err
	}

	runner := newJobRunner(jobs, logger)

	sched, err := scheduler.NewWithConfig(scheduler.Config{
		Executor:      pool,
		Name:          cfg.Pool.Name,
		Logger:        logger,
		Metrics:       registry,
		OnPostFailure: runner.rejectByName,
	})
	if err != nil {
		pool.Kill()
		return err
	}
	if err := sched.Start(); err != nil {
		pool.Kill()
		return err
	}

	var reporter report.Reporter
	reportsDone := make(chan struct{})
	reportCtx, stopReports := context.WithCancel(ctx)
	defer stopReports()

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		rr, err := report.NewRedisReporter(report.RedisConfig{
			Client:  client,
			Prefix:  cfg.Redis.Prefix,
			TTL:     cfg.Redis.TTL,
			Metrics: registry,
		})
		if err != nil {
			<-sched.Stop()
			pool.Kill()
			return err
		}
		reporter = rr
		logger.Info("reporting pool status", "redis", cfg.Redis.Addr, "key", rr.Key(pool.Name()))
	}

	if reporter != nil && cfg.Redis.Interval > 0 {
		go func() {
			defer close(reportsDone)
			report.Periodic(reportCtx, pool, reporter, cfg.Redis.Interval, logger)
		}()
	} else {
		close(reportsDone)
	}

	logger.Info("running jobs",
		"pool", pool.Name(),
		"jobs", len(jobs),
		"max_threads", pool.MaxLength(),
		"max_queue", pool.MaxQueue(),
		"overflow_policy", pool.OverflowPolicy())

	for i, job := range jobs {
		task := runner.task(i)
		if job.Delay > 0 {
			if err := sched.ScheduleAfter(job.Name, task, job.Delay); err != nil {
				runner.reject(i, err)
			}
			continue
		}
		if ok, err := pool.Post(task); !ok {
			runner.reject(i, err)
		}
	}

	select {
	case <-runner.Done():
	case <-ctx.Done():
		logger.Warn("interrupted, killing pool")
	}

	<-sched.Stop()
	graceful, err := report.Handshake(ctx, pool, reporter, cfg.Shutdown.Grace)
	if err != nil {
		logger.Warn("final status report failed", "error", err)
	}
	if !graceful {
		logger.Warn("pool did not drain in time and was killed", "grace", cfg.Shutdown.Grace)
	}

	stopReports()
	<-reportsDone

	results := runner.Results()
	renderer := output.NewRenderer(cmd.OutOrStdout(), o.root.noColor, o.wide)
	renderer.RenderResults(results)
	renderer.RenderStats(pool.Stats())

	summary := output.Summarize(results)
	if bad := summary.Total - summary.Succeeded; bad > 0 {
		return fmt.Errorf("%d of %d jobs did not succeed", bad, summary.Total)
	}
	return nil
}

func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String(), "path", cfg.Path)
	return srv, nil
}
