// Package cli implements the goexec command line.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vnykmshr/goexec/internal/config"
)

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// flagKeys maps command-line flags to configuration keys. Flags a command
// does not define are skipped when binding.
var flagKeys = map[string]string{
	"name":            "pool.name",
	"min-threads":     "pool.min_threads",
	"max-threads":     "pool.max_threads",
	"max-queue":       "pool.max_queue",
	"idle-time":       "pool.idle_time",
	"overflow-policy": "pool.overflow_policy",
	"metrics-addr":    "metrics.addr",
	"redis-addr":      "redis.addr",
	"report-interval": "redis.interval",
	"grace":           "shutdown.grace",
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "goexec",
		Short: "goexec - run jobs through a bounded thread pool",
		Long: `goexec runs commands from a job file on a thread pool that grows on
demand up to a maximum size, queues or rejects overflow according to a
policy and reclaims idle workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output with debug logging")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.String("name", "", "pool name")
	pf.Int("min-threads", 0, "workers kept alive when idle")
	pf.Int("max-threads", 0, "maximum number of workers")
	pf.Int("max-queue", 0, "maximum queued tasks (0 = unbounded)")
	pf.Duration("idle-time", 0, "idle time before a worker is reclaimed")
	pf.String("overflow-policy", "", "abort, discard or caller_runs")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig resolves the effective configuration for cmd.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader(o.configPath)

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = loader.BindFlag(key, f)
	})
	if bindErr != nil {
		return nil, bindErr
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		slog.Debug("loaded configuration", "file", used)
	}
	return cfg, nil
}

// setupLogging configures structured logging with slog
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	slog.Debug("verbose logging enabled")
}
