// Package config loads goexec settings from a YAML file, GOEXEC_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/goexec/pkg/metrics"
	"github.com/vnykmshr/goexec/pkg/scheduling/executor"
)

// EnvPrefix is prepended to every environment override, e.g.
// GOEXEC_POOL_MAX_THREADS.
const EnvPrefix = "GOEXEC"

// Config is the effective goexec configuration.
type Config struct {
	Pool     PoolConfig     `mapstructure:"pool"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
}

// PoolConfig mirrors executor.Config with string-typed policy.
type PoolConfig struct {
	Name           string        `mapstructure:"name"`
	MinThreads     int           `mapstructure:"min_threads"`
	MaxThreads     int           `mapstructure:"max_threads"`
	IdleTime       time.Duration `mapstructure:"idle_time"`
	MaxQueue       int           `mapstructure:"max_queue"`
	OverflowPolicy string        `mapstructure:"overflow_policy"`
	GCInterval     time.Duration `mapstructure:"gc_interval"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr      string `mapstructure:"addr"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// RedisConfig controls status reporting. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Interval time.Duration `mapstructure:"interval"`
}

// ShutdownConfig bounds the drain at the end of a run.
type ShutdownConfig struct {
	Grace time.Duration `mapstructure:"grace"`
}

// Loader resolves a Config from its sources.
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a loader. configPath may be empty.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	setDefaults(v)
	return &Loader{
		configPath: configPath,
		viper:      v,
	}
}

func setDefaults(v *viper.Viper) {
	pool := executor.DefaultConfig()
	v.SetDefault("pool.name", "goexec")
	v.SetDefault("pool.min_threads", pool.MinThreads)
	v.SetDefault("pool.max_threads", 8)
	v.SetDefault("pool.idle_time", pool.IdleTime)
	v.SetDefault("pool.max_queue", pool.MaxQueue)
	v.SetDefault("pool.overflow_policy", pool.OverflowPolicy.String())
	v.SetDefault("pool.gc_interval", pool.GCInterval)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "goexec")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "goexec")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("redis.interval", 10*time.Second)

	v.SetDefault("shutdown.grace", 30*time.Second)
}

// BindFlag makes a command-line flag override the given key.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind for %s", key)
	}
	return l.viper.BindPFlag(key, flag)
}

// Load reads the config file (if any), applies environment overrides and
// validates the result.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		l.viper.SetConfigFile(l.configPath)
		if err := l.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
			}
		}
	}

	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := cfg.Pool.ExecutorConfig(nil, nil); err != nil {
		return nil, err
	}
	if cfg.Redis.Interval < 0 {
		return nil, fmt.Errorf("redis.interval must not be negative, got %s", cfg.Redis.Interval)
	}
	if cfg.Shutdown.Grace < 0 {
		return nil, fmt.Errorf("shutdown.grace must not be negative, got %s", cfg.Shutdown.Grace)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

// ExecutorConfig converts the pool section into a validated executor.Config.
func (p PoolConfig) ExecutorConfig(logger *slog.Logger, registry *metrics.Registry) (executor.Config, error) {
	policy, err := executor.ParseOverflowPolicy(p.OverflowPolicy)
	if err != nil {
		return executor.Config{}, err
	}

	cfg := executor.Config{
		Name:           p.Name,
		MinThreads:     p.MinThreads,
		MaxThreads:     p.MaxThreads,
		IdleTime:       p.IdleTime,
		MaxQueue:       p.MaxQueue,
		OverflowPolicy: policy,
		GCInterval:     p.GCInterval,
		Logger:         logger,
		Metrics:        registry,
	}
	if err := cfg.Validate(); err != nil {
		return executor.Config{}, err
	}
	return cfg, nil
}

type renderedConfig struct {
	Pool struct {
		Name           string `yaml:"name"`
		MinThreads     int    `yaml:"min_threads"`
		MaxThreads     int    `yaml:"max_threads"`
		IdleTime       string `yaml:"idle_time"`
		MaxQueue       int    `yaml:"max_queue"`
		OverflowPolicy string `yaml:"overflow_policy"`
		GCInterval     string `yaml:"gc_interval"`
	} `yaml:"pool"`
	Metrics struct {
		Addr      string `yaml:"addr"`
		Path      string `yaml:"path"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		TTL      string `yaml:"ttl"`
		Interval string `yaml:"interval"`
	} `yaml:"redis"`
	Shutdown struct {
		Grace string `yaml:"grace"`
	} `yaml:"shutdown"`
}

// Render writes cfg as YAML. Durations are written in time.Duration notation
// and the Redis password is omitted.
func Render(w io.Writer, cfg *Config) error {
	var out renderedConfig

	out.Pool.Name = cfg.Pool.Name
	out.Pool.MinThreads = cfg.Pool.MinThreads
	out.Pool.MaxThreads = cfg.Pool.MaxThreads
	out.Pool.IdleTime = cfg.Pool.IdleTime.String()
	out.Pool.MaxQueue = cfg.Pool.MaxQueue
	out.Pool.OverflowPolicy = cfg.Pool.OverflowPolicy
	out.Pool.GCInterval = cfg.Pool.GCInterval.String()

	out.Metrics.Addr = cfg.Metrics.Addr
	out.Metrics.Path = cfg.Metrics.Path
	out.Metrics.Namespace = cfg.Metrics.Namespace

	out.Redis.Addr = cfg.Redis.Addr
	out.Redis.DB = cfg.Redis.DB
	out.Redis.Prefix = cfg.Redis.Prefix
	out.Redis.TTL = cfg.Redis.TTL.String()
	out.Redis.Interval = cfg.Redis.Interval.String()

	out.Shutdown.Grace = cfg.Shutdown.Grace.String()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}
