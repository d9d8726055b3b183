package taskpool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable configuration for a pool plus its optional
// auto-adjust controller, modeled on the teacher's internal/config loading
// idiom. It exists for the demo harness and for embedders who would rather
// describe a pool declaratively than call SetLimits/EnableAutoAdjust by
// hand.
type Config struct {
	// InitialThreads is the worker count passed to New.
	InitialThreads int `yaml:"initial_threads"`
	// MinThreads and MaxThreads override New's defaults (1 and
	// 2*InitialThreads) when non-zero.
	MinThreads int `yaml:"min_threads"`
	MaxThreads int `yaml:"max_threads"`

	// AutoAdjust, when non-nil, is applied via EnableAutoAdjust after
	// the pool is constructed.
	AutoAdjust *AutoAdjustYAML `yaml:"auto_adjust"`

	// LogLevel is passed to internal/poollog.New; empty defers to
	// LOG_LEVEL / INFO default.
	LogLevel string `yaml:"log_level"`

	// MetricsPort, when non-zero, is where the demo harness starts the
	// Prometheus exporter.
	MetricsPort int `yaml:"metrics_port"`
}

// AutoAdjustYAML is AutoAdjustConfig with a YAML-friendly duration field.
type AutoAdjustYAML struct {
	HighWatermark  int    `yaml:"high_watermark"`
	LowWatermark   int    `yaml:"low_watermark"`
	AdjustInterval string `yaml:"adjust_interval"`
}

// Resolve converts an AutoAdjustYAML into an AutoAdjustConfig, parsing
// AdjustInterval with time.ParseDuration.
func (a *AutoAdjustYAML) Resolve() (AutoAdjustConfig, error) {
	interval, err := time.ParseDuration(a.AdjustInterval)
	if err != nil {
		return AutoAdjustConfig{}, fmt.Errorf("%w: invalid adjust_interval %q: %v", ErrInvalidArgument, a.AdjustInterval, err)
	}
	return AutoAdjustConfig{
		HighWatermark:  a.HighWatermark,
		LowWatermark:   a.LowWatermark,
		AdjustInterval: interval,
	}, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.InitialThreads <= 0 {
		return nil, fmt.Errorf("%w: initial_threads must be positive", ErrInvalidArgument)
	}
	return &cfg, nil
}

// NewFromConfig builds a Pool per cfg, applying min/max overrides and
// enabling auto-adjust when configured.
func NewFromConfig(cfg *Config, opts ...Option) (*Pool, error) {
	p, err := New(cfg.InitialThreads, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.MinThreads > 0 || cfg.MaxThreads > 0 {
		min, max := p.minThreads, p.maxThreads
		if cfg.MinThreads > 0 {
			min = cfg.MinThreads
		}
		if cfg.MaxThreads > 0 {
			max = cfg.MaxThreads
		}
		if err := p.SetLimits(min, max); err != nil {
			_ = p.Destroy()
			return nil, err
		}
	}

	if cfg.AutoAdjust != nil {
		aa, err := cfg.AutoAdjust.Resolve()
		if err != nil {
			_ = p.Destroy()
			return nil, err
		}
		if err := p.EnableAutoAdjust(aa); err != nil {
			_ = p.Destroy()
			return nil, err
		}
	}

	return p, nil
}
