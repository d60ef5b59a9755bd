// Package config provides the configuration system for reservoir.
// It defines a single Config structure that the CLI and the workload driver
// use, organized into logical sections:
//   - Logging: Level, encoding and outputs of the global zap logger
//   - Metrics: Prometheus collection and the exposition address
//   - Tracing: OpenTelemetry tracing for workload runs
//   - Pools: One entry per pool, mirroring pool.Settings
//   - Workload: The seeded operation mix driven against each pool
//
// Example usage:
//
//	cfg := config.NewConfig("demo")
//	cfg.Pools[0].MaxSize = 32
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/reservoirerrors"
)

// Item kinds a pool can be configured to hold.
const (
	// ItemKindTracked pools instrumented token items that record every hook.
	ItemKindTracked = "tracked"
	// ItemKindCompressor pools compression encoders.
	ItemKindCompressor = "compressor"
)

// Config is the top-level configuration. Sections are embedded by value so
// a zero section is still usable.
type Config struct {
	// Name identifies the run in logs and traces
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	Logging  LoggingConfig  `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	Pools    []PoolConfig   `yaml:"pools" json:"pools" mapstructure:"pools"`
	Workload WorkloadConfig `yaml:"workload" json:"workload" mapstructure:"workload"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level       string   `yaml:"level" json:"level" mapstructure:"level"`
	Development bool     `yaml:"development" json:"development" mapstructure:"development"`
	// Encoding is json or console
	Encoding    string   `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Listen is the address the metrics handler is served on, empty to disable
	Listen  string `yaml:"listen" json:"listen" mapstructure:"listen"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// SampleRate is the fraction of runs traced (0.0-1.0)
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
	// Pretty indents exported spans
	Pretty      bool    `yaml:"pretty" json:"pretty" mapstructure:"pretty"`
}

// PoolConfig describes one pool. Field semantics match pool.Settings.
type PoolConfig struct {
	Name             string     `yaml:"name" json:"name" mapstructure:"name"`
	Discipline       string     `yaml:"discipline" json:"discipline" mapstructure:"discipline"`
	PrewarmSize      int        `yaml:"prewarm_size" json:"prewarm_size" mapstructure:"prewarm_size"`
	MaxSize          int        `yaml:"max_size" json:"max_size" mapstructure:"max_size"`
	CollectionChecks bool       `yaml:"collection_checks" json:"collection_checks" mapstructure:"collection_checks"`
	Item             ItemConfig `yaml:"item" json:"item" mapstructure:"item"`
}

// ItemConfig selects what the pool holds.
type ItemConfig struct {
	// Kind is tracked or compressor
	Kind      string `yaml:"kind" json:"kind" mapstructure:"kind"`
	// Algorithm and Level apply to compressor items only
	Algorithm string `yaml:"algorithm" json:"algorithm" mapstructure:"algorithm"`
	Level     string `yaml:"level" json:"level" mapstructure:"level"`
}

// WorkloadConfig configures the seeded operation driver.
type WorkloadConfig struct {
	Steps   int           `yaml:"steps" json:"steps" mapstructure:"steps"`
	Seed    uint64        `yaml:"seed" json:"seed" mapstructure:"seed"`
	Weights WeightsConfig `yaml:"weights" json:"weights" mapstructure:"weights"`
}

// WeightsConfig holds the relative frequency of each pool operation.
type WeightsConfig struct {
	Acquire       int `yaml:"acquire" json:"acquire" mapstructure:"acquire"`
	Release       int `yaml:"release" json:"release" mapstructure:"release"`
	ReleaseRandom int `yaml:"release_random" json:"release_random" mapstructure:"release_random"`
	ReleaseAll    int `yaml:"release_all" json:"release_all" mapstructure:"release_all"`
	Clear         int `yaml:"clear" json:"clear" mapstructure:"clear"`
}

// NewConfig creates a Config with sensible defaults and a single tracked
// pool named after the run.
func NewConfig(name string) *Config {
	return &Config{
		Name: name,
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "reservoir",
			SampleRate:  1.0,
		},
		Pools: []PoolConfig{
			NewPoolConfig(name),
		},
		Workload: WorkloadConfig{
			Steps: 10000,
			Seed:  1,
			Weights: WeightsConfig{
				Acquire:       40,
				Release:       30,
				ReleaseRandom: 20,
				ReleaseAll:    5,
				Clear:         5,
			},
		},
	}
}

// NewPoolConfig returns a bounded stack pool of tracked items.
func NewPoolConfig(name string) PoolConfig {
	return PoolConfig{
		Name:        name,
		Discipline:  pool.Stack.String(),
		PrewarmSize: 8,
		MaxSize:     64,
		Item: ItemConfig{
			Kind: ItemKindTracked,
		},
	}
}

// Validate validates the configuration for correctness.
func (c *Config) Validate() error {
	if c.Name == "" {
		return configError("name is required")
	}
	if len(c.Pools) == 0 {
		return configError("at least one pool is required")
	}
	seen := make(map[string]bool, len(c.Pools))
	for i := range c.Pools {
		p := &c.Pools[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return configError("duplicate pool name").WithDetail("pool", p.Name)
		}
		seen[p.Name] = true
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return configError("tracing.sample_rate must be within [0, 1]")
	}
	return c.Workload.Validate()
}

// Validate checks one pool entry, including that its settings would be
// accepted by pool.New.
func (p *PoolConfig) Validate() error {
	if p.Name == "" {
		return configError("pool name is required")
	}
	if _, err := pool.ParseDiscipline(p.Discipline); err != nil {
		return reservoirerrors.Wrap(err, reservoirerrors.ErrorTypeConfig, "invalid pool discipline").
			WithDetail("pool", p.Name)
	}
	if p.PrewarmSize < 0 || p.MaxSize < 0 {
		return configError("pool sizes cannot be negative").WithDetail("pool", p.Name)
	}
	if p.MaxSize > 0 && p.PrewarmSize > p.MaxSize {
		return configError("prewarm_size cannot exceed max_size").
			WithDetail("pool", p.Name).
			WithDetail("prewarm_size", p.PrewarmSize).
			WithDetail("max_size", p.MaxSize)
	}
	switch p.Item.Kind {
	case "", ItemKindTracked, ItemKindCompressor:
	default:
		return configError("unknown item kind").
			WithDetail("pool", p.Name).
			WithDetail("kind", p.Item.Kind)
	}
	return nil
}

// SettingsOptions converts the entry into pool settings options. It assumes
// the entry was validated.
func (p *PoolConfig) SettingsOptions() []pool.SettingsOption {
	discipline, _ := pool.ParseDiscipline(p.Discipline)
	return []pool.SettingsOption{
		pool.WithTemplateName(p.Name),
		pool.WithDiscipline(discipline),
		pool.WithPrewarmSize(p.PrewarmSize),
		pool.WithMaxSize(p.MaxSize),
		pool.WithCollectionChecks(p.CollectionChecks),
	}
}

// Validate checks the workload weights. A workload with no steps needs no
// weights.
func (w *WorkloadConfig) Validate() error {
	if w.Steps < 0 {
		return configError("workload.steps cannot be negative")
	}
	if w.Steps == 0 {
		return nil
	}
	ws := w.Weights
	for _, v := range []int{ws.Acquire, ws.Release, ws.ReleaseRandom, ws.ReleaseAll, ws.Clear} {
		if v < 0 {
			return configError("workload weights cannot be negative")
		}
	}
	if ws.Total() == 0 {
		return configError("workload weights must not all be zero")
	}
	return nil
}

// Total returns the sum of all weights.
func (w WeightsConfig) Total() int {
	return w.Acquire + w.Release + w.ReleaseRandom + w.ReleaseAll + w.Clear
}

// LoggerConfig converts the section to a logger.Config.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		Encoding:    l.Encoding,
		OutputPaths: l.OutputPaths,
	}
}

func configError(msg string) *reservoirerrors.Error {
	return reservoirerrors.New(reservoirerrors.ErrorTypeConfig, msg)
}
