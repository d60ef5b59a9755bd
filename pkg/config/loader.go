package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override
// configuration keys in LoadWithViper, e.g. RESERVOIR_LOGGING_LEVEL.
const EnvPrefix = "RESERVOIR"

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// LoadFile loads a Config from a YAML file on top of the defaults and
// validates it.
func LoadFile(filePath string) (*Config, error) {
	cfg := NewConfig("reservoir")
	cfg.Pools = nil
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadWithViper loads a Config through viper: defaults, then the YAML file at
// filePath when non-empty (with ${VAR_NAME} substitution), then RESERVOIR_*
// environment variables. Only
// scalar keys can be overridden from the environment; pools come from the
// file or the defaults.
func LoadWithViper(filePath string) (*Config, error) {
	defaults := NewConfig("reservoir")

	v := viper.New()
	setDefaults(v, defaults)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg := defaults
	if v.IsSet("pools") {
		cfg.Pools = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("name", c.Name)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.development", c.Logging.Development)
	v.SetDefault("logging.encoding", c.Logging.Encoding)

	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.listen", c.Metrics.Listen)

	v.SetDefault("tracing.enabled", c.Tracing.Enabled)
	v.SetDefault("tracing.service_name", c.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", c.Tracing.SampleRate)
	v.SetDefault("tracing.pretty", c.Tracing.Pretty)

	v.SetDefault("workload.steps", c.Workload.Steps)
	v.SetDefault("workload.seed", c.Workload.Seed)
	v.SetDefault("workload.weights.acquire", c.Workload.Weights.Acquire)
	v.SetDefault("workload.weights.release", c.Workload.Weights.Release)
	v.SetDefault("workload.weights.release_random", c.Workload.Weights.ReleaseRandom)
	v.SetDefault("workload.weights.release_all", c.Workload.Weights.ReleaseAll)
	v.SetDefault("workload.weights.clear", c.Workload.Weights.Clear)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
