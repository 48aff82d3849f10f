package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SITECRAWLER_MAX_DEPTH
const EnvPrefix = "SITECRAWLER"

// Supported output formats
var outputFormats = []string{"txt", "xlsx", "sqlite"}

// Config holds all runtime configuration parameters
type Config struct {
	SeedURL          string   `mapstructure:"seed_url"`
	MaxDepth         int      `mapstructure:"max_depth"`
	MaxPages         int      `mapstructure:"max_pages"`
	OutputFormat     string   `mapstructure:"output_format"`
	OutputRoot       string   `mapstructure:"output_root"`
	RequestTimeoutMs int      `mapstructure:"request_timeout_ms"`
	RetryAttempts    int      `mapstructure:"retry_attempts"`
	RetryDelayMs     int      `mapstructure:"retry_delay_ms"`
	UserAgent        string   `mapstructure:"user_agent"`
	StripParams      []string `mapstructure:"strip_params"`
	ExportEvery      int      `mapstructure:"export_every"`
	MetricsPath      string   `mapstructure:"metrics_path"`
	LogLevel         string   `mapstructure:"log_level"`
	StepPauseMs      int      `mapstructure:"step_pause_ms"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("seed_url", "")
	v.SetDefault("max_depth", -1)
	v.SetDefault("max_pages", -1)
	v.SetDefault("output_format", "txt")
	v.SetDefault("output_root", "output")
	v.SetDefault("request_timeout_ms", 10000)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay_ms", 500)
	v.SetDefault("user_agent", "")
	v.SetDefault("strip_params", []string{"utm_source", "session_id"})
	v.SetDefault("export_every", 1)
	v.SetDefault("metrics_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("step_pause_ms", 0)
}

// Load reads configuration from v. Defaults are registered, environment
// variables are bound, and configPath, when set, is read as a config file.
// Flags should be bound to v by the caller before Load.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validate checks that required fields are present and values are sensible
func validate(cfg *Config) error {
	if cfg.SeedURL == "" {
		return ErrNoSeed
	}
	parsed, err := url.Parse(cfg.SeedURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, cfg.SeedURL)
	}
	if cfg.MaxDepth < -1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, cfg.MaxDepth)
	}
	if cfg.MaxPages != -1 && cfg.MaxPages < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxPages, cfg.MaxPages)
	}
	if !isSupportedFormat(cfg.OutputFormat) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, cfg.OutputFormat, strings.Join(outputFormats, ", "))
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("%w: request_timeout_ms must be >= 1000, got %d", ErrInvalidTimeout, cfg.RequestTimeoutMs)
	}
	if cfg.RetryAttempts < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetries, cfg.RetryAttempts)
	}
	if cfg.ExportEvery < 1 {
		return errors.New("export_every must be >= 1")
	}
	if cfg.StepPauseMs < 0 {
		return errors.New("step_pause_ms must be >= 0")
	}
	return nil
}

func isSupportedFormat(format string) bool {
	for _, f := range outputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// RequestTimeout is the per-request fetch timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// RetryDelay is the base delay between fetch retries
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// StepPause is the pause between traversal steps
func (c *Config) StepPause() time.Duration {
	return time.Duration(c.StepPauseMs) * time.Millisecond
}
