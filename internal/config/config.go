// Package config loads shopmem configuration from ~/.shopmem/config.yaml with
// SHOPMEM_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Pricing   PricingConfig   `mapstructure:"pricing" yaml:"pricing"`
	Budget    BudgetConfig    `mapstructure:"budget" yaml:"budget"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LLMConfig configures the Ollama text-generation backend.
type LLMConfig struct {
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model           string        `mapstructure:"model" yaml:"model"`
	Temperature     float64       `mapstructure:"temperature" yaml:"temperature"`
	ContextWindow   int           `mapstructure:"context_window" yaml:"context_window"`
	TopP            float64       `mapstructure:"top_p" yaml:"top_p"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	AvailabilityTTL time.Duration `mapstructure:"availability_ttl" yaml:"availability_ttl"`
}

// PricingConfig configures price checks.
type PricingConfig struct {
	// Source is "jitter" (simulated prices) or "none" (checks report failures).
	Source           string  `mapstructure:"source" yaml:"source"`
	CheckConcurrency int     `mapstructure:"check_concurrency" yaml:"check_concurrency"`
	HostRate         float64 `mapstructure:"host_rate" yaml:"host_rate"`
	HostBurst        int     `mapstructure:"host_burst" yaml:"host_burst"`
}

// BudgetConfig holds defaults for newly created monthly budgets.
type BudgetConfig struct {
	DefaultMonthly   float64 `mapstructure:"default_monthly" yaml:"default_monthly"`
	DefaultThreshold float64 `mapstructure:"default_threshold" yaml:"default_threshold"`
}

// SchedulerConfig holds cron specs for the daemon. Empty disables a job.
// BatchSize caps users per run; 0 means no cap.
type SchedulerConfig struct {
	ConsolidateCron string `mapstructure:"consolidate_cron" yaml:"consolidate_cron"`
	PriceCheckCron  string `mapstructure:"price_check_cron" yaml:"price_check_cron"`
	BatchSize       int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint served by the daemon.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".shopmem")

	endpoint := os.Getenv("OLLAMA_BASE_URL")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}

	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "memory.db"),
		},
		LLM: LLMConfig{
			Endpoint:        endpoint,
			Model:           "llama3.2:3b",
			Temperature:     0.4,
			ContextWindow:   8192,
			TopP:            0.9,
			Timeout:         60 * time.Second,
			AvailabilityTTL: 30 * time.Second,
		},
		Pricing: PricingConfig{
			Source:           "jitter",
			CheckConcurrency: 4,
			HostRate:         1,
			HostBurst:        2,
		},
		Budget: BudgetConfig{
			DefaultMonthly:   10000,
			DefaultThreshold: 0.8,
		},
		Scheduler: SchedulerConfig{
			ConsolidateCron: "0 3 * * *",
			PriceCheckCron:  "0 * * * *",
			BatchSize:       100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// Load reads configuration from ~/.shopmem/config.yaml, creating it with
// defaults if it doesn't exist.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".shopmem", "config.yaml")
}

// LoadFromPath reads configuration from path and merges environment variables.
// If the file doesn't exist, one is written with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: SHOPMEM_PRICING_CHECK_CONCURRENCY
	v.SetEnvPrefix("SHOPMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}

	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("llm.top_p must be in (0,1]")
	}
	if c.LLM.ContextWindow <= 0 {
		return fmt.Errorf("llm.context_window must be positive")
	}

	validSources := map[string]bool{"jitter": true, "none": true}
	if !validSources[c.Pricing.Source] {
		return fmt.Errorf("invalid pricing.source '%s', must be one of: jitter, none", c.Pricing.Source)
	}
	if c.Pricing.CheckConcurrency < 1 {
		return fmt.Errorf("pricing.check_concurrency must be at least 1")
	}
	if c.Pricing.HostRate <= 0 || c.Pricing.HostBurst < 1 {
		return fmt.Errorf("pricing.host_rate must be positive and pricing.host_burst at least 1")
	}

	if c.Budget.DefaultMonthly <= 0 {
		return fmt.Errorf("budget.default_monthly must be positive")
	}
	if c.Budget.DefaultThreshold <= 0 || c.Budget.DefaultThreshold > 1 {
		return fmt.Errorf("budget.default_threshold must be in (0,1]")
	}

	// 0 means every user on each run.
	if c.Scheduler.BatchSize < 0 {
		return fmt.Errorf("scheduler.batch_size must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format '%s', must be 'console' or 'json'", c.Logging.Format)
	}

	return nil
}

// SaveToPath writes the configuration to path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
