// Package config loads the claudelytics settings file and applies .env and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/analytics"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/engine"
	"github.com/zhaobenny/claudelytics/internal/logger"
)

// FileName is the settings file under the user's home directory
const FileName = ".claudelytics.yaml"

// Environment overrides
const (
	EnvPath         = "CLAUDELYTICS_PATH"
	EnvPricingFile  = "CLAUDELYTICS_PRICING_FILE"
	EnvDailyLimit   = "CLAUDELYTICS_DAILY_LIMIT"
	EnvMonthlyLimit = "CLAUDELYTICS_MONTHLY_LIMIT"
	EnvStore        = "CLAUDELYTICS_STORE"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputCSV   = "csv"
)

const (
	defaultWatchInterval = 5 * time.Second
	defaultDateFormat    = "2006-01-02"
)

// Config holds the CLI configuration
type Config struct {
	ClaudePath     string                 `yaml:"claude_path,omitempty"`
	DefaultOutput  string                 `yaml:"default_output"`
	DefaultCommand string                 `yaml:"default_command"`
	WatchInterval  time.Duration          `yaml:"watch_interval"`
	ExportDir      string                 `yaml:"export_dir,omitempty"`
	DateFormat     string                 `yaml:"date_format"`
	PricingFile    string                 `yaml:"pricing_file,omitempty"`
	BlockHours     int                    `yaml:"block_hours"`
	Budget         analytics.BudgetConfig `yaml:"budget"`
	TokenLimit     *int64                 `yaml:"token_limit,omitempty"`
	CostLimit      *float64               `yaml:"cost_limit,omitempty"`
	Workers        int                    `yaml:"workers"`
	StorePath      string                 `yaml:"store_path,omitempty"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		DefaultOutput:  OutputTable,
		DefaultCommand: "daily",
		WatchInterval:  defaultWatchInterval,
		DateFormat:     defaultDateFormat,
		BlockHours:     aggregator.DefaultBlockHours,
		Budget:         analytics.DefaultBudgetConfig(),
	}
}

// Path returns the path to the config file
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, FileName), nil
}

// Load reads the config file, then .env in the working directory, then the
// environment. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "locate config", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	loadDotEnv(".env")
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// loadDotEnv exports the variables of an optional .env file. A missing file
// is normal; a malformed one is reported and skipped.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("ignoring malformed .env file", "path", path, "error", err)
	}
}

// LoadFile reads a config file over the defaults without consulting the
// environment
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, apperr.WithPath(apperr.KindIO, "read config", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.WithPath(apperr.KindConfig, "parse config", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return apperr.New(apperr.KindConfig, "locate config", err)
	}
	return SaveFile(path, cfg)
}

// SaveFile writes the config readable by the owner only
func SaveFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return apperr.WithPath(apperr.KindIO, "write config", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPath); ok && v != "" {
		c.ClaudePath = v
	}
	if v, ok := lookup(EnvPricingFile); ok && v != "" {
		c.PricingFile = v
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.StorePath = v
	}
	limits := []struct {
		key string
		dst **float64
	}{
		{EnvDailyLimit, &c.Budget.DailyLimit},
		{EnvMonthlyLimit, &c.Budget.MonthlyLimit},
	}
	for _, l := range limits {
		v, ok := lookup(l.key)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperr.Newf(apperr.KindConfig, "environment", "%s: %q is not a number", l.key, v)
		}
		*l.dst = &f
	}
	return nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return apperr.Newf(apperr.KindConfig, "validate config", format, args...)
	}
	switch c.DefaultOutput {
	case OutputTable, OutputJSON, OutputCSV:
	default:
		return bad("default_output %q must be table, json or csv", c.DefaultOutput)
	}
	if c.WatchInterval <= 0 {
		return bad("watch_interval must be positive, got %s", c.WatchInterval)
	}
	if c.BlockHours < 1 || c.BlockHours > 24 {
		return bad("block_hours must be between 1 and 24, got %d", c.BlockHours)
	}
	if t := c.Budget.AlertThreshold; t <= 0 || t > 1 {
		return bad("budget.alert_threshold must be in (0, 1], got %g", t)
	}
	for name, v := range map[string]*float64{
		"budget.daily_limit":   c.Budget.DailyLimit,
		"budget.monthly_limit": c.Budget.MonthlyLimit,
		"budget.yearly_limit":  c.Budget.YearlyLimit,
		"cost_limit":           c.CostLimit,
	} {
		if v != nil && *v < 0 {
			return bad("%s must not be negative, got %g", name, *v)
		}
	}
	if c.TokenLimit != nil && *c.TokenLimit < 0 {
		return bad("token_limit must not be negative, got %d", *c.TokenLimit)
	}
	if c.Workers < 0 || c.Workers > engine.MaxWorkers {
		return bad("workers must be between 0 and %d, got %d", engine.MaxWorkers, c.Workers)
	}
	return nil
}

// BlockConfig returns the session block settings
func (c *Config) BlockConfig() aggregator.BlockConfig {
	return aggregator.BlockConfig{Hours: c.BlockHours, TokenLimit: c.TokenLimit, CostLimit: c.CostLimit}
}

type setter func(c *Config, v string) error

func floatPtr(dst func(*Config) **float64) setter {
	return func(c *Config, v string) error {
		if v == "" {
			*dst(c) = nil
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = &f
		return nil
	}
}

func intValue(dst func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func stringValue(dst func(*Config) *string) setter {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

var setters = map[string]setter{
	"claude_path":     stringValue(func(c *Config) *string { return &c.ClaudePath }),
	"default_output":  stringValue(func(c *Config) *string { return &c.DefaultOutput }),
	"default_command": stringValue(func(c *Config) *string { return &c.DefaultCommand }),
	"export_dir":      stringValue(func(c *Config) *string { return &c.ExportDir }),
	"date_format":     stringValue(func(c *Config) *string { return &c.DateFormat }),
	"pricing_file":    stringValue(func(c *Config) *string { return &c.PricingFile }),
	"store_path":      stringValue(func(c *Config) *string { return &c.StorePath }),
	"block_hours":     intValue(func(c *Config) *int { return &c.BlockHours }),
	"workers":         intValue(func(c *Config) *int { return &c.Workers }),
	"watch_interval": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.WatchInterval = d
		return nil
	},
	"budget.alert_threshold": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Budget.AlertThreshold = f
		return nil
	},
	"budget.daily_limit":   floatPtr(func(c *Config) **float64 { return &c.Budget.DailyLimit }),
	"budget.monthly_limit": floatPtr(func(c *Config) **float64 { return &c.Budget.MonthlyLimit }),
	"budget.yearly_limit":  floatPtr(func(c *Config) **float64 { return &c.Budget.YearlyLimit }),
	"cost_limit":           floatPtr(func(c *Config) **float64 { return &c.CostLimit }),
	"token_limit": func(c *Config, v string) error {
		if v == "" {
			c.TokenLimit = nil
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.TokenLimit = &n
		return nil
	},
}

// Keys lists the settable keys in sorted order
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one key from its string form and revalidates. An empty value
// clears optional limits.
func (c *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(key)]
	if !ok {
		return apperr.Newf(apperr.KindConfig, "set config", "unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *c
	if err := set(&next, strings.TrimSpace(value)); err != nil {
		return apperr.Newf(apperr.KindConfig, "set config", "%s: %v", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
