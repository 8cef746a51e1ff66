// Package config turns viper settings into typed configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/engine"
	"github.com/Veraticus/treasury-vouchers/internal/llm"
	"github.com/Veraticus/treasury-vouchers/internal/render"
	"github.com/Veraticus/treasury-vouchers/internal/workflow"
)

// Rule sources.
const (
	RulesFromDefaults = "defaults"
	RulesFromFile     = "file"
	RulesFromDatabase = "database"
)

// Output formats.
const (
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputCSV      = "csv"
)

// Config is the complete application configuration.
type Config struct {
	Logging    LoggingConfig
	Processing ProcessingConfig
	Reference  ReferenceConfig
	Rules      RulesConfig
	Database   DatabaseConfig
	LLM        LLMConfig
	Workflow   workflow.Config
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// ProcessingConfig controls a voucher run.
type ProcessingConfig struct {
	Mode       engine.Mode
	Template   string
	Output     string
	Currency   string
	Department string
	CreatedBy  string
}

// ReferenceConfig locates the reference workbook.
type ReferenceConfig struct {
	Path          string
	SpreadsheetID string
}

// RulesConfig locates the business rules.
type RulesConfig struct {
	Source string
	File   string
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// LLMConfig configures the classification oracle.
type LLMConfig struct {
	llm.Config
	Enabled bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("processing.mode", string(engine.ModePaymentVoucher))
	v.SetDefault("processing.template", render.TemplateStandard)
	v.SetDefault("processing.output", OutputText)
	v.SetDefault("processing.currency", "USD")
	v.SetDefault("processing.department", "Finance")
	v.SetDefault("processing.created_by", "System")

	v.SetDefault("rules.source", RulesFromDefaults)
	v.SetDefault("rules.file", "~/.config/voucher/rules.json")
	v.SetDefault("database.path", "~/.local/share/voucher/voucher.db")

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", llm.DefaultBaseURL)
	v.SetDefault("llm.response_path", llm.DefaultResponsePath)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)

	defaults := workflow.DefaultConfig()
	v.SetDefault("workflow.high_amount_threshold", defaults.HighAmountThreshold.String())
	v.SetDefault("workflow.max_rejections", defaults.MaxRejections)
	v.SetDefault("workflow.overall_timeout_hours", defaults.OverallTimeoutHours)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v. Defaults are applied for unset keys.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	threshold, err := decimal.NewFromString(v.GetString("workflow.high_amount_threshold"))
	if err != nil {
		return nil, fmt.Errorf("%w: workflow.high_amount_threshold: %w", common.ErrInvalidConfig, err)
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Processing: ProcessingConfig{
			Mode:       engine.Mode(v.GetString("processing.mode")),
			Template:   v.GetString("processing.template"),
			Output:     strings.ToLower(v.GetString("processing.output")),
			Currency:   strings.ToUpper(v.GetString("processing.currency")),
			Department: v.GetString("processing.department"),
			CreatedBy:  v.GetString("processing.created_by"),
		},
		Reference: ReferenceConfig{
			Path:          ExpandPath(v.GetString("reference.path")),
			SpreadsheetID: v.GetString("reference.spreadsheet_id"),
		},
		Rules: RulesConfig{
			Source: strings.ToLower(v.GetString("rules.source")),
			File:   ExpandPath(v.GetString("rules.file")),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		LLM: LLMConfig{
			Enabled: v.GetBool("llm.enabled"),
			Config: llm.Config{
				Provider:     v.GetString("llm.provider"),
				BaseURL:      v.GetString("llm.base_url"),
				APIKey:       v.GetString("llm.api_key"),
				Model:        v.GetString("llm.model"),
				ResponsePath: v.GetString("llm.response_path"),
				Timeout:      v.GetDuration("llm.timeout"),
				CacheTTL:     v.GetDuration("llm.cache_ttl"),
				MaxRetries:   v.GetInt("llm.max_retries"),
				RateLimit:    v.GetInt("llm.rate_limit"),
				MaxTokens:    v.GetInt("llm.max_tokens"),
				Temperature:  v.GetFloat64("llm.temperature"),
			},
		},
		Workflow: workflow.Config{
			HighAmountThreshold: threshold,
			MaxRejections:       v.GetInt("workflow.max_rejections"),
			OverallTimeoutHours: v.GetInt("workflow.overall_timeout_hours"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := engine.PolicyFor(string(c.Processing.Mode)); err != nil {
		return fmt.Errorf("%w: processing.mode: %w", common.ErrInvalidConfig, err)
	}
	if _, err := render.TemplateFor(c.Processing.Template); err != nil {
		return fmt.Errorf("%w: processing.template: %w", common.ErrInvalidConfig, err)
	}
	switch c.Processing.Output {
	case OutputText, OutputMarkdown, OutputCSV:
	default:
		return fmt.Errorf("%w: processing.output %q (want text, markdown or csv)", common.ErrInvalidConfig, c.Processing.Output)
	}
	switch c.Rules.Source {
	case RulesFromDefaults, RulesFromFile, RulesFromDatabase:
	default:
		return fmt.Errorf("%w: rules.source %q (want defaults, file or database)", common.ErrInvalidConfig, c.Rules.Source)
	}
	if c.Rules.Source == RulesFromFile && c.Rules.File == "" {
		return fmt.Errorf("%w: rules.file is required when rules.source is file", common.ErrMissingConfig)
	}
	if c.Workflow.MaxRejections < 1 {
		return fmt.Errorf("%w: workflow.max_rejections must be at least 1", common.ErrInvalidConfig)
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "openai", "gemini":
		default:
			return fmt.Errorf("%w: llm.provider %q (want openai or gemini)", common.ErrInvalidConfig, c.LLM.Provider)
		}
	}
	return nil
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
