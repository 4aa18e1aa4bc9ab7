// Package config loads costing configuration from config.yaml and COSTING_*
// environment variables and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Kitchen KitchenConfig `yaml:"kitchen" mapstructure:"kitchen"`
	Editor  EditorConfig  `yaml:"editor" mapstructure:"editor"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the backing store. Driver is sqlite, postgres or
// kitchen (a remote recipe backend over HTTP).
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// KitchenConfig configures the remote recipe backend client.
type KitchenConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Key              string  `yaml:"key" mapstructure:"key"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// EditorConfig configures the line editor session.
type EditorConfig struct {
	GuardWindowMs     int  `yaml:"guard_window_ms" mapstructure:"guard_window_ms"`
	DebounceMs        int  `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	SavedDisplayMs    int  `yaml:"saved_display_ms" mapstructure:"saved_display_ms"`
	SaveTimeoutSecs   int  `yaml:"save_timeout_secs" mapstructure:"save_timeout_secs"`
	AutosaveEnabled   bool `yaml:"autosave_enabled" mapstructure:"autosave_enabled"`
	ReloadAfterSaving bool `yaml:"reload_after_saving" mapstructure:"reload_after_saving"`
}

// GuardWindow returns the manual-edit guard window.
func (e EditorConfig) GuardWindow() time.Duration {
	return time.Duration(e.GuardWindowMs) * time.Millisecond
}

// Debounce returns the autosave debounce delay.
func (e EditorConfig) Debounce() time.Duration {
	return time.Duration(e.DebounceMs) * time.Millisecond
}

// SavedDisplay returns how long the saved status is shown.
func (e EditorConfig) SavedDisplay() time.Duration {
	return time.Duration(e.SavedDisplayMs) * time.Millisecond
}

// SaveTimeout returns the per-save deadline.
func (e EditorConfig) SaveTimeout() time.Duration {
	return time.Duration(e.SaveTimeoutSecs) * time.Second
}

// PricingConfig holds pricing defaults for recipes without their own target.
type PricingConfig struct {
	TargetGrossProfit float64 `yaml:"target_gross_profit" mapstructure:"target_gross_profit"`
	Strategy          string  `yaml:"strategy" mapstructure:"strategy"`
	Locale            string  `yaml:"locale" mapstructure:"locale"`
}

// ReportConfig configures the cost report command.
type ReportConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COSTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "costing.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("kitchen.rate_limit", 10)
	v.SetDefault("kitchen.rate_burst", 5)
	v.SetDefault("kitchen.timeout_secs", 15)
	v.SetDefault("kitchen.max_attempts", 3)
	v.SetDefault("kitchen.initial_backoff_ms", 200)
	v.SetDefault("kitchen.max_backoff_ms", 5000)
	v.SetDefault("kitchen.breaker_threshold", 5)
	v.SetDefault("kitchen.breaker_reset_secs", 30)
	v.SetDefault("editor.guard_window_ms", 10000)
	v.SetDefault("editor.debounce_ms", 2500)
	v.SetDefault("editor.saved_display_ms", 2000)
	v.SetDefault("editor.save_timeout_secs", 30)
	v.SetDefault("editor.autosave_enabled", true)
	v.SetDefault("editor.reload_after_saving", true)
	v.SetDefault("pricing.target_gross_profit", 70)
	v.SetDefault("pricing.strategy", "charm")
	v.SetDefault("pricing.locale", "en-US")
	v.SetDefault("report.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "kitchen":
		if c.Kitchen.BaseURL == "" {
			errs = append(errs, "kitchen.base_url is required for the kitchen driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or kitchen")
	}

	if c.Pricing.TargetGrossProfit < 0 || c.Pricing.TargetGrossProfit >= 100 {
		errs = append(errs, "pricing.target_gross_profit must be between 0 and 100 (exclusive)")
	}
	switch c.Pricing.Strategy {
	case "charm", "whole", "real":
	default:
		errs = append(errs, "pricing.strategy must be charm, whole or real")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "report":
		if c.Report.Concurrency < 1 || c.Report.Concurrency > 64 {
			errs = append(errs, "report.concurrency must be between 1 and 64")
		}
	case "edit":
		if c.Editor.DebounceMs < 0 || c.Editor.GuardWindowMs < 0 || c.Editor.SavedDisplayMs < 0 {
			errs = append(errs, "editor durations must be >= 0")
		}
	case "migrate", "import", "cost", "price":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Kitchen.RateLimit < 0 {
		errs = append(errs, "kitchen.rate_limit must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
