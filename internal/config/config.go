// Package config loads service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/FinnSolly2/TradeQuest1/internal/symbol"
)

// FileEnv names the environment variable holding an optional config file path.
const FileEnv = "TRADEQUEST_CONFIG"

// DefaultSymbols is the tracked universe when none is configured.
var DefaultSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "TSLA", "META",
	"BTC-USD", "ETH-USD", "EURUSD=X", "^GSPC",
}

// Config is the resolved service configuration.
type Config struct {
	Port        string `mapstructure:"port" validate:"required,numeric"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	TrackedSymbols []string `mapstructure:"tracked_symbols" validate:"min=1,dive,required"`
	QuoteSource    string   `mapstructure:"quote_source" validate:"oneof=random static"`
	ReadyRatio     float64  `mapstructure:"ready_ratio" validate:"gt=0,lte=1"`

	CollectInterval  time.Duration `mapstructure:"collect_interval" validate:"gt=0"`
	SimulateInterval time.Duration `mapstructure:"simulate_interval" validate:"gt=0"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	StoreTimeout     time.Duration `mapstructure:"store_timeout" validate:"gt=0"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("tracked_symbols", DefaultSymbols)
	v.SetDefault("quote_source", "random")
	v.SetDefault("ready_ratio", 0.8)
	v.SetDefault("collect_interval", time.Minute)
	v.SetDefault("simulate_interval", 10*time.Minute)
	v.SetDefault("fetch_timeout", 5*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("store_timeout", 5*time.Second)
	v.SetDefault("cache_ttl", 30*time.Second)
}

// Load resolves configuration. Environment variables are the upper-cased
// keys (PORT, DATABASE_URL, TRACKED_SYMBOLS, ...); TRACKED_SYMBOLS is a
// comma-separated list.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	syms, err := symbol.ParseList(splitList(cfg.TrackedSymbols))
	if err != nil {
		return nil, fmt.Errorf("tracked_symbols: %w", err)
	}
	cfg.TrackedSymbols = syms

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// splitList flattens comma-separated entries; env values arrive as one string.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
