// Package config defines the scanner's configuration and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then overridden by POLYTRAGE_* environment variables.
type Config struct {
	Scan    ScanConfig    `toml:"scan"`
	API     APIConfig     `toml:"api"`
	Log     LogConfig     `toml:"log"`
	Notify  NotifyConfig  `toml:"notify"`
	Health  HealthConfig  `toml:"health"`
	Journal JournalConfig `toml:"journal"`
	Cache   CacheConfig   `toml:"cache"`
	Archive ArchiveConfig `toml:"archive"`

	// Headless quiets the console to warnings and errors; the log file,
	// when configured, still receives everything at the configured level.
	Headless bool `toml:"headless"`

	// Paper simulates a one-unit fill for every detected opportunity and
	// tracks the resulting portfolio.
	Paper bool `toml:"paper"`

	// Once runs a single scan cycle and exits. Set by the -once flag.
	Once bool `toml:"-"`
}

// ScanConfig tunes the scan funnel and its cadence.
type ScanConfig struct {
	Interval      duration `toml:"interval"`
	MinProfit     float64  `toml:"min_profit"`
	MaxMarkets    int      `toml:"max_markets"`
	FeeRate       float64  `toml:"fee_rate"`
	UseOrderbooks bool     `toml:"use_orderbooks"`
	MinLiquidity  float64  `toml:"min_liquidity"`
	MinVolume     float64  `toml:"min_volume"`
}

// APIConfig tunes the venue HTTP client.
type APIConfig struct {
	GammaURL      string   `toml:"gamma_url"`
	ClobURL       string   `toml:"clob_url"`
	Concurrency   int64    `toml:"concurrency"`
	Timeout       duration `toml:"timeout"`
	MaxRetries    int      `toml:"max_retries"`
	RetryBackoff  duration `toml:"retry_backoff"`
	ClientRefresh duration `toml:"client_refresh_interval"`
	RateLimitRPS  float64  `toml:"rate_limit_rps"`
}

// LogConfig selects the log level and the optional file sink.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// NotifyConfig holds notification channels and gates. Senders with no
// credentials configured are simply not wired.
type NotifyConfig struct {
	DiscordWebhook string   `toml:"discord_webhook"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Cooldown       duration `toml:"cooldown"`
	OnStartup      bool     `toml:"on_startup"`
	OnError        bool     `toml:"on_error"`
	OnArb          bool     `toml:"on_arb"`
}

// HealthConfig controls the heartbeat file.
type HealthConfig struct {
	Enabled        bool     `toml:"enabled"`
	HeartbeatFile  string   `toml:"heartbeat_file"`
	StaleThreshold duration `toml:"stale_threshold"`
}

// JournalConfig selects the paper-trade journal backend: PostgreSQL when
// postgres_dsn is set, otherwise the JSONL file, memory-only when
// trades_file is empty too.
type JournalConfig struct {
	Enabled     bool   `toml:"enabled"`
	TradesFile  string `toml:"trades_file"`
	MaxMemory   int    `toml:"max_memory"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// CacheConfig wires the optional Redis opportunity publisher. An empty addr
// disables it.
type CacheConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
}

// ArchiveConfig wires the optional S3 scan archiver. An empty bucket
// disables it.
type ArchiveConfig struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration wraps time.Duration for TOML decoding.
type duration struct {
	time.Duration
}

// UnmarshalTOML accepts either a duration string ("90s", "5m") or a bare
// number, taken as seconds.
func (d *duration) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = parsed
	case int64:
		d.Duration = time.Duration(t) * time.Second
	case float64:
		d.Duration = time.Duration(t * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the standard values. These match
// config.example.toml.
func Defaults() Config {
	return Config{
		Scan: ScanConfig{
			Interval:      duration{60 * time.Second},
			MinProfit:     0.005,
			MaxMarkets:    100,
			FeeRate:       0.02,
			UseOrderbooks: true,
		},
		API: APIConfig{
			GammaURL:      "https://gamma-api.polymarket.com",
			ClobURL:       "https://clob.polymarket.com",
			Concurrency:   10,
			Timeout:       duration{15 * time.Second},
			MaxRetries:    3,
			RetryBackoff:  duration{time.Second},
			ClientRefresh: duration{time.Hour},
		},
		Log: LogConfig{
			Level: "info",
			File:  "polytrage.log",
		},
		Notify: NotifyConfig{
			Cooldown:  duration{300 * time.Second},
			OnStartup: true,
			OnError:   true,
			OnArb:     true,
		},
		Health: HealthConfig{
			Enabled:        true,
			HeartbeatFile:  "heartbeat.json",
			StaleThreshold: duration{300 * time.Second},
		},
		Journal: JournalConfig{
			Enabled:    true,
			TradesFile: "trades.jsonl",
			MaxMemory:  1000,
		},
	}
}

// validLogLevels enumerates the accepted values for LogConfig.Level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}

	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be positive")
	}
	if c.Scan.MaxMarkets < 1 {
		errs = append(errs, "scan: max_markets must be >= 1")
	}
	if c.Scan.MinProfit < 0 {
		errs = append(errs, "scan: min_profit must be >= 0")
	}
	if c.Scan.FeeRate < 0 || c.Scan.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("scan: fee_rate must be in [0, 1), got %g", c.Scan.FeeRate))
	}
	if c.Scan.MinLiquidity < 0 {
		errs = append(errs, "scan: min_liquidity must be >= 0")
	}
	if c.Scan.MinVolume < 0 {
		errs = append(errs, "scan: min_volume must be >= 0")
	}

	if c.API.GammaURL == "" {
		errs = append(errs, "api: gamma_url must not be empty")
	}
	if c.API.ClobURL == "" {
		errs = append(errs, "api: clob_url must not be empty")
	}
	if c.API.Concurrency < 1 {
		errs = append(errs, "api: concurrency must be >= 1")
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be positive")
	}
	if c.API.MaxRetries < 1 {
		errs = append(errs, "api: max_retries must be >= 1")
	}
	if c.API.RetryBackoff.Duration <= 0 {
		errs = append(errs, "api: retry_backoff must be positive")
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, "api: rate_limit_rps must be >= 0")
	}

	// Telegram credentials travel as a pair.
	hasToken := c.Notify.TelegramToken != ""
	hasChat := c.Notify.TelegramChatID != ""
	if hasToken != hasChat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.Cooldown.Duration < 0 {
		errs = append(errs, "notify: cooldown must be >= 0")
	}

	if c.Health.Enabled {
		if c.Health.HeartbeatFile == "" {
			errs = append(errs, "health: heartbeat_file must not be empty when enabled")
		}
		if c.Health.StaleThreshold.Duration <= 0 {
			errs = append(errs, "health: stale_threshold must be positive")
		}
	}

	if c.Journal.Enabled && c.Journal.MaxMemory < 1 {
		errs = append(errs, "journal: max_memory must be >= 1")
	}

	if c.Cache.RedisDB < 0 {
		errs = append(errs, "cache: redis_db must be >= 0")
	}

	if c.Archive.Bucket != "" {
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when bucket is set")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			errs = append(errs, "archive: access_key and secret_key are required when bucket is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
