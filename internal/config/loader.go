package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path when one exists, merges it over the
// defaults, then applies POLYTRAGE_* environment overrides. A missing file
// is not an error so the scanner runs out of the box; a malformed one is.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	// A .env file feeds the same override path as real environment
	// variables (silently ignored when missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads the flat POLYTRAGE_* environment variables and
// overwrites the matching fields when set. This lets operators inject
// secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Notify.DiscordWebhook, "POLYTRAGE_DISCORD_WEBHOOK")
	setStr(&cfg.Notify.TelegramToken, "POLYTRAGE_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRAGE_TELEGRAM_CHAT_ID")

	setStr(&cfg.Log.Level, "POLYTRAGE_LOG_LEVEL")
	setStr(&cfg.Log.File, "POLYTRAGE_LOG_FILE")

	setDuration(&cfg.Scan.Interval, "POLYTRAGE_SCAN_INTERVAL")
	setFloat64(&cfg.Scan.MinProfit, "POLYTRAGE_MIN_PROFIT")
	setInt(&cfg.Scan.MaxMarkets, "POLYTRAGE_MAX_MARKETS")
	setFloat64(&cfg.Scan.FeeRate, "POLYTRAGE_FEE_RATE")

	setInt64(&cfg.API.Concurrency, "POLYTRAGE_API_CONCURRENCY")
	setDuration(&cfg.API.Timeout, "POLYTRAGE_API_TIMEOUT")

	setStr(&cfg.Health.HeartbeatFile, "POLYTRAGE_HEARTBEAT_FILE")

	setStr(&cfg.Journal.TradesFile, "POLYTRAGE_TRADES_FILE")
	setStr(&cfg.Journal.PostgresDSN, "POLYTRAGE_POSTGRES_DSN")

	setStr(&cfg.Cache.RedisAddr, "POLYTRAGE_REDIS_ADDR")
	setStr(&cfg.Cache.RedisPassword, "POLYTRAGE_REDIS_PASSWORD")

	setStr(&cfg.Archive.AccessKey, "POLYTRAGE_S3_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "POLYTRAGE_S3_SECRET_KEY")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setDuration accepts a duration string ("30s") or a bare integer number of
// seconds.
func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		} else if n, err := strconv.Atoi(v); err == nil {
			dst.Duration = time.Duration(n) * time.Second
		}
	}
}
