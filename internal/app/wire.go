package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polytrage/polytrage/internal/blob/s3"
	"github.com/polytrage/polytrage/internal/cache/redis"
	"github.com/polytrage/polytrage/internal/config"
	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/health"
	"github.com/polytrage/polytrage/internal/notify"
	"github.com/polytrage/polytrage/internal/platform/polymarket"
	"github.com/polytrage/polytrage/internal/scanner"
	"github.com/polytrage/polytrage/internal/storage"
	"github.com/polytrage/polytrage/internal/store/postgres"
)

// Dependencies bundles everything the scan loop operates on. Optional
// collaborators stay nil when their config section is absent.
type Dependencies struct {
	Client  *polymarket.Client
	Scanner *scanner.Scanner

	Notifier  *notify.Notifier
	Journal   domain.Journal
	Heartbeat *health.Writer
	Archiver  *s3blob.Archiver
}

// FetchClient builds the venue client from the API configuration.
func FetchClient(cfg *config.Config, logger *slog.Logger) *polymarket.Client {
	return polymarket.New(polymarket.Config{
		GammaURL:      cfg.API.GammaURL,
		ClobURL:       cfg.API.ClobURL,
		Concurrency:   cfg.API.Concurrency,
		MaxAttempts:   cfg.API.MaxRetries,
		Timeout:       cfg.API.Timeout.Duration,
		RetryBackoff:  cfg.API.RetryBackoff.Duration,
		ClientRefresh: cfg.API.ClientRefresh.Duration,
		RateLimitRPS:  cfg.API.RateLimitRPS,
	}, logger)
}

// Wire constructs the concrete dependencies from the configuration and
// returns them together with a cleanup function that should be called on
// shutdown to release resources. Backends are wired only when configured;
// a configured backend that cannot be reached is a fatal error.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.Client = FetchClient(cfg, logger)
	closers = append(closers, deps.Client.Close)

	deps.Scanner = scanner.New(deps.Client, scanner.Config{
		MaxMarkets:    cfg.Scan.MaxMarkets,
		MinProfit:     cfg.Scan.MinProfit,
		FeeRate:       cfg.Scan.FeeRate,
		UseOrderbooks: cfg.Scan.UseOrderbooks,
		MinLiquidity:  cfg.Scan.MinLiquidity,
		MinVolume:     cfg.Scan.MinVolume,
	}, logger)

	// --- Notification senders ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	if cfg.Cache.RedisAddr != "" {
		redisClient, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		senders = append(senders, redis.NewPublisher(redisClient, cfg.Cache.Channel))
	}
	if len(senders) > 0 {
		names := make([]string, len(senders))
		for i, s := range senders {
			names[i] = s.Name()
		}
		logger.InfoContext(ctx, "notifications enabled", slog.Any("senders", names))
		deps.Notifier = notify.New(senders, notify.Config{
			Cooldown:  cfg.Notify.Cooldown.Duration,
			OnStartup: cfg.Notify.OnStartup,
			OnError:   cfg.Notify.OnError,
			OnArb:     cfg.Notify.OnArb,
		}, logger)
	}

	// --- Trade journal ---
	if cfg.Journal.Enabled {
		if cfg.Journal.PostgresDSN != "" {
			pgClient, err := postgres.New(ctx, cfg.Journal.PostgresDSN)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres: %w", err)
			}
			closers = append(closers, pgClient.Close)
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
			deps.Journal = postgres.NewJournalStore(pgClient.Pool(), cfg.Journal.MaxMemory)
		} else {
			deps.Journal = storage.NewJournal(cfg.Journal.TradesFile, cfg.Journal.MaxMemory, logger)
		}
	}

	// --- Heartbeat ---
	if cfg.Health.Enabled {
		deps.Heartbeat = health.NewWriter(cfg.Health.HeartbeatFile, logger)
	}

	// --- Scan archive ---
	if cfg.Archive.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.Archive.Prefix)
	}

	return deps, cleanup, nil
}
