// Command polytrage is the Polymarket arbitrage scanner. The default
// invocation runs the scan loop; `polytrage health` checks the heartbeat
// file and `polytrage diagnose` prints a one-shot market-efficiency report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polytrage/polytrage/internal/app"
	"github.com/polytrage/polytrage/internal/config"
	"github.com/polytrage/polytrage/internal/diagnose"
	"github.com/polytrage/polytrage/internal/health"
	"github.com/polytrage/polytrage/internal/logging"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "health":
			os.Exit(healthCmd(os.Args[2:]))
		case "diagnose":
			os.Exit(diagnoseCmd(os.Args[2:]))
		}
	}
	os.Exit(scanCmd(os.Args[1:]))
}

// scanCmd runs the scan loop until interrupted. Flags that are explicitly
// set override the corresponding config file values.
func scanCmd(args []string) int {
	fs := flag.NewFlagSet("polytrage", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to the configuration file")
	interval := fs.Duration("interval", 60*time.Second, "scan interval between cycles")
	minProfit := fs.Float64("min-profit", 0.005, "minimum net profit per set in dollars")
	maxMarkets := fs.Int("max-markets", 100, "maximum markets to scan per cycle")
	feeRate := fs.Float64("fee-rate", 0.02, "fee rate applied to winnings")
	paper := fs.Bool("paper", false, "record a simulated fill for every opportunity")
	noOrderbooks := fs.Bool("no-orderbooks", false, "skip order book verification and trust reference prices")
	minLiquidity := fs.Float64("min-liquidity", 0, "minimum market liquidity")
	minVolume := fs.Float64("min-volume", 0, "minimum market volume")
	once := fs.Bool("once", false, "run a single scan cycle and exit")
	headless := fs.Bool("headless", false, "quiet the console to warnings and errors")
	verbose := fs.Bool("v", false, "verbose console logging")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.Scan.Interval.Duration = *interval
		case "min-profit":
			cfg.Scan.MinProfit = *minProfit
		case "max-markets":
			cfg.Scan.MaxMarkets = *maxMarkets
		case "fee-rate":
			cfg.Scan.FeeRate = *feeRate
		case "paper":
			cfg.Paper = *paper
		case "no-orderbooks":
			cfg.Scan.UseOrderbooks = !*noOrderbooks
		case "min-liquidity":
			cfg.Scan.MinLiquidity = *minLiquidity
		case "min-volume":
			cfg.Scan.MinVolume = *minVolume
		case "once":
			cfg.Once = *once
		case "headless":
			cfg.Headless = *headless
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}

	logger, closeLogs, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Headless: cfg.Headless,
		Verbose:  *verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}
	defer func() { _ = closeLogs() }()

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// A cancelled context is the normal Ctrl-C exit path.
		if errors.Is(err, context.Canceled) {
			logger.Info("shut down gracefully")
			return 0
		}
		logger.Error("scanner exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	return 0
}

// healthCmd reports whether the heartbeat file is fresh. Exit code 0 means
// healthy, 1 means stale or missing.
func healthCmd(args []string) int {
	fs := flag.NewFlagSet("polytrage health", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to the configuration file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}

	st := health.Check(cfg.Health.HeartbeatFile, cfg.Health.StaleThreshold.Duration)
	if !st.Healthy {
		fmt.Printf("UNHEALTHY: %s\n", st.Reason)
		return 1
	}
	fmt.Printf("OK: heartbeat %s old\n", st.Age.Round(time.Second))
	return 0
}

// diagnoseCmd runs a one-shot efficiency report against the live venue.
func diagnoseCmd(args []string) int {
	fs := flag.NewFlagSet("polytrage diagnose", flag.ExitOnError)
	configPath := fs.String("config", "config.toml", "path to the configuration file")
	maxMarkets := fs.Int("max-markets", diagnose.DefaultConfig().MaxMarkets, "markets to fetch from the universe")
	deepScan := fs.Int("deep-scan", diagnose.DefaultConfig().Deep, "markets and groups to deep-scan")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}

	// The report goes to stdout; keep the console log quiet so the tables
	// stay readable.
	logger, closeLogs, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Headless: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}
	defer func() { _ = closeLogs() }()

	client := app.FetchClient(cfg, logger)
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := diagnose.New(client, diagnose.Config{MaxMarkets: *maxMarkets, Deep: *deepScan}, logger, os.Stdout)
	if err := runner.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "polytrage: %v\n", err)
		return 1
	}
	return 0
}
