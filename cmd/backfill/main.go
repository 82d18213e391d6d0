package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/app"
	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/queue/nats"
	"github.com/tunogya/spi/pkg/store/duckdb"
	"github.com/tunogya/spi/pkg/window"
)

// Options holds backfill-specific settings
type Options struct {
	CSVPath    string
	Symbol     string
	Timeframe  string
	Window     int
	Step       int
	BatchSize  int
	Publish    bool // send regimes to NATS instead of indexing them here
	Strategies bool // also re-index every strategy
}

func main() {
	cfg, opts := parseFlags()
	logger := logging.New(cfg.Logging)

	if err := run(cfg, opts, logger); err != nil {
		logger.Error().Err(err).Msg("backfill failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts Options, logger zerolog.Logger) error {
	if err := cfg.Finish(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := context.Background()
	start := time.Now()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}
	defer rt.Close()

	duck, err := rt.DuckDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	candleRepo := duckdb.NewCandleRepo(duck)
	regimeRepo := duckdb.NewRegimeRepo(duck)

	logger.Info().Str("csv", opts.CSVPath).Str("symbol", opts.Symbol).Str("timeframe", opts.Timeframe).Msg("loading candles")
	provider := data.NewCSVProvider(opts.CSVPath)
	candles, err := provider.FetchCandles(ctx, opts.Symbol, opts.Timeframe, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to load candles: %w", err)
	}
	if err := candleRepo.InsertBatch(ctx, candles); err != nil {
		return fmt.Errorf("failed to store candles: %w", err)
	}
	logger.Info().Int("candles", len(candles)).Int("skipped", provider.Skipped()).Msg("candles stored")

	builder := window.NewBuilder(window.Config{
		W:         opts.Window,
		S:         opts.Step,
		Symbol:    opts.Symbol,
		Timeframe: opts.Timeframe,
	})
	windows := builder.ProcessCandles(candles)

	snapshots := make([]model.RegimeSnapshot, 0, len(windows))
	for _, w := range windows {
		snapshots = append(snapshots, rt.Service.Detector.DetectWindow(cfg.Engine.TenantID, w))
	}
	logger.Info().Int("windows", len(windows)).Msg("regimes detected")

	if err := regimeRepo.SaveBatch(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to store regimes: %w", err)
	}

	if opts.Publish {
		err = publish(ctx, cfg.NATS, snapshots, opts.BatchSize, logger)
	} else {
		err = ingest(ctx, rt, snapshots, opts.BatchSize, logger)
	}
	if err != nil {
		return fmt.Errorf("failed to index regimes: %w", err)
	}

	if opts.Strategies {
		report, err := rt.Service.ReindexAll(ctx, rt.Lister, cfg.Engine.TenantID)
		if err != nil {
			return fmt.Errorf("strategy reindex failed: %w", err)
		}
		logger.Info().Int("indexed", report.Indexed).Strs("failed", report.Failed).Msg("strategies reindexed")
	}

	if latest, err := regimeRepo.Latest(ctx, cfg.Engine.TenantID, opts.Symbol, opts.Timeframe); err == nil && latest != nil {
		logger.Info().
			Time("observed_at", latest.ObservedAt).
			Str("trend", string(latest.Regime.Trend)).
			Str("liquidity", string(latest.Regime.Liquidity)).
			Float64("volatility", latest.Regime.Volatility).
			Msg("latest regime")
	}

	logger.Info().
		Int("candles", len(candles)).
		Int("regimes", len(snapshots)).
		Dur("elapsed", time.Since(start)).
		Msg("backfill completed")
	return nil
}

func ingest(ctx context.Context, rt *app.Runtime, snapshots []model.RegimeSnapshot, batchSize int, logger zerolog.Logger) error {
	for i := 0; i < len(snapshots); i += batchSize {
		end := min(i+batchSize, len(snapshots))
		if err := rt.Service.IngestRegimes(ctx, snapshots[i:end]); err != nil {
			return err
		}
		logger.Debug().Int("done", end).Int("total", len(snapshots)).Msg("regimes indexed")
	}
	return nil
}

func publish(ctx context.Context, cfg nats.Config, snapshots []model.RegimeSnapshot, batchSize int, logger zerolog.Logger) error {
	client, err := nats.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CreateStream(ctx); err != nil {
		return err
	}
	for i := 0; i < len(snapshots); i += batchSize {
		end := min(i+batchSize, len(snapshots))
		if err := client.Publish(ctx, nats.SubjectRegimeObserved, nats.NewRegimeObserved(snapshots[i:end])); err != nil {
			return err
		}
	}
	logger.Info().Int("regimes", len(snapshots)).Msg("regimes published")
	return nil
}

func parseFlags() (*config.Config, Options) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.BindFlags(flag.CommandLine)

	opts := Options{}
	flag.StringVar(&opts.CSVPath, "csv", "", "Path to CSV file with candle data")
	flag.StringVar(&opts.Symbol, "symbol", "BTCUSDT", "Trading symbol")
	flag.StringVar(&opts.Timeframe, "timeframe", "1h", "Timeframe")
	flag.IntVar(&opts.Window, "window", 60, "Window length (number of candles)")
	flag.IntVar(&opts.Step, "step", 12, "Step size between windows")
	flag.IntVar(&opts.BatchSize, "batch", 500, "Batch size for index writes")
	flag.BoolVar(&opts.Publish, "publish", false, "Publish regimes to NATS instead of indexing directly")
	flag.BoolVar(&opts.Strategies, "strategies", false, "Also re-index every strategy")

	flag.Parse()

	if opts.CSVPath == "" || opts.BatchSize < 1 {
		fmt.Println("Usage: backfill -csv <path> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	return cfg, opts
}
