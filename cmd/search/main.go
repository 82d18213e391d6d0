package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/analogue"
	"github.com/tunogya/spi/pkg/app"
	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/explain"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/recommend"
	"github.com/tunogya/spi/pkg/store/duckdb"
)

// Options holds search-specific settings
type Options struct {
	Symbol    string
	Timeframe string
	Window    int
	Tier      string
	Limit     int
	Explain   string
	Analogues int
}

func main() {
	cfg, opts := parseFlags()
	logger := logging.New(cfg.Logging)

	if err := run(cfg, opts, logger); err != nil {
		logger.Error().Err(err).Msg("search failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts Options, logger zerolog.Logger) error {
	if err := cfg.Finish(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}
	defer rt.Close()

	if cfg.Engine.Index == config.IndexMemory {
		if _, err := rt.Service.ReindexAll(ctx, rt.Lister, cfg.Engine.TenantID); err != nil {
			return fmt.Errorf("failed to index strategies: %w", err)
		}
	}

	if opts.Explain != "" {
		explanation, err := rt.Service.Explain(ctx, explain.Request{StrategyID: opts.Explain, TenantID: cfg.Engine.TenantID})
		if err != nil {
			return fmt.Errorf("explain failed: %w", err)
		}
		printJSON(explanation)
		return nil
	}

	duck, err := rt.DuckDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}

	regime, err := currentRegime(ctx, rt, duck, cfg.Engine.TenantID, opts)
	if err != nil {
		return fmt.Errorf("failed to determine current regime: %w", err)
	}

	recs, err := rt.Service.Recommend(ctx, recommend.Request{
		TenantID:      cfg.Engine.TenantID,
		CurrentRegime: regime,
		UserTier:      opts.Tier,
		Limit:         opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	fmt.Printf("Regime for %s %s: %s trend, %s liquidity, volatility %.4f\n",
		opts.Symbol, opts.Timeframe, regime.Trend, regime.Liquidity, regime.Volatility)
	if len(recs) == 0 {
		fmt.Println("No strategies indexed for this tenant.")
		return nil
	}
	for i, r := range recs {
		fmt.Printf("%d. %s (%s) confidence %.2f\n   %s\n", i+1, r.Name, r.StrategyID, r.Confidence, r.Explanation)
	}

	if opts.Analogues > 0 {
		if err := printAnalogues(ctx, rt, duck, cfg, opts, regime); err != nil {
			return fmt.Errorf("analogue search failed: %w", err)
		}
	}
	return nil
}

// printAnalogues lists the past regimes closest to regime. The memory index is
// loaded from the recorded regime history first.
func printAnalogues(ctx context.Context, rt *app.Runtime, duck *duckdb.Client, cfg *config.Config, opts Options, regime model.RegimeDescription) error {
	if cfg.Engine.Index == config.IndexMemory {
		history, err := duckdb.NewRegimeRepo(duck).History(ctx, cfg.Engine.TenantID, opts.Symbol, opts.Timeframe, regimeHistoryLimit)
		if err != nil {
			return err
		}
		if err := rt.Service.IngestRegimes(ctx, history); err != nil {
			return err
		}
	}

	resp, err := rt.Service.FindAnalogues(ctx, analogue.Request{
		TenantID: cfg.Engine.TenantID,
		Regime:   regime,
		Limit:    opts.Analogues,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nHistorical analogues:")
	for i, a := range resp.Analogues {
		fmt.Printf("%d. %s %s at %s similarity %.3f score %.3f\n",
			i+1, a.RegimeID, a.Regime.Trend, a.ObservedAt.Format(time.RFC3339), a.Similarity, a.Score)
	}
	for _, agg := range resp.Summary {
		fmt.Println("   " + agg.String())
	}
	return nil
}

const regimeHistoryLimit = 5000

// currentRegime prefers the latest recorded regime and falls back to detecting one
// from the latest candles
func currentRegime(ctx context.Context, rt *app.Runtime, duck *duckdb.Client, tenantID string, opts Options) (model.RegimeDescription, error) {
	latest, err := duckdb.NewRegimeRepo(duck).Latest(ctx, tenantID, opts.Symbol, opts.Timeframe)
	if err != nil {
		return model.RegimeDescription{}, err
	}
	if latest != nil {
		return latest.Regime, nil
	}

	candles, err := duckdb.NewCandleRepo(duck).GetLatest(ctx, opts.Symbol, opts.Timeframe, opts.Window)
	if err != nil {
		return model.RegimeDescription{}, err
	}
	if len(candles) < 2 {
		return model.RegimeDescription{}, fmt.Errorf("no regime or candles stored for %s %s", opts.Symbol, opts.Timeframe)
	}
	return rt.Service.Detector.Detect(candles), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseFlags() (*config.Config, Options) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.BindFlags(flag.CommandLine)

	opts := Options{}
	flag.StringVar(&opts.Symbol, "symbol", "BTCUSDT", "Trading symbol")
	flag.StringVar(&opts.Timeframe, "timeframe", "1h", "Timeframe")
	flag.IntVar(&opts.Window, "window", 60, "Candles used when detecting the regime")
	flag.StringVar(&opts.Tier, "tier", model.TierFree, "User tier (free|pro)")
	flag.IntVar(&opts.Limit, "limit", recommend.DefaultLimit, "Number of recommendations")
	flag.StringVar(&opts.Explain, "explain", "", "Explain the given strategy id instead of recommending")
	flag.IntVar(&opts.Analogues, "analogues", 0, "Also list this many historical analogues of the current regime")

	flag.Parse()

	return cfg, opts
}
