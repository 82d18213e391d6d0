package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/api"
	"github.com/tunogya/spi/pkg/app"
	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/store/duckdb"
)

// Options holds server-specific settings
type Options struct {
	RecordRegimes bool
	Reindex       bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var opts Options
	cfg.BindFlags(flag.CommandLine)
	flag.StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "HTTP listen address")
	flag.BoolVar(&opts.RecordRegimes, "record-regimes", false, "Persist posted regimes to DuckDB")
	flag.BoolVar(&opts.Reindex, "reindex", false, "Index every strategy before serving")
	flag.Parse()

	logger := logging.New(cfg.Logging)
	if err := run(cfg, opts, logger); err != nil {
		logger.Error().Err(err).Msg("api stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts Options, logger zerolog.Logger) error {
	if err := cfg.Finish(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}
	defer rt.Close()

	// the in-memory index starts empty on every boot
	if opts.Reindex || cfg.Engine.Index == config.IndexMemory {
		report, err := rt.Service.ReindexAll(ctx, rt.Lister, cfg.Engine.TenantID)
		if err != nil {
			return fmt.Errorf("initial reindex failed: %w", err)
		}
		logger.Info().Int("indexed", report.Indexed).Int("failed", len(report.Failed)).Msg("initial reindex done")
	}

	serverOpts := []api.Option{api.WithLister(rt.Lister)}
	if opts.RecordRegimes {
		duck, err := rt.DuckDB(ctx)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, api.WithRecorder(duckdb.NewRegimeRepo(duck)))
	}

	server := api.NewServer(cfg.HTTP.Addr, rt.Service, logger, serverOpts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}
