package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/app"
	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/queue/nats"
	"github.com/tunogya/spi/pkg/store/duckdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var recordRegimes bool
	cfg.BindFlags(flag.CommandLine)
	flag.BoolVar(&recordRegimes, "record-regimes", true, "Persist observed regimes to DuckDB")
	flag.Parse()

	logger := logging.New(cfg.Logging)
	if err := run(cfg, recordRegimes, logger); err != nil {
		logger.Error().Err(err).Msg("ingestor stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, recordRegimes bool, logger zerolog.Logger) error {
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

	handlers := &nats.Handlers{
		Strategies: rt.Service,
		Regimes:    rt.Service,
		Logger:     logging.Component(logger, "ingestor"),
	}
	if recordRegimes {
		duck, err := rt.DuckDB(ctx)
		if err != nil {
			return err
		}
		handlers.Recorder = duckdb.NewRegimeRepo(duck)
	}

	natsClient, err := nats.NewClient(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close()

	if err := natsClient.CreateStream(ctx); err != nil {
		return err
	}

	subscriptions := []struct {
		subject  string
		consumer string
		handler  nats.MessageHandler
	}{
		{nats.SubjectBacktestCompleted, "spi-backtests", handlers.HandleStrategyEvent},
		{nats.SubjectStrategyUpdated, "spi-strategies", handlers.HandleStrategyEvent},
		{nats.SubjectRegimeObserved, "spi-regimes", handlers.HandleRegimeObserved},
	}
	for _, sub := range subscriptions {
		consumeCtx, err := natsClient.Subscribe(ctx, sub.subject, sub.consumer, sub.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.subject, err)
		}
		defer consumeCtx.Stop()
	}

	logger.Info().Str("url", cfg.NATS.URL).Msg("ingestor started, waiting for messages")
	<-ctx.Done()
	logger.Info().Msg("shutting down ingestor")
	return nil
}
