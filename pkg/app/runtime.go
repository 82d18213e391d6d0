// Package app assembles the configured backends into a running service for the commands.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/config"
	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/intel"
	"github.com/tunogya/spi/pkg/store/duckdb"
	"github.com/tunogya/spi/pkg/store/milvus"
	"github.com/tunogya/spi/pkg/store/postgres"
	"github.com/tunogya/spi/pkg/store/redis"
)

// Runtime owns every open backend of a command
type Runtime struct {
	Config  *config.Config
	Service *intel.Service
	Lister  intel.StrategyLister
	Cache   *redis.StrategyCache // nil unless Redis is enabled
	Index   index.VectorIndex

	logger  zerolog.Logger
	duck    *duckdb.Client
	closers []func()
}

// Open connects the configured index and strategy store and builds the service
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, logger: logger}

	if err := rt.openIndex(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	strategies, backtests, err := rt.openStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		rt.Cache = redis.NewStrategyCache(ctx, cfg.Redis, strategies, logger)
		rt.closers = append(rt.closers, func() { rt.Cache.Close() })
		strategies = rt.Cache
	}

	var candles data.CandleProvider
	if cfg.Engine.History {
		duck, err := rt.DuckDB(ctx)
		if err != nil {
			rt.Close()
			return nil, err
		}
		candles = duckdb.NewCandleRepo(duck)
	}

	deps := intel.Deps{
		Strategies: strategies,
		Backtests:  backtests,
		Index:      rt.Index,
		Dimension:  cfg.Engine.Dimension,
		Candles:    candles,
		Logger:     logger,
	}
	if rt.Cache != nil {
		deps.Cache = rt.Cache
	}

	rt.Service, err = intel.New(deps)
	if err != nil {
		rt.Close()
		return nil, err
	}

	return rt, nil
}

func (rt *Runtime) openIndex(ctx context.Context) error {
	switch rt.Config.Engine.Index {
	case config.IndexMilvus:
		client, err := milvus.NewClient(ctx, rt.Config.Milvus)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func() { client.Close() })
		rt.Index = milvus.NewIndex(client, rt.Config.Collection, rt.logger)
		rt.logger.Info().Str("addr", rt.Config.Milvus.Address).Msg("using milvus index")
	default:
		rt.Index = index.NewMemoryIndex(rt.Config.Engine.Dimension)
		rt.logger.Info().Int("dim", rt.Config.Engine.Dimension).Msg("using in-memory index")
	}
	return nil
}

func (rt *Runtime) openStore(ctx context.Context) (data.StrategyReader, data.BacktestReader, error) {
	switch rt.Config.Engine.Store {
	case config.StorePostgres:
		db, err := postgres.NewDB(ctx, rt.Config.Postgres, rt.logger)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		strategies := postgres.NewStrategyRepo(db)
		rt.Lister = strategies
		return strategies, postgres.NewBacktestRepo(db), nil

	default:
		store := data.NewMemoryStore()
		if path := rt.Config.Engine.SeedFile; path != "" {
			seeded, err := data.LoadSeedFile(path)
			if err != nil {
				return nil, nil, err
			}
			store = seeded
			rt.logger.Info().Str("seed", path).Msg("memory store seeded")
		}
		rt.Lister = store
		return store, store, nil
	}
}

// DuckDB opens the candle and regime database on first use
func (rt *Runtime) DuckDB(ctx context.Context) (*duckdb.Client, error) {
	if rt.duck != nil {
		return rt.duck, nil
	}
	client, err := duckdb.NewClient(ctx, rt.Config.DuckDB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %s: %w", rt.Config.DuckDB.Path, err)
	}
	rt.duck = client
	rt.closers = append(rt.closers, func() { client.Close() })
	return client, nil
}

// Close releases every backend in reverse opening order
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
