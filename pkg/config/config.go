// Package config loads service configuration from SPI_* environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/model"
	"github.com/tunogya/spi/pkg/queue/nats"
	"github.com/tunogya/spi/pkg/store/duckdb"
	"github.com/tunogya/spi/pkg/store/milvus"
	"github.com/tunogya/spi/pkg/store/postgres"
	"github.com/tunogya/spi/pkg/store/redis"
)

// Index backends
const (
	IndexMemory = "memory"
	IndexMilvus = "milvus"
)

// Strategy store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// EnvPrefix prefixes every variable read by Load
const EnvPrefix = "SPI_"

// Engine configures the similarity engine itself
type Engine struct {
	Dimension int    `env:"DIMENSION" envDefault:"768"`
	Index     string `env:"INDEX" envDefault:"memory"`
	Store     string `env:"STORE" envDefault:"memory"`
	SeedFile  string `env:"SEED_FILE"` // JSON strategies and backtests for the memory store
	TenantID  string `env:"TENANT_ID"`
	History   bool   `env:"HISTORY"` // attach forward outcomes from DuckDB candles to regime analogues
}

// HTTP configures the API server
type HTTP struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

// Config is the full service configuration
type Config struct {
	Logging    logging.Config
	Engine     Engine                  `envPrefix:"ENGINE_"`
	HTTP       HTTP                    `envPrefix:"HTTP_"`
	Milvus     milvus.Config           `envPrefix:"MILVUS_"`
	Collection milvus.CollectionConfig `envPrefix:"MILVUS_"`
	DuckDB     duckdb.Config           `envPrefix:"DUCKDB_"`
	Postgres   postgres.Config         `envPrefix:"POSTGRES_"`
	Redis      redis.Config            `envPrefix:"REDIS_"`
	NATS       nats.Config             `envPrefix:"NATS_"`
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return load(env.Options{Prefix: EnvPrefix})
}

// LoadFrom reads the configuration from the given variables instead of the environment
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Prefix: EnvPrefix, Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Collection.Dimension = cfg.Engine.Dimension
	return &cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Engine.Dimension < 4 {
		return fmt.Errorf("engine dimension must be at least 4, got %d", c.Engine.Dimension)
	}
	switch c.Engine.Index {
	case IndexMemory, IndexMilvus:
	default:
		return fmt.Errorf("unknown index backend %q", c.Engine.Index)
	}
	switch c.Engine.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown strategy store %q", c.Engine.Store)
	}
	return nil
}

// Defaults returns the configuration used when no variable is set
func Defaults() *Config {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultDimension is the vector dimension used when nothing else is configured
const DefaultDimension = model.DefaultVectorDim
