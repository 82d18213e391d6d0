package config

import "flag"

// BindFlags registers the flags shared by every command. Flag defaults are the
// values already loaded from the environment, so flags override variables.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Engine.Index, "index", c.Engine.Index, "Vector index backend (memory|milvus)")
	fs.StringVar(&c.Engine.Store, "store", c.Engine.Store, "Strategy store backend (memory|postgres)")
	fs.StringVar(&c.Engine.SeedFile, "seed", c.Engine.SeedFile, "JSON seed file for the memory store")
	fs.StringVar(&c.Engine.TenantID, "tenant", c.Engine.TenantID, "Tenant id")
	fs.BoolVar(&c.Engine.History, "history", c.Engine.History, "Measure analogue outcomes from DuckDB candles")
	fs.IntVar(&c.Engine.Dimension, "dim", c.Engine.Dimension, "Vector dimension")
	fs.StringVar(&c.Milvus.Address, "milvus", c.Milvus.Address, "Milvus server address")
	fs.StringVar(&c.DuckDB.Path, "duckdb", c.DuckDB.Path, "DuckDB file path")
	fs.StringVar(&c.Postgres.DSN, "postgres", c.Postgres.DSN, "PostgreSQL connection string")
	fs.StringVar(&c.NATS.URL, "nats", c.NATS.URL, "NATS server URL")
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "Log level")
	fs.BoolVar(&c.Logging.Pretty, "log-pretty", c.Logging.Pretty, "Human-readable log output")
}

// Finish re-validates after flags were parsed and propagates derived values
func (c *Config) Finish() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Collection.Dimension = c.Engine.Dimension
	return nil
}
