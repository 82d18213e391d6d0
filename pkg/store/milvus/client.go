// Package milvus implements the similarity index on a Milvus vector database.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Client manages Milvus connections
type Client struct {
	conn client.Client
	addr string
}

// Config holds Milvus connection configuration
type Config struct {
	Address  string `env:"ADDRESS" envDefault:"localhost:19530"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	DBName   string `env:"DB_NAME"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Address: "localhost:19530",
	}
}

// NewClient connects to Milvus. Credentials are sent only when both are set.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	ccfg := client.Config{
		Address: cfg.Address,
		DBName:  cfg.DBName,
	}
	if cfg.Username != "" && cfg.Password != "" {
		ccfg.Username = cfg.Username
		ccfg.Password = cfg.Password
	}

	conn, err := client.NewClient(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}

	return &Client{
		conn: conn,
		addr: cfg.Address,
	}, nil
}

// Close closes the Milvus connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Address returns the server address
func (c *Client) Address() string {
	return c.addr
}

// createIndex builds a cosine IVF_FLAT index on a vector field
func (c *Client) createIndex(ctx context.Context, collection, field string, nlist int) error {
	idx, err := entity.NewIndexIvfFlat(entity.COSINE, nlist)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := c.conn.CreateIndex(ctx, collection, field, idx, false); err != nil {
		return fmt.Errorf("failed to create index on %s.%s: %w", collection, field, err)
	}
	return nil
}

// DropCollection drops a collection
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	return c.conn.DropCollection(ctx, collection)
}

// Flush persists pending writes of a collection
func (c *Client) Flush(ctx context.Context, collection string) error {
	return c.conn.Flush(ctx, collection, false)
}
