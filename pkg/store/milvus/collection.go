package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Field names of every namespace collection
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldTenantID   = "tenant_id"
	FieldStrategyID = "strategy_id"
	FieldTier       = "tier"
	FieldMetadata   = "metadata"
)

const maxMetadataLength = 65535

// CollectionConfig holds configuration shared by all namespace collections
type CollectionConfig struct {
	Prefix    string `env:"COLLECTION_PREFIX" envDefault:"spi"`
	Dimension int    `env:"-"`
	Shards    int    `env:"SHARDS" envDefault:"2"`
	NList     int    `env:"NLIST" envDefault:"128"`
	NProbe    int    `env:"NPROBE" envDefault:"16"`
}

// DefaultCollectionConfig returns default collection configuration
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Prefix:    "spi",
		Dimension: 768,
		Shards:    2,
		NList:     128,
		NProbe:    16,
	}
}

// CollectionName maps an index namespace to its Milvus collection
func (cfg CollectionConfig) CollectionName(namespace string) string {
	if cfg.Prefix == "" {
		return namespace
	}
	return cfg.Prefix + "_" + namespace
}

// Schema describes the collection backing a namespace
func (cfg CollectionConfig) Schema(namespace string) *entity.Schema {
	return &entity.Schema{
		CollectionName: cfg.CollectionName(namespace),
		Description:    fmt.Sprintf("%s embeddings", namespace),
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       FieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(cfg.Dimension)},
			},
			{
				Name:       FieldTenantID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       FieldStrategyID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       FieldTier,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16"},
			},
			{
				Name:       FieldMetadata,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": strconv.Itoa(maxMetadataLength)},
			},
		},
	}
}

// EnsureCollection creates, indexes and loads the collection of a namespace if missing
func (c *Client) EnsureCollection(ctx context.Context, cfg CollectionConfig, namespace string) error {
	name := cfg.CollectionName(namespace)

	exists, err := c.conn.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}

	if !exists {
		if err := c.conn.CreateCollection(ctx, cfg.Schema(namespace), int32(cfg.Shards)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		if err := c.createIndex(ctx, name, FieldEmbedding, cfg.NList); err != nil {
			return err
		}
	}

	if err := c.conn.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

// TenantExpr builds the boolean filter expression for a tenant. The empty tenant is
// matched literally.
func TenantExpr(tenantID string) string {
	return FieldTenantID + " == " + strconv.Quote(tenantID)
}
