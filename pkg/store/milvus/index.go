package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/index"
	"github.com/tunogya/spi/pkg/model"
)

// Index is a VectorIndex stored in Milvus, one collection per namespace
type Index struct {
	client *Client
	cfg    CollectionConfig
	logger zerolog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

var _ index.VectorIndex = (*Index)(nil)

// NewIndex wraps a connected client as a VectorIndex
func NewIndex(c *Client, cfg CollectionConfig, logger zerolog.Logger) *Index {
	return &Index{
		client: c,
		cfg:    cfg,
		logger: logger.With().Str("component", "milvus_index").Logger(),
		ready:  make(map[string]bool),
	}
}

func (ix *Index) ensure(ctx context.Context, namespace string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.ready[namespace] {
		return nil
	}
	if err := ix.client.EnsureCollection(ctx, ix.cfg, namespace); err != nil {
		return err
	}
	ix.ready[namespace] = true
	ix.logger.Info().Str("collection", ix.cfg.CollectionName(namespace)).Msg("collection ready")
	return nil
}

// Upsert inserts or replaces entries by id
func (ix *Index) Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := index.CheckDimension(e.ID, e.Vector, ix.cfg.Dimension); err != nil {
			return err
		}
	}
	if err := ix.ensure(ctx, namespace); err != nil {
		return err
	}

	columns, err := buildColumns(entries, ix.cfg.Dimension)
	if err != nil {
		return err
	}

	name := ix.cfg.CollectionName(namespace)
	if _, err := ix.client.conn.Upsert(ctx, name, "", columns...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", name, err)
	}

	ix.logger.Debug().Str("collection", name).Int("count", len(entries)).Msg("upserted entries")
	return nil
}

// Search performs a TopK cosine similarity search
func (ix *Index) Search(ctx context.Context, namespace string, req index.SearchRequest) ([]model.SearchHit, error) {
	if err := index.CheckDimension("query", req.Vector, ix.cfg.Dimension); err != nil {
		return nil, err
	}
	if req.TopK <= 0 {
		return nil, nil
	}
	if err := ix.ensure(ctx, namespace); err != nil {
		return nil, err
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(ix.cfg.NProbe)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	name := ix.cfg.CollectionName(namespace)
	results, err := ix.client.conn.Search(
		ctx,
		name,
		nil,
		TenantExpr(req.Filter.TenantID),
		[]string{FieldID, FieldMetadata},
		[]entity.Vector{entity.FloatVector(req.Vector)},
		FieldEmbedding,
		entity.COSINE,
		req.TopK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}

	return parseResults(results)
}

// buildColumns converts entries into Milvus insert columns
func buildColumns(entries []model.IndexEntry, dim int) ([]entity.Column, error) {
	ids := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	tenants := make([]string, len(entries))
	strategies := make([]string, len(entries))
	tiers := make([]string, len(entries))
	metadata := make([]string, len(entries))

	for i, e := range entries {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata of %s: %w", e.ID, err)
		}
		if len(raw) > maxMetadataLength {
			return nil, fmt.Errorf("metadata of %s exceeds %d bytes", e.ID, maxMetadataLength)
		}

		ids[i] = e.ID
		embeddings[i] = e.Vector
		tenants[i] = e.Metadata.TenantID
		strategies[i] = e.Metadata.StrategyID
		tiers[i] = e.Metadata.Tier
		metadata[i] = string(raw)
	}

	return []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dim, embeddings),
		entity.NewColumnVarChar(FieldTenantID, tenants),
		entity.NewColumnVarChar(FieldStrategyID, strategies),
		entity.NewColumnVarChar(FieldTier, tiers),
		entity.NewColumnVarChar(FieldMetadata, metadata),
	}, nil
}

// parseResults turns the result set of a single query vector into hits
func parseResults(results []client.SearchResult) ([]model.SearchHit, error) {
	if len(results) == 0 {
		return []model.SearchHit{}, nil
	}
	res := results[0]
	if res.Err != nil {
		return nil, fmt.Errorf("search failed: %w", res.Err)
	}

	hits := make([]model.SearchHit, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		hits[i].Score = float64(res.Scores[i])
	}

	if ids, ok := res.IDs.(*entity.ColumnVarChar); ok {
		for i := 0; i < res.ResultCount; i++ {
			hits[i].ID, _ = ids.ValueByIdx(i)
		}
	}

	for _, field := range res.Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		for i := 0; i < res.ResultCount; i++ {
			val, err := col.ValueByIdx(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", field.Name(), err)
			}
			switch field.Name() {
			case FieldID:
				hits[i].ID = val
			case FieldMetadata:
				if err := json.Unmarshal([]byte(val), &hits[i].Metadata); err != nil {
					return nil, fmt.Errorf("failed to decode metadata of %s: %w", hits[i].ID, err)
				}
			}
		}
	}

	return hits, nil
}
