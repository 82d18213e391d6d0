package index

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/model"
)

func entry(id, tenant string, v ...float32) model.IndexEntry {
	return model.IndexEntry{
		ID:       id,
		Vector:   model.FeatureVector(v),
		Metadata: model.Metadata{TenantID: tenant, StrategyID: id},
	}
}

func TestMemoryIndex_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{
		entry("far", "t1", 0, 0, 1),
		entry("near", "t1", 1, 0.1, 0),
		entry("mid", "t1", 1, 1, 0),
	}))

	hits, err := idx.Search(ctx, model.NamespaceStrategies, SearchRequest{
		Vector: model.FeatureVector{1, 0, 0},
		TopK:   10,
		Filter: Filter{TenantID: "t1"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)
	assert.Equal(t, "far", hits[2].ID)
	assert.InDelta(t, 0, hits[2].Score, 1e-9)
}

func TestMemoryIndex_TenantFilterAndTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{
		entry("a", "t1", 1, 0),
		entry("b", "t2", 1, 0),
		entry("c", "t1", 0.9, 0.1),
	}))

	hits, err := idx.Search(ctx, model.NamespaceStrategies, SearchRequest{
		Vector: model.FeatureVector{1, 0},
		TopK:   1,
		Filter: Filter{TenantID: "t1"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestMemoryIndex_EmptyTenantIsNotAWildcard(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{
		entry("secret", "acme", 1, 0),
		entry("shared", "", 1, 0),
	}))

	hits, err := idx.Search(ctx, model.NamespaceStrategies, SearchRequest{Vector: model.FeatureVector{1, 0}, TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "shared", hits[0].ID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, ClampLimit(0, 5))
	assert.Equal(t, 5, ClampLimit(-3, 5))
	assert.Equal(t, 7, ClampLimit(7, 5))
	assert.Equal(t, MaxLimit, ClampLimit(MaxLimit+1, 5))
	assert.Equal(t, MaxLimit, ClampLimit(math.MaxInt, 5))
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{entry("a", "t1", 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{entry("a", "t1", 0, 1)}))

	assert.Equal(t, 1, idx.Len(model.NamespaceStrategies))
	e, ok := idx.Get(model.NamespaceStrategies, "a")
	require.True(t, ok)
	assert.Equal(t, model.FeatureVector{0, 1}, e.Vector)
}

func TestMemoryIndex_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, model.NamespaceRegimes, []model.IndexEntry{entry("r1", "t1", 1, 0)}))

	hits, err := idx.Search(ctx, model.NamespaceStrategies, SearchRequest{Vector: model.FeatureVector{1, 0}, TopK: 5, Filter: Filter{TenantID: "t1"}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	err := idx.Upsert(ctx, model.NamespaceStrategies, []model.IndexEntry{entry("a", "t1", 1, 0)})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search(ctx, model.NamespaceStrategies, SearchRequest{Vector: model.FeatureVector{1}, TopK: 1})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.Zero(t, Cosine(model.FeatureVector{0, 0}, model.FeatureVector{1, 0}))
	assert.Zero(t, Cosine(model.FeatureVector{1, 0}, model.FeatureVector{1, 0, 0}))
	assert.InDelta(t, 1, Cosine(model.FeatureVector{2, 0}, model.FeatureVector{1, 0}), 1e-9)
	assert.InDelta(t, -1, Cosine(model.FeatureVector{1, 0}, model.FeatureVector{-1, 0}), 1e-9)
	assert.InDelta(t, 0.6, Cosine(model.FeatureVector{1, 0}, model.FeatureVector{3, 4}), 1e-6)
}
