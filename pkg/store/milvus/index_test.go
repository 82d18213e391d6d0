package milvus

import (
	"encoding/json"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunogya/spi/pkg/model"
)

func TestCollectionName(t *testing.T) {
	cfg := DefaultCollectionConfig()
	assert.Equal(t, "spi_strategies", cfg.CollectionName(model.NamespaceStrategies))

	cfg.Prefix = ""
	assert.Equal(t, "regimes", cfg.CollectionName(model.NamespaceRegimes))
}

func TestSchema(t *testing.T) {
	cfg := DefaultCollectionConfig()
	cfg.Dimension = 16

	schema := cfg.Schema(model.NamespaceStrategies)

	assert.Equal(t, "spi_strategies", schema.CollectionName)
	require.Len(t, schema.Fields, 6)
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.Equal(t, "16", schema.Fields[1].TypeParams["dim"])
}

func TestTenantExpr(t *testing.T) {
	assert.Equal(t, `tenant_id == ""`, TenantExpr(""))
	assert.Equal(t, `tenant_id == "acme"`, TenantExpr("acme"))
	assert.Equal(t, `tenant_id == "a\"b"`, TenantExpr(`a"b`))
}

func TestBuildColumns(t *testing.T) {
	entries := []model.IndexEntry{{
		ID:     "s1",
		Vector: model.FeatureVector{1, 0, 0, 0},
		Metadata: model.Metadata{
			TenantID:   "t1",
			StrategyID: "s1",
			Tier:       model.TierPro,
		},
	}}

	columns, err := buildColumns(entries, 4)
	require.NoError(t, err)
	require.Len(t, columns, 6)

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name()
		assert.Equal(t, 1, c.Len())
	}
	assert.Equal(t, []string{FieldID, FieldEmbedding, FieldTenantID, FieldStrategyID, FieldTier, FieldMetadata}, names)

	tier, err := columns[4].(*entity.ColumnVarChar).ValueByIdx(0)
	require.NoError(t, err)
	assert.Equal(t, model.TierPro, tier)
}

func TestParseResults(t *testing.T) {
	md := model.Metadata{TenantID: "t1", StrategyID: "s2", Name: "Momentum"}
	raw, err := json.Marshal(md)
	require.NoError(t, err)

	hits, err := parseResults([]client.SearchResult{{
		ResultCount: 1,
		Scores:      []float32{0.75},
		IDs:         entity.NewColumnVarChar(FieldID, []string{"s2"}),
		Fields: []entity.Column{
			entity.NewColumnVarChar(FieldMetadata, []string{string(raw)}),
		},
	}})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "s2", hits[0].ID)
	assert.InDelta(t, 0.75, hits[0].Score, 1e-6)
	assert.Equal(t, "Momentum", hits[0].Metadata.Name)
	assert.Equal(t, "s2", hits[0].HitStrategyID())
}

func TestParseResults_Empty(t *testing.T) {
	hits, err := parseResults(nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
