// Package index defines the similarity index contract the engine is built on.
package index

import (
	"context"
	"fmt"

	"github.com/tunogya/spi/pkg/model"
)

// MaxLimit caps the number of results any query may ask for
const MaxLimit = 100

// ClampLimit returns def for a non-positive limit and MaxLimit for anything above it
func ClampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Filter restricts a search to one tenant's entries. An empty TenantID matches
// only entries stored without a tenant.
type Filter struct {
	TenantID string `json:"tenantId"`
}

// Matches returns true if the metadata belongs to the filter's tenant
func (f Filter) Matches(md model.Metadata) bool {
	return md.TenantID == f.TenantID
}

// SearchRequest is a nearest-neighbour query
type SearchRequest struct {
	Vector model.FeatureVector
	TopK   int
	Filter Filter
}

// VectorIndex is a keyed store of fixed-dimension vectors queryable by nearest-neighbour search.
// Search results are ordered by descending score.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error
	Search(ctx context.Context, namespace string, req SearchRequest) ([]model.SearchHit, error)
}

// DimensionError reports a vector whose length differs from the index dimension
type DimensionError struct {
	ID   string
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector %q has dimension %d, index expects %d", e.ID, e.Got, e.Want)
}

// CheckDimension validates a vector against the expected dimension
func CheckDimension(id string, v model.FeatureVector, dim int) error {
	if v.Dim() != dim {
		return &DimensionError{ID: id, Got: v.Dim(), Want: dim}
	}
	return nil
}
