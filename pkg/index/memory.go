package index

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/tunogya/spi/pkg/model"
)

// MemoryIndex is an exact, in-process VectorIndex using cosine similarity.
// It backs tests and single-node deployments without Milvus.
type MemoryIndex struct {
	dim        int
	mu         sync.RWMutex
	namespaces map[string]map[string]model.IndexEntry
}

// NewMemoryIndex creates an empty in-memory index for vectors of the given dimension
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:        dim,
		namespaces: make(map[string]map[string]model.IndexEntry),
	}
}

// Upsert inserts or replaces entries by id
func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error {
	for _, e := range entries {
		if err := CheckDimension(e.ID, e.Vector, m.dim); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]model.IndexEntry)
		m.namespaces[namespace] = ns
	}
	for _, e := range entries {
		e.Namespace = namespace
		e.Vector = e.Vector.Copy()
		ns[e.ID] = e
	}

	return nil
}

// Search performs an exhaustive TopK cosine similarity search
func (m *MemoryIndex) Search(ctx context.Context, namespace string, req SearchRequest) ([]model.SearchHit, error) {
	if err := CheckDimension("query", req.Vector, m.dim); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.TopK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	hits := make([]model.SearchHit, 0, len(m.namespaces[namespace]))
	for _, e := range m.namespaces[namespace] {
		if !req.Filter.Matches(e.Metadata) {
			continue
		}
		hits = append(hits, model.SearchHit{
			ID:       e.ID,
			Score:    Cosine(req.Vector, e.Vector),
			Metadata: e.Metadata,
		})
	}
	m.mu.RUnlock()

	// Sort by score (descending), id breaks ties
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > req.TopK {
		hits = hits[:req.TopK]
	}
	return hits, nil
}

// Get returns a stored entry
func (m *MemoryIndex) Get(namespace, id string) (model.IndexEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.namespaces[namespace][id]
	return e, ok
}

// Len returns the number of entries in a namespace
func (m *MemoryIndex) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

// Cosine returns the cosine similarity of two vectors, 0 when either is zero
// or their lengths differ
func Cosine(a, b model.FeatureVector) float64 {
	if len(a) != len(b) {
		return 0
	}
	x, y := a.ToFloat64(), b.ToFloat64()
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}
