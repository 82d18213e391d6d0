package data

import (
	"context"
	"sort"
	"sync"

	"github.com/tunogya/spi/pkg/model"
)

// MemoryStore implements StrategyReader and BacktestReader with in-memory storage
type MemoryStore struct {
	mu         sync.RWMutex
	strategies map[string]model.StrategyRecord
	backtests  map[string][]model.BacktestRecord
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strategies: make(map[string]model.StrategyRecord),
		backtests:  make(map[string][]model.BacktestRecord),
	}
}

// PutStrategy adds or replaces a strategy
func (s *MemoryStore) PutStrategy(strategy model.StrategyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strategy.ID] = strategy
}

// AddBacktests appends backtests to their strategies
func (s *MemoryStore) AddBacktests(backtests ...model.BacktestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range backtests {
		s.backtests[b.StrategyID] = append(s.backtests[b.StrategyID], b)
	}
}

// FindByID implements StrategyReader
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.StrategyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	strategy, ok := s.strategies[id]
	if !ok {
		return nil, nil
	}
	return &strategy, nil
}

// FindByStrategyID implements BacktestReader
func (s *MemoryStore) FindByStrategyID(ctx context.Context, strategyID string) ([]model.BacktestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backtests := make([]model.BacktestRecord, len(s.backtests[strategyID]))
	copy(backtests, s.backtests[strategyID])
	return backtests, nil
}

// ListIDs returns the ids of a tenant's strategies, or of all strategies when tenantID is empty
func (s *MemoryStore) ListIDs(ctx context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.strategies))
	for id, strategy := range s.strategies {
		if tenantID == "" || strategy.TenantID == tenantID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
