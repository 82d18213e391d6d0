package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tunogya/spi/pkg/model"
)

// Seed is a JSON document of strategies and their backtests
type Seed struct {
	Strategies []model.StrategyRecord `json:"strategies"`
	Backtests  []model.BacktestRecord `json:"backtests"`
}

// ReadSeed decodes a seed document into a new MemoryStore
func ReadSeed(r io.Reader) (*MemoryStore, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}

	store := NewMemoryStore()
	for _, s := range seed.Strategies {
		if s.ID == "" {
			return nil, fmt.Errorf("seed strategy %q has no id", s.Name)
		}
		store.PutStrategy(s)
	}
	store.AddBacktests(seed.Backtests...)
	return store, nil
}

// LoadSeedFile reads a seed document from disk
func LoadSeedFile(path string) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}
