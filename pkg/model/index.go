package model

import "time"

// Index namespaces
const (
	NamespaceStrategies = "strategies"
	NamespaceRegimes    = "regimes"
)

// Metadata is the explicit schema stored alongside every index entry.
// Strategy entries fill the strategy fields; regime entries fill Regime and RegimeID.
type Metadata struct {
	TenantID        string             `json:"tenantId"`
	StrategyID      string             `json:"strategyId,omitempty"`
	Name            string             `json:"name,omitempty"`
	Tier            string             `json:"tier,omitempty"`
	BacktestMetrics BacktestMetrics    `json:"backtestMetrics"`
	Symbols         []string           `json:"symbols,omitempty"`
	Timeframe       string             `json:"timeframe,omitempty"`
	RegimeID        string             `json:"regimeId,omitempty"`
	Regime          *RegimeDescription `json:"regime,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// IndexEntry is one keyed vector in the similarity index
type IndexEntry struct {
	ID        string        `json:"id"`
	Vector    FeatureVector `json:"vector"`
	Namespace string        `json:"namespace"`
	Metadata  Metadata      `json:"metadata"`
}

// SearchHit is a single nearest-neighbour result
type SearchHit struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Similarity returns the hit score clamped to [0, 1]. Cosine scores below zero
// mean no resemblance and are reported as 0.
func (h SearchHit) Similarity() float64 {
	switch {
	case h.Score < 0:
		return 0
	case h.Score > 1:
		return 1
	default:
		return h.Score
	}
}

// HitStrategyID returns the strategy id recorded in the hit, falling back to the entry id
func (h SearchHit) HitStrategyID() string {
	if h.Metadata.StrategyID != "" {
		return h.Metadata.StrategyID
	}
	return h.ID
}
