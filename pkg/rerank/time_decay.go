// Package rerank reorders index hits by recency.
package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/tunogya/spi/pkg/model"
)

// TimeDecayConfig holds configuration for time decay reranking
type TimeDecayConfig struct {
	Lambda float64 // exponential decay rate per day

	UseSegments  bool
	RecentDays   float64
	MediumDays   float64
	RecentWeight float64
	MediumWeight float64
	OldWeight    float64
}

// DefaultTimeDecayConfig returns an exponential decay halving weight roughly every 70 days
func DefaultTimeDecayConfig() TimeDecayConfig {
	return TimeDecayConfig{
		Lambda:       0.01,
		RecentDays:   7,
		MediumDays:   90,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// SegmentConfig returns a configuration using step weights
func SegmentConfig() TimeDecayConfig {
	cfg := DefaultTimeDecayConfig()
	cfg.UseSegments = true
	return cfg
}

// RankedHit is a hit with its recency-adjusted score
type RankedHit struct {
	model.SearchHit
	TimeWeight float64 `json:"timeWeight"`
	FinalScore float64 `json:"finalScore"`
}

// Reranker weights hit scores by the age of the indexed item
type Reranker struct {
	config TimeDecayConfig
}

// NewReranker creates a new reranker
func NewReranker(config TimeDecayConfig) *Reranker {
	return &Reranker{config: config}
}

// Rerank orders hits by score × time weight, descending. Age is measured from
// Metadata.CreatedAt; a zero timestamp gets the oldest weight.
func (r *Reranker) Rerank(hits []model.SearchHit, now time.Time) []RankedHit {
	ranked := make([]RankedHit, len(hits))

	for i, hit := range hits {
		weight := r.weight(hit.Metadata.CreatedAt, now)
		ranked[i] = RankedHit{
			SearchHit:  hit,
			TimeWeight: weight,
			FinalScore: hit.Score * weight,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked
}

// TopN returns the best n hits after reranking
func (r *Reranker) TopN(hits []model.SearchHit, now time.Time, n int) []RankedHit {
	ranked := r.Rerank(hits, now)
	if n < 0 || len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

func (r *Reranker) weight(at, now time.Time) float64 {
	if at.IsZero() {
		if r.config.UseSegments {
			return r.config.OldWeight
		}
		return 0
	}

	ageDays := math.Max(now.Sub(at).Hours()/24, 0)
	if !r.config.UseSegments {
		return math.Exp(-r.config.Lambda * ageDays)
	}

	switch {
	case ageDays <= r.config.RecentDays:
		return r.config.RecentWeight
	case ageDays <= r.config.MediumDays:
		return r.config.MediumWeight
	default:
		return r.config.OldWeight
	}
}

// FilterByMinScore keeps hits whose final score reaches minScore
func FilterByMinScore(ranked []RankedHit, minScore float64) []RankedHit {
	filtered := make([]RankedHit, 0, len(ranked))
	for _, r := range ranked {
		if r.FinalScore >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
