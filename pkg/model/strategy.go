package model

import "time"

// Strategy tiers
const (
	TierFree = "free"
	TierPro  = "pro"
)

// BacktestStatusCompleted marks a backtest whose metrics are final
const BacktestStatusCompleted = "completed"

// StrategyRecord is a user-owned trading strategy as stored by the application
type StrategyRecord struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config,omitempty"`
	Status      string         `json:"status"`
	Tier        string         `json:"tier"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Symbols surfaces the "symbols" list from the free-form config
func (s *StrategyRecord) Symbols() []string {
	raw, ok := s.Config["symbols"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if sym, ok := item.(string); ok {
				out = append(out, sym)
			}
		}
		return out
	default:
		return nil
	}
}

// BacktestMetrics is the metrics bundle of a backtest. Nil fields are absent.
type BacktestMetrics struct {
	TotalReturn  *float64 `json:"totalReturn,omitempty"`
	SharpeRatio  *float64 `json:"sharpeRatio,omitempty"`
	MaxDrawdown  *float64 `json:"maxDrawdown,omitempty"`
	WinRate      *float64 `json:"winRate,omitempty"`
	TotalTrades  *int     `json:"totalTrades,omitempty"`
	ProfitFactor *float64 `json:"profitFactor,omitempty"`
}

// Score ranks backtests: sharpe × total return, absent values count as 0
func (m BacktestMetrics) Score() float64 {
	return Value(m.SharpeRatio) * Value(m.TotalReturn)
}

// IsEmpty returns true if no metric is present
func (m BacktestMetrics) IsEmpty() bool {
	return m.TotalReturn == nil && m.SharpeRatio == nil && m.MaxDrawdown == nil &&
		m.WinRate == nil && m.TotalTrades == nil && m.ProfitFactor == nil
}

// BacktestRecord is a single backtest run of a strategy
type BacktestRecord struct {
	ID          string          `json:"id"`
	StrategyID  string          `json:"strategy_id"`
	Status      string          `json:"status"`
	Metrics     BacktestMetrics `json:"metrics"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// IsCompleted returns true if the backtest finished
func (b *BacktestRecord) IsCompleted() bool {
	return b.Status == BacktestStatusCompleted
}

// CompletedBacktests filters backtests down to completed runs, preserving order
func CompletedBacktests(backtests []BacktestRecord) []BacktestRecord {
	completed := make([]BacktestRecord, 0, len(backtests))
	for _, b := range backtests {
		if b.IsCompleted() {
			completed = append(completed, b)
		}
	}
	return completed
}

// SelectBestBacktest returns the backtest with the highest Score.
// Ties keep the first one seen. Returns nil for an empty slice.
func SelectBestBacktest(backtests []BacktestRecord) *BacktestRecord {
	var best *BacktestRecord
	bestScore := 0.0

	for i := range backtests {
		score := backtests[i].Metrics.Score()
		if best == nil || score > bestScore {
			best = &backtests[i]
			bestScore = score
		}
	}

	return best
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// Value dereferences p, returning 0 when absent
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
