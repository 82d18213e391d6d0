package model

// Recommendation is a strategy suggested for a market regime
type Recommendation struct {
	StrategyID     string   `json:"strategyId"`
	Name           string   `json:"name"`
	Confidence     float64  `json:"confidence"`
	ExpectedReturn *float64 `json:"expectedReturn,omitempty"`
	ExpectedSharpe *float64 `json:"expectedSharpe,omitempty"`
	Explanation    string   `json:"explanation"`
	Tier           string   `json:"tier,omitempty"`
}

// SimilarityResult is a strategy close to a source strategy
type SimilarityResult struct {
	StrategyID     string   `json:"strategyId"`
	Name           string   `json:"name"`
	Similarity     float64  `json:"similarity"`
	KeyDifferences []string `json:"keyDifferences"`
}

// Impact of a performance factor
const (
	ImpactPositive = "positive"
	ImpactNegative = "negative"
	ImpactNeutral  = "neutral"
)

// PerformanceFactor is one driver of a strategy's results
type PerformanceFactor struct {
	Factor      string `json:"factor"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
}

// RegimeInsight describes how a strategy relates to a historical regime
type RegimeInsight struct {
	Regime      string  `json:"regime"`
	Performance float64 `json:"performance"`
	Description string  `json:"description"`
}

// StrategyExplanation is the structured risk/performance profile of a strategy
type StrategyExplanation struct {
	StrategyID         string              `json:"strategyId"`
	Name               string              `json:"name"`
	Summary            string              `json:"summary"`
	PerformanceFactors []PerformanceFactor `json:"performanceFactors"`
	BestRegimes        []RegimeInsight     `json:"bestRegimes"`
	WorstRegimes       []RegimeInsight     `json:"worstRegimes"`
	RiskWarnings       []string            `json:"riskWarnings"`
	SimilarStrategies  []string            `json:"similarStrategies"`
}

// Performance is the sharpe/return pair used for regime matching
type Performance struct {
	SharpeRatio float64 `json:"sharpeRatio"`
	TotalReturn float64 `json:"totalReturn"`
}

// PerformanceThreshold holds optional minimums for regime matching
type PerformanceThreshold struct {
	SharpeRatio *float64 `json:"sharpeRatio,omitempty"`
	TotalReturn *float64 `json:"totalReturn,omitempty"`
}

// RegimeMatch is a strategy matched to a regime
type RegimeMatch struct {
	StrategyID  string      `json:"strategyId"`
	Name        string      `json:"name"`
	Performance Performance `json:"performance"`
	RegimeMatch float64     `json:"regimeMatch"`
}
