package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tunogya/spi/pkg/model"
)

// Subject constants
const (
	SubjectBacktestCompleted = "spi.backtests.completed"
	SubjectStrategyUpdated   = "spi.strategies.updated"
	SubjectRegimeObserved    = "spi.regimes.observed"
)

// Subjects returns every subject carried by the stream
func Subjects() []string {
	return []string{SubjectBacktestCompleted, SubjectStrategyUpdated, SubjectRegimeObserved}
}

// StrategyEventMsg announces that a strategy or one of its backtests changed
// and the strategy must be re-ingested
type StrategyEventMsg struct {
	EventID    string    `json:"event_id"`
	StrategyID string    `json:"strategy_id"`
	TenantID   string    `json:"tenant_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewStrategyEvent creates a strategy event with a fresh event id
func NewStrategyEvent(strategyID, tenantID string) StrategyEventMsg {
	return StrategyEventMsg{
		EventID:    uuid.NewString(),
		StrategyID: strategyID,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
	}
}

// RegimeObservedMsg carries newly detected regime snapshots
type RegimeObservedMsg struct {
	EventID   string                 `json:"event_id"`
	Snapshots []model.RegimeSnapshot `json:"snapshots"`
}

// NewRegimeObserved creates a regime event with a fresh event id
func NewRegimeObserved(snapshots []model.RegimeSnapshot) RegimeObservedMsg {
	return RegimeObservedMsg{
		EventID:   uuid.NewString(),
		Snapshots: snapshots,
	}
}

// Encode serializes a message to JSON bytes
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeStrategyEvent deserializes a StrategyEventMsg
func DecodeStrategyEvent(data []byte) (*StrategyEventMsg, error) {
	var msg StrategyEventMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.StrategyID == "" {
		return nil, fmt.Errorf("strategy event %s has no strategy_id", msg.EventID)
	}
	return &msg, nil
}

// DecodeRegimeObserved deserializes a RegimeObservedMsg
func DecodeRegimeObserved(data []byte) (*RegimeObservedMsg, error) {
	var msg RegimeObservedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
