package nats

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/model"
)

// StrategyIngester re-indexes a strategy, dropping any cached copy first
type StrategyIngester interface {
	IngestStrategy(ctx context.Context, strategyID string) error
}

// RegimeIngester indexes regime snapshots
type RegimeIngester interface {
	IngestRegimes(ctx context.Context, snapshots []model.RegimeSnapshot) error
}

// RegimeRecorder persists regime history. Optional.
type RegimeRecorder interface {
	SaveBatch(ctx context.Context, snapshots []model.RegimeSnapshot) error
}

// Handlers turns event payloads into ingestion calls
type Handlers struct {
	Strategies StrategyIngester
	Regimes    RegimeIngester
	Recorder   RegimeRecorder
	Logger     zerolog.Logger
}

// HandleStrategyEvent re-ingests the strategy named by the event.
// Malformed payloads and unknown strategies are permanent failures.
func (h *Handlers) HandleStrategyEvent(ctx context.Context, data []byte) error {
	msg, err := DecodeStrategyEvent(data)
	if err != nil {
		return Permanent(err)
	}

	if err := h.Strategies.IngestStrategy(ctx, msg.StrategyID); err != nil {
		if model.IsNotFound(err) {
			return Permanent(err)
		}
		return err
	}

	h.Logger.Debug().Str("event_id", msg.EventID).Str("strategy_id", msg.StrategyID).Msg("strategy re-ingested")
	return nil
}

// HandleRegimeObserved records and indexes the snapshots of the event
func (h *Handlers) HandleRegimeObserved(ctx context.Context, data []byte) error {
	msg, err := DecodeRegimeObserved(data)
	if err != nil {
		return Permanent(err)
	}
	if len(msg.Snapshots) == 0 {
		return nil
	}

	if h.Recorder != nil {
		if err := h.Recorder.SaveBatch(ctx, msg.Snapshots); err != nil {
			return err
		}
	}
	if err := h.Regimes.IngestRegimes(ctx, msg.Snapshots); err != nil {
		return err
	}

	h.Logger.Debug().Str("event_id", msg.EventID).Int("count", len(msg.Snapshots)).Msg("regimes ingested")
	return nil
}
