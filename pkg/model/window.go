package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Window is a contiguous run of candles from which one regime snapshot is derived
type Window struct {
	WindowID  string    `json:"window_id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TEnd      time.Time `json:"t_end"`
	W         int       `json:"w"`
	Candles   []Candle  `json:"candles"`
}

// GenerateWindowID creates a deterministic window ID.
// Format: hash(symbol|tf|t_end|W). Same parameters always produce the same ID, which keeps
// regime re-ingestion idempotent.
func GenerateWindowID(symbol, timeframe string, tEnd time.Time, w int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", symbol, timeframe, tEnd.Unix(), w)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// NewWindow creates a new Window with a generated ID
func NewWindow(symbol, timeframe string, tEnd time.Time, w int, candles []Candle) *Window {
	return &Window{
		WindowID:  GenerateWindowID(symbol, timeframe, tEnd, w),
		Symbol:    symbol,
		Timeframe: timeframe,
		TEnd:      tEnd,
		W:         w,
		Candles:   candles,
	}
}

// IsComplete returns true if the window has the expected number of candles
func (w *Window) IsComplete() bool {
	return len(w.Candles) == w.W
}

// LastCandle returns the last candle in the window
func (w *Window) LastCandle() *Candle {
	if len(w.Candles) == 0 {
		return nil
	}
	return &w.Candles[len(w.Candles)-1]
}
