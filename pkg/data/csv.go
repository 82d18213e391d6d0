package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tunogya/spi/pkg/model"
)

// Accepted header names per candle field, first match wins
var csvColumns = map[string][]string{
	"open_time":  {"open_time", "timestamp", "time"},
	"close_time": {"close_time"},
	"open":       {"open"},
	"high":       {"high"},
	"low":        {"low"},
	"close":      {"close"},
	"volume":     {"volume"},
	"trades":     {"trades", "number_of_trades"},
	"symbol":     {"symbol"},
	"timeframe":  {"timeframe", "interval"},
}

// CSVResult is the outcome of reading a candle export
type CSVResult struct {
	Candles []model.Candle
	Skipped int // rows with an unparseable time or price
}

// ReadCandles reads kline rows with a header line. Timestamps may be unix
// milliseconds or RFC 3339. Rows without symbol or timeframe columns are stamped
// with the given values, and a missing close time is derived from the timeframe.
func ReadCandles(r io.Reader, symbol, timeframe string) (*CSVResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := mapColumns(header)
	if _, ok := cols["open_time"]; !ok {
		return nil, fmt.Errorf("CSV header has no open time column: %v", header)
	}

	res := &CSVResult{}
	step := TimeframeDuration(timeframe)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := csvRow{record: record, cols: cols}
		candle, ok := row.candle(step)
		if !ok {
			res.Skipped++
			continue
		}
		if candle.Symbol == "" {
			candle.Symbol = symbol
		}
		if candle.Timeframe == "" {
			candle.Timeframe = timeframe
		}
		res.Candles = append(res.Candles, candle)
	}

	return res, nil
}

func mapColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(csvColumns))
	for field, names := range csvColumns {
		for _, name := range names {
			if i, ok := index[name]; ok {
				cols[field] = i
				break
			}
		}
	}
	return cols
}

type csvRow struct {
	record []string
	cols   map[string]int
}

func (r csvRow) get(field string) string {
	if i, ok := r.cols[field]; ok && i < len(r.record) {
		return strings.TrimSpace(r.record[i])
	}
	return ""
}

func (r csvRow) float(field string) (float64, bool) {
	v, err := strconv.ParseFloat(r.get(field), 64)
	return v, err == nil
}

func (r csvRow) candle(step time.Duration) (model.Candle, bool) {
	openTime, ok := parseCSVTime(r.get("open_time"))
	if !ok {
		return model.Candle{}, false
	}
	closeTime, ok := parseCSVTime(r.get("close_time"))
	if !ok {
		closeTime = openTime.Add(step)
	}

	c := model.Candle{
		Symbol:    r.get("symbol"),
		Timeframe: r.get("timeframe"),
		OpenTime:  openTime,
		CloseTime: closeTime,
	}
	var okO, okH, okL, okC bool
	c.Open, okO = r.float("open")
	c.High, okH = r.float("high")
	c.Low, okL = r.float("low")
	c.Close, okC = r.float("close")
	if !okO || !okH || !okL || !okC {
		return model.Candle{}, false
	}
	c.Volume, _ = r.float("volume")
	c.Trades, _ = strconv.ParseInt(r.get("trades"), 10, 64)

	return c, true
}

func parseCSVTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// TimeframeDuration parses timeframes like "15m", "4h", "1d" or "1w".
// Unknown values count as one minute.
func TimeframeDuration(tf string) time.Duration {
	if len(tf) < 2 {
		return time.Minute
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return time.Minute
	}

	unit := map[byte]time.Duration{
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[tf[len(tf)-1]]
	if unit == 0 {
		return time.Minute
	}
	return time.Duration(n) * unit
}

// CSVProvider implements CandleProvider over a candle export loaded on first use
type CSVProvider struct {
	open func() (io.ReadCloser, error)

	once   sync.Once
	result *CSVResult
	err    error
}

// NewCSVProvider creates a provider reading from a file
func NewCSVProvider(filePath string) *CSVProvider {
	return &CSVProvider{open: func() (io.ReadCloser, error) { return os.Open(filePath) }}
}

// NewCSVReaderProvider creates a provider over an already open reader
func NewCSVReaderProvider(r io.Reader) *CSVProvider {
	return &CSVProvider{open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

func (p *CSVProvider) load(symbol, timeframe string) (*CSVResult, error) {
	p.once.Do(func() {
		rc, err := p.open()
		if err != nil {
			p.err = fmt.Errorf("failed to open CSV file: %w", err)
			return
		}
		defer rc.Close()
		p.result, p.err = ReadCandles(rc, symbol, timeframe)
	})
	return p.result, p.err
}

// Skipped returns the number of rows dropped while loading
func (p *CSVProvider) Skipped() int {
	if p.result == nil {
		return 0
	}
	return p.result.Skipped
}

// FetchCandles returns the loaded candles within [start, end]. Zero bounds leave that
// side of the range open. The first call's symbol and timeframe stamp rows that lack them.
func (p *CSVProvider) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]model.Candle, error) {
	res, err := p.load(symbol, timeframe)
	if err != nil {
		return nil, err
	}

	var out []model.Candle
	for _, c := range res.Candles {
		if !start.IsZero() && c.OpenTime.Before(start) {
			continue
		}
		if !end.IsZero() && c.OpenTime.After(end) {
			continue
		}
		if symbol != "" && c.Symbol != symbol {
			continue
		}
		if timeframe != "" && c.Timeframe != timeframe {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
