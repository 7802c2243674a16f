// Package export renders store and analytics data as CSV and accepts OHLCV
// uploads back into the store.
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pairwatch/internal/analytics"
	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

// Exporter serializes snapshots for download.
type Exporter struct {
	store     *store.TickStore
	analytics *analytics.Engine
}

// NewExporter wires the exporter against the store and analytics engine.
func NewExporter(st *store.TickStore, an *analytics.Engine) *Exporter {
	return &Exporter{store: st, analytics: an}
}

// TicksCSV renders the full tick buffer for a symbol. Empty string when no data.
func (e *Exporter) TicksCSV(symbol string) string {
	ticks := e.store.GetTicks(symbol, 0)
	if len(ticks) == 0 {
		return ""
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{"datetime", "symbol", "price", "quantity"})
	for _, tk := range ticks {
		_ = w.Write([]string{
			epochToRFC3339(tk.Timestamp),
			tk.Symbol,
			formatFloat(tk.Price),
			formatFloat(tk.Quantity),
		})
	}
	w.Flush()
	return sb.String()
}

// BarsCSV renders the resampled series for (symbol, interval).
func (e *Exporter) BarsCSV(symbol, interval string) string {
	bars := e.store.GetBars(symbol, interval)
	if len(bars) == 0 {
		return ""
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{"datetime", "open", "high", "low", "close", "volume", "vwap"})
	for _, b := range bars {
		_ = w.Write([]string{
			epochToRFC3339(float64(b.Timestamp)),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
			formatFloat(b.VWAP),
		})
	}
	w.Flush()
	return sb.String()
}

// AnalyticsCSV renders spread, z-score, and rolling correlation for a pair.
// Empty string when the pair has insufficient aligned data.
func (e *Exporter) AnalyticsCSV(symbol1, symbol2, interval string, window int) string {
	beta, ok := e.analytics.HedgeRatioOLS(symbol1, symbol2, interval)
	if !ok {
		return ""
	}
	spread, ok := e.analytics.Spread(symbol1, symbol2, interval, beta)
	if !ok || spread.Len() == 0 {
		return ""
	}
	zscore := analytics.RollingZScore(spread.Values, window)
	corr, _ := e.analytics.PairCorrelation(symbol1, symbol2, interval, window)

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{"timestamp", "spread", "zscore", "correlation"})
	for i, ts := range spread.Timestamps {
		corrVal := math.NaN()
		if i < len(corr.Values) {
			corrVal = corr.Values[i]
		}
		_ = w.Write([]string{
			strconv.FormatInt(ts, 10),
			formatFloat(spread.Values[i]),
			formatFloat(zscore[i]),
			formatFloat(corrVal),
		})
	}
	w.Flush()
	return sb.String()
}

// UploadOHLCV parses an uploaded CSV of bars and merges it into the store.
// The file must carry open/high/low/close/volume columns plus a timestamp or
// datetime column; rows that fail numeric coercion are dropped. Returns the
// number of bars merged.
func (e *Exporter) UploadOHLCV(body, symbol, interval string) (int, error) {
	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("no data rows")
	}

	cols := make(map[string]int)
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}
	tsCol, hasTS := cols["timestamp"]
	dtCol, hasDT := cols["datetime"]
	if !hasTS && !hasDT {
		return 0, fmt.Errorf("missing 'timestamp' or 'datetime' column")
	}

	var bars []market.Bar
	for _, row := range records[1:] {
		var ts int64
		var ok bool
		if hasTS {
			ts, ok = parseTimestamp(field(row, tsCol))
		} else {
			ts, ok = parseDatetime(field(row, dtCol))
		}
		if !ok {
			continue
		}
		open, ok1 := parseField(row, cols["open"])
		high, ok2 := parseField(row, cols["high"])
		low, ok3 := parseField(row, cols["low"])
		closePx, ok4 := parseField(row, cols["close"])
		volume, ok5 := parseField(row, cols["volume"])
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			continue
		}
		vwap := closePx
		if i, ok := cols["vwap"]; ok {
			if v, vok := parseField(row, i); vok {
				vwap = v
			}
		}
		bars = append(bars, market.Bar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    volume,
			VWAP:      vwap,
		})
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no valid data after processing")
	}
	e.store.AddBars(symbol, interval, bars)
	return len(bars), nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseField(row []string, i int) (float64, bool) {
	v, err := strconv.ParseFloat(field(row, i), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseTimestamp(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(secs), true
	}
	return parseDatetime(raw)
}

func parseDatetime(raw string) (int64, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func epochToRFC3339(secs float64) string {
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
