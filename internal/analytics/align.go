// Package analytics derives hedge ratios, spreads, z-scores, stationarity
// tests, and correlation structure from resampled bar data.
package analytics

import (
	"sort"

	"pairwatch/internal/market"
)

// Series is a timestamp-indexed value series produced by an analytics call.
// It lives only for the duration of that call and is never cached.
type Series struct {
	Timestamps []int64   `json:"timestamps"`
	Values     []float64 `json:"values"`
}

// Len reports the number of points in the series.
func (s Series) Len() int { return len(s.Values) }

// Last returns the final value, or ok=false for an empty series.
func (s Series) Last() (float64, bool) {
	if len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}

// alignPair inner-joins two bar series on exact timestamp and returns the
// matched timestamps plus both close columns. Unmatched rows are dropped.
func alignPair(bars1, bars2 []market.Bar) (ts []int64, close1, close2 []float64) {
	if len(bars1) == 0 || len(bars2) == 0 {
		return nil, nil, nil
	}
	byTS := make(map[int64]float64, len(bars2))
	for _, b := range bars2 {
		byTS[b.Timestamp] = b.Close
	}
	for _, b := range bars1 {
		c2, ok := byTS[b.Timestamp]
		if !ok {
			continue
		}
		ts = append(ts, b.Timestamp)
		close1 = append(close1, b.Close)
		close2 = append(close2, c2)
	}
	return ts, close1, close2
}

// alignSymbols intersects every symbol's bar series by timestamp; only rows
// where all symbols have a bar survive. Returns the surviving timestamps and
// one close column per symbol, in symbol order.
func alignSymbols(series map[string][]market.Bar, symbols []string) ([]int64, [][]float64) {
	if len(symbols) == 0 {
		return nil, nil
	}
	closeByTS := make([]map[int64]float64, len(symbols))
	for i, sym := range symbols {
		bars := series[sym]
		if len(bars) == 0 {
			return nil, nil
		}
		m := make(map[int64]float64, len(bars))
		for _, b := range bars {
			m[b.Timestamp] = b.Close
		}
		closeByTS[i] = m
	}

	var ts []int64
	for candidate := range closeByTS[0] {
		present := true
		for _, m := range closeByTS[1:] {
			if _, ok := m[candidate]; !ok {
				present = false
				break
			}
		}
		if present {
			ts = append(ts, candidate)
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	columns := make([][]float64, len(symbols))
	for i := range symbols {
		col := make([]float64, len(ts))
		for j, t := range ts {
			col[j] = closeByTS[i][t]
		}
		columns[i] = col
	}
	return ts, columns
}
