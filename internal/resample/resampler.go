// Package resample converts raw tick history into OHLCV bars per (symbol, interval).
package resample

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/config"
	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
	"pairwatch/internal/store"
)

// Aggregator periodically rebuilds bar series from the tick buffers. Each
// (symbol, interval) pair is recomputed on a cadence no faster than half the
// interval length; the merge in TickStore.AddBars makes repeated emission of
// already-finalized buckets harmless.
type Aggregator struct {
	store      *store.TickStore
	intervals  map[string]int
	tickWindow int
	log        zerolog.Logger
	lastRun    map[string]map[string]time.Time
	now        func() time.Time
}

// NewAggregator wires the resampler against the shared tick store.
func NewAggregator(st *store.TickStore, cfg config.Resample, log zerolog.Logger) *Aggregator {
	window := cfg.TickWindow
	if window <= 0 {
		window = 10_000
	}
	return &Aggregator{
		store:      st,
		intervals:  cfg.Intervals,
		tickWindow: window,
		log:        log,
		lastRun:    make(map[string]map[string]time.Time),
		now:        time.Now,
	}
}

// Run loops on the configured cadence until the context is canceled. Any
// failure inside a cycle is logged and never terminates the loop.
func (a *Aggregator) Run(ctx context.Context, loopInterval time.Duration) {
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("resampler stopped")
			return
		case <-ticker.C:
			a.ProcessPending()
		}
	}
}

// ProcessPending resamples every (symbol, interval) pair whose cadence has
// elapsed. A failure on one pair is logged and skipped; it does not block
// processing of the remaining pairs.
func (a *Aggregator) ProcessPending() {
	for _, symbol := range a.store.GetSymbols() {
		for name, secs := range a.intervals {
			if !a.due(symbol, name, secs) {
				continue
			}
			ticks := a.store.GetTicks(symbol, a.tickWindow)
			if len(ticks) < 2 {
				continue
			}
			bars := ResampleTicks(ticks, int64(secs))
			if len(bars) == 0 {
				continue
			}
			a.store.AddBars(symbol, name, bars)
			a.markRun(symbol, name)
			metrics.BarsBuiltTotal.WithLabelValues(symbol, name).Add(float64(len(bars)))
		}
	}
}

func (a *Aggregator) due(symbol, interval string, secs int) bool {
	byInterval := a.lastRun[symbol]
	if byInterval == nil {
		return true
	}
	last, ok := byInterval[interval]
	if !ok {
		return true
	}
	return a.now().Sub(last) >= time.Duration(secs)*time.Second/2
}

func (a *Aggregator) markRun(symbol, interval string) {
	byInterval := a.lastRun[symbol]
	if byInterval == nil {
		byInterval = make(map[string]time.Time)
		a.lastRun[symbol] = byInterval
	}
	byInterval[interval] = a.now()
}

// ResampleTicks partitions ticks into left-closed buckets of intervalSecs and
// computes OHLCV + VWAP per non-empty bucket. Buckets with no ticks are never
// emitted: gaps stay gaps.
func ResampleTicks(ticks []market.Tick, intervalSecs int64) []market.Bar {
	if len(ticks) == 0 || intervalSecs <= 0 {
		return nil
	}

	ordered := make([]market.Tick, len(ticks))
	copy(ordered, ticks)
	// stable: ties keep arrival order, so open/close pick the right tick
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	type bucketState struct {
		bar      market.Bar
		notional float64
	}
	buckets := make(map[int64]*bucketState)

	for _, tk := range ordered {
		start := bucketStart(tk.Timestamp, intervalSecs)
		b := buckets[start]
		if b == nil {
			b = &bucketState{bar: market.Bar{
				Timestamp: start,
				Open:      tk.Price,
				High:      tk.Price,
				Low:       tk.Price,
				Close:     tk.Price,
			}}
			buckets[start] = b
		}
		if tk.Price > b.bar.High {
			b.bar.High = tk.Price
		}
		if tk.Price < b.bar.Low {
			b.bar.Low = tk.Price
		}
		b.bar.Close = tk.Price
		b.bar.Volume += tk.Quantity
		b.notional += tk.Price * tk.Quantity
	}

	bars := make([]market.Bar, 0, len(buckets))
	for _, b := range buckets {
		if b.bar.Volume > 0 {
			b.bar.VWAP = b.notional / b.bar.Volume
		} else {
			b.bar.VWAP = b.bar.Close
		}
		bars = append(bars, b.bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	return bars
}

func bucketStart(ts float64, intervalSecs int64) int64 {
	sec := int64(ts)
	if ts < 0 && float64(sec) != ts {
		sec--
	}
	return (sec / intervalSecs) * intervalSecs
}
