// Package store provides thread-safe tick and bar storage with optional durable backing.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
)

// TickRepository is the durable backing for raw ticks, keyed by (symbol, timestamp).
type TickRepository interface {
	Upsert(tick market.Tick) error
	DeleteBefore(cutoff float64) error
	Close() error
}

// TickStore owns the in-memory tick buffers and resampled bar series.
// A single coarse mutex guards every read and write path; each critical
// section is bounded by a copy or sort over a capped buffer. Per-symbol
// sharding is the scaling path if contention ever becomes measurable.
type TickStore struct {
	mu       sync.Mutex
	maxTicks int
	ticks    map[string][]market.Tick
	bars     map[string]map[string][]market.Bar
	repo     TickRepository
	log      zerolog.Logger
}

// NewTickStore builds a store bounded to maxTicks per symbol. repo may be nil
// for memory-only operation.
func NewTickStore(maxTicks int, repo TickRepository, log zerolog.Logger) *TickStore {
	if maxTicks <= 0 {
		maxTicks = 100_000
	}
	return &TickStore{
		maxTicks: maxTicks,
		ticks:    make(map[string][]market.Tick),
		bars:     make(map[string]map[string][]market.Bar),
		repo:     repo,
		log:      log,
	}
}

// AddTick appends a tick to the symbol's bounded FIFO buffer and upserts it
// into the durable table. A durable-write failure is logged and does not roll
// back the in-memory append.
func (s *TickStore) AddTick(tick market.Tick) {
	s.mu.Lock()
	buf := append(s.ticks[tick.Symbol], tick)
	if len(buf) > s.maxTicks {
		buf = buf[len(buf)-s.maxTicks:]
	}
	s.ticks[tick.Symbol] = buf
	metrics.BufferedTicks.WithLabelValues(tick.Symbol).Set(float64(len(buf)))

	if s.repo != nil {
		if err := s.repo.Upsert(tick); err != nil {
			metrics.PersistErrorsTotal.Inc()
			s.log.Error().Err(err).Str("symbol", tick.Symbol).Msg("durable tick upsert failed")
		}
	}
	s.mu.Unlock()
}

// GetTicks returns an ascending-time snapshot copy of up to limit most recent
// ticks for the symbol. limit <= 0 returns the full buffer.
func (s *TickStore) GetTicks(symbol string, limit int) []market.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.ticks[symbol]
	if limit > 0 && len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	out := make([]market.Tick, len(buf))
	copy(out, buf)
	return out
}

// AddBars merges barSet into the existing (symbol, interval) series: rows are
// unioned, duplicate timestamps resolved in favor of the newly supplied row,
// and the result re-sorted ascending. Applying the same barSet twice yields
// the identical series as applying it once.
func (s *TickStore) AddBars(symbol, interval string, barSet []market.Bar) {
	if len(barSet) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byInterval := s.bars[symbol]
	if byInterval == nil {
		byInterval = make(map[string][]market.Bar)
		s.bars[symbol] = byInterval
	}

	merged := make(map[int64]market.Bar, len(byInterval[interval])+len(barSet))
	for _, b := range byInterval[interval] {
		merged[b.Timestamp] = b
	}
	for _, b := range barSet {
		merged[b.Timestamp] = b // new row wins
	}

	series := make([]market.Bar, 0, len(merged))
	for _, b := range merged {
		series = append(series, b)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Timestamp < series[j].Timestamp })
	byInterval[interval] = series
}

// GetBars returns a snapshot copy of the full current series for
// (symbol, interval); empty if none exists.
func (s *TickStore) GetBars(symbol, interval string) []market.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.bars[symbol][interval]
	out := make([]market.Bar, len(series))
	copy(out, series)
	return out
}

// GetSymbols lists symbols with any buffered ticks or bar series, sorted for
// determinism. Uploaded OHLCV counts even when no tick was ever seen.
func (s *TickStore) GetSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.ticks))
	for sym, buf := range s.ticks {
		if len(buf) > 0 {
			seen[sym] = struct{}{}
		}
	}
	for sym, byInterval := range s.bars {
		for _, series := range byInterval {
			if len(series) > 0 {
				seen[sym] = struct{}{}
				break
			}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// EvictExpired removes ticks older than now-retention from memory and from the
// durable table. Durable delete failure degrades to memory-only eviction.
func (s *TickStore) EvictExpired(retention time.Duration) {
	cutoff := float64(time.Now().Add(-retention).UnixNano()) / 1e9

	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, buf := range s.ticks {
		idx := 0
		for idx < len(buf) && buf[idx].Timestamp < cutoff {
			idx++
		}
		if idx > 0 {
			s.ticks[sym] = append([]market.Tick(nil), buf[idx:]...)
			metrics.BufferedTicks.WithLabelValues(sym).Set(float64(len(s.ticks[sym])))
		}
	}

	if s.repo != nil {
		if err := s.repo.DeleteBefore(cutoff); err != nil {
			metrics.PersistErrorsTotal.Inc()
			s.log.Error().Err(err).Msg("durable tick retention sweep failed")
		}
	}
}

// Close releases the durable backing, if any.
func (s *TickStore) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}
