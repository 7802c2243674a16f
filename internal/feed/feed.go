// Package feed hosts tick sources that push trades into the tick store.
package feed

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
)

const (
	// ProviderStub emits deterministic synthetic ticks (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live trades from Binance public websockets.
	ProviderBinance = "binance"
)

// Sink receives every decoded tick. TickStore.AddTick satisfies it.
type Sink interface {
	AddTick(market.Tick)
}

// Feed represents a pluggable market data stream implementation. The feed is
// responsible for filtering malformed messages before they reach the sink.
type Feed struct {
	provider string
	symbols  []string
	sink     Sink
	log      zerolog.Logger
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, sink Sink, log zerolog.Logger) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		sink:     sink,
		log:      log,
	}
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(strings.ToUpper(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
	return f
}

// Run streams ticks into the sink until the context is canceled.
func (f *Feed) Run(ctx context.Context) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx)
	default:
		return f.runStub(ctx)
	}
}

func (f *Feed) runStub(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			step++
			for i, sym := range f.symbols {
				px := 100*float64(i+1) + 5*math.Sin(float64(step)*0.05+float64(i))
				f.sink.AddTick(market.Tick{
					Timestamp: float64(ts.UnixNano()) / 1e9,
					Symbol:    sym,
					Price:     px,
					Quantity:  1,
				})
				metrics.TicksTotal.WithLabelValues(sym).Inc()
			}
		}
	}
}
