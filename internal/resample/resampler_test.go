package resample

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/config"
	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

func tick(ts, price, qty float64) market.Tick {
	return market.Tick{Timestamp: ts, Symbol: "AAA", Price: price, Quantity: qty}
}

func TestResampleTicksOHLCV(t *testing.T) {
	ticks := []market.Tick{
		tick(0, 10, 1),
		tick(3, 12, 2),
		tick(7, 8, 1),
		tick(9, 11, 4),
	}
	bars := ResampleTicks(ticks, 10)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	b := bars[0]
	if b.Timestamp != 0 {
		t.Fatalf("bucket start should be 0, got %d", b.Timestamp)
	}
	if b.Open != 10 || b.High != 12 || b.Low != 8 || b.Close != 11 {
		t.Fatalf("unexpected OHLC: %+v", b)
	}
	if b.Volume != 8 {
		t.Fatalf("expected volume 8, got %f", b.Volume)
	}
	wantVWAP := (10*1 + 12*2 + 8*1 + 11*4) / 8.0
	if math.Abs(b.VWAP-wantVWAP) > 1e-12 {
		t.Fatalf("expected vwap %f, got %f", wantVWAP, b.VWAP)
	}
}

func TestResampleTicksEmptyBucketsOmitted(t *testing.T) {
	var ticks []market.Tick
	for ts := 0; ts <= 9; ts++ {
		ticks = append(ticks, tick(float64(ts), 10, 1))
	}
	for ts := 20; ts <= 25; ts++ {
		ticks = append(ticks, tick(float64(ts), 11, 1))
	}
	bars := ResampleTicks(ticks, 10)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d: %+v", len(bars), bars)
	}
	if bars[0].Timestamp != 0 || bars[1].Timestamp != 20 {
		t.Fatalf("no bar may exist for the empty [10,20) bucket: %+v", bars)
	}
}

func TestResampleTicksUnorderedInput(t *testing.T) {
	ticks := []market.Tick{
		tick(5, 20, 1),
		tick(1, 10, 1), // earliest in time, arrives second
		tick(9, 30, 1),
	}
	bars := ResampleTicks(ticks, 10)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Open != 10 || bars[0].Close != 30 {
		t.Fatalf("open/close must follow time order: %+v", bars[0])
	}
}

func TestResampleTicksZeroQuantityVWAP(t *testing.T) {
	bars := ResampleTicks([]market.Tick{tick(0, 15, 0)}, 10)
	if len(bars) != 1 || bars[0].VWAP != 15 {
		t.Fatalf("zero-volume bucket should fall back to close for vwap: %+v", bars)
	}
}

func TestProcessPendingWritesBarsAndIsIdempotent(t *testing.T) {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	for ts := 0; ts < 30; ts++ {
		st.AddTick(tick(float64(ts), 10+float64(ts%3), 1))
	}
	agg := NewAggregator(st, config.Resample{
		Intervals:  map[string]int{"10s": 10},
		TickWindow: 1000,
	}, zerolog.Nop())

	agg.ProcessPending()
	first := st.GetBars("AAA", "10s")
	if len(first) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(first))
	}

	// force the cadence to elapse and reprocess the same ticks
	agg.now = func() time.Time { return time.Now().Add(time.Minute) }
	agg.ProcessPending()
	second := st.GetBars("AAA", "10s")
	if len(second) != len(first) {
		t.Fatalf("recomputation must be idempotent: %d vs %d bars", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bar %d changed on recomputation: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestProcessPendingHonorsCadence(t *testing.T) {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	st.AddTick(tick(0, 10, 1))
	st.AddTick(tick(1, 11, 1))
	agg := NewAggregator(st, config.Resample{
		Intervals:  map[string]int{"1m": 60},
		TickWindow: 1000,
	}, zerolog.Nop())

	agg.ProcessPending()
	if len(st.GetBars("AAA", "1m")) != 1 {
		t.Fatalf("first pass should emit a bar")
	}

	// a fresh tick arrives, but the 30s cadence for 1m bars has not elapsed
	st.AddTick(tick(2, 99, 1))
	agg.ProcessPending()
	if st.GetBars("AAA", "1m")[0].Close == 99 {
		t.Fatalf("pair resampled before half the interval elapsed")
	}
}
