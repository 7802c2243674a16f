package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/market"
)

type fakeRepo struct {
	upserts []market.Tick
	deletes []float64
	fail    bool
}

func (f *fakeRepo) Upsert(tick market.Tick) error {
	if f.fail {
		return errors.New("db down")
	}
	f.upserts = append(f.upserts, tick)
	return nil
}

func (f *fakeRepo) DeleteBefore(cutoff float64) error {
	if f.fail {
		return errors.New("db down")
	}
	f.deletes = append(f.deletes, cutoff)
	return nil
}

func (f *fakeRepo) Close() error { return nil }

func newTestStore(maxTicks int, repo TickRepository) *TickStore {
	return NewTickStore(maxTicks, repo, zerolog.Nop())
}

func TestAddTickBoundedFIFO(t *testing.T) {
	s := newTestStore(3, nil)
	for i := 0; i < 5; i++ {
		s.AddTick(market.Tick{Timestamp: float64(i), Symbol: "AAA", Price: 1, Quantity: 1})
	}
	ticks := s.GetTicks("AAA", 0)
	if len(ticks) != 3 {
		t.Fatalf("expected 3 buffered ticks, got %d", len(ticks))
	}
	if ticks[0].Timestamp != 2 || ticks[2].Timestamp != 4 {
		t.Fatalf("oldest ticks not evicted: %+v", ticks)
	}
}

func TestGetTicksLimitAndSnapshot(t *testing.T) {
	s := newTestStore(100, nil)
	for i := 0; i < 10; i++ {
		s.AddTick(market.Tick{Timestamp: float64(i), Symbol: "AAA", Price: 1, Quantity: 1})
	}
	ticks := s.GetTicks("AAA", 4)
	if len(ticks) != 4 || ticks[0].Timestamp != 6 {
		t.Fatalf("expected 4 most recent ticks starting at ts=6, got %+v", ticks)
	}
	// mutating the snapshot must not affect the store
	ticks[0].Price = 999
	if s.GetTicks("AAA", 4)[0].Price == 999 {
		t.Fatalf("GetTicks returned a live view")
	}
}

func TestAddTickPersistFailureKeepsMemory(t *testing.T) {
	repo := &fakeRepo{fail: true}
	s := newTestStore(10, repo)
	s.AddTick(market.Tick{Timestamp: 1, Symbol: "AAA", Price: 2, Quantity: 3})
	if len(s.GetTicks("AAA", 0)) != 1 {
		t.Fatalf("in-memory append must survive a durable write failure")
	}
}

func TestAddBarsMergeIdempotent(t *testing.T) {
	s := newTestStore(10, nil)
	first := []market.Bar{
		{Timestamp: 0, Close: 1},
		{Timestamp: 60, Close: 2},
	}
	overlap := []market.Bar{
		{Timestamp: 60, Close: 5}, // new row wins
		{Timestamp: 120, Close: 3},
	}
	s.AddBars("AAA", "1m", first)
	s.AddBars("AAA", "1m", overlap)
	want := s.GetBars("AAA", "1m")

	s.AddBars("AAA", "1m", overlap) // reapply
	got := s.GetBars("AAA", "1m")
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("AddBars not idempotent: %+v vs %+v", want, got)
	}
	if len(got) != 3 || got[1].Close != 5 {
		t.Fatalf("duplicate timestamp must keep the newly supplied row: %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp <= got[i-1].Timestamp {
			t.Fatalf("series not strictly ascending: %+v", got)
		}
	}
}

func TestGetBarsEmptySeries(t *testing.T) {
	s := newTestStore(10, nil)
	if bars := s.GetBars("NONE", "1m"); len(bars) != 0 {
		t.Fatalf("expected empty series, got %+v", bars)
	}
}

func TestGetSymbols(t *testing.T) {
	s := newTestStore(10, nil)
	s.AddTick(market.Tick{Timestamp: 1, Symbol: "BBB", Price: 1, Quantity: 1})
	s.AddTick(market.Tick{Timestamp: 1, Symbol: "AAA", Price: 1, Quantity: 1})
	syms := s.GetSymbols()
	if !reflect.DeepEqual(syms, []string{"AAA", "BBB"}) {
		t.Fatalf("unexpected symbols: %v", syms)
	}
}

func TestGetSymbolsIncludesBarOnlySymbols(t *testing.T) {
	s := newTestStore(10, nil)
	s.AddBars("CCC", "1m", []market.Bar{{Timestamp: 60, Close: 1}})
	if syms := s.GetSymbols(); !reflect.DeepEqual(syms, []string{"CCC"}) {
		t.Fatalf("uploaded bars must make the symbol visible: %v", syms)
	}
}

func TestEvictExpired(t *testing.T) {
	repo := &fakeRepo{}
	s := newTestStore(10, repo)
	old := float64(time.Now().Add(-2*time.Hour).UnixNano()) / 1e9
	fresh := float64(time.Now().UnixNano()) / 1e9
	s.AddTick(market.Tick{Timestamp: old, Symbol: "AAA", Price: 1, Quantity: 1})
	s.AddTick(market.Tick{Timestamp: fresh, Symbol: "AAA", Price: 1, Quantity: 1})

	s.EvictExpired(time.Hour)
	ticks := s.GetTicks("AAA", 0)
	if len(ticks) != 1 || ticks[0].Timestamp != fresh {
		t.Fatalf("expected only the fresh tick to survive, got %+v", ticks)
	}
	if len(repo.deletes) != 1 {
		t.Fatalf("expected a durable delete, got %v", repo.deletes)
	}
}
