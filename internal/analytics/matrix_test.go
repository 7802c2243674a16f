package analytics

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

func seedMatrixStore(n int) *store.TickStore {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	bars1 := make([]market.Bar, n)
	bars2 := make([]market.Bar, n)
	for i := 0; i < n; i++ {
		x := 50 + 5*math.Sin(float64(i)*0.7) + float64(i%3)
		bars2[i] = market.Bar{Timestamp: int64(i * 60), Close: x}
		bars1[i] = market.Bar{Timestamp: int64(i * 60), Close: 2 * x}
	}
	st.AddBars("AAA", "1m", bars1)
	st.AddBars("BBB", "1m", bars2)
	return st
}

func TestCorrelationMatrixPerfectPair(t *testing.T) {
	engine := NewMatrixEngine(seedMatrixStore(30))
	matrix, ok := engine.Matrix([]string{"AAA", "BBB"}, "1m")
	if !ok {
		t.Fatalf("expected matrix")
	}
	if matrix.Data[0][0] != 1 || matrix.Data[1][1] != 1 {
		t.Fatalf("diagonal must be 1: %+v", matrix.Data)
	}
	if math.Abs(matrix.Data[0][1]-1) > 1e-12 {
		t.Fatalf("close1 = 2*close2 must correlate at 1, got %f", matrix.Data[0][1])
	}
	if matrix.Data[0][1] != matrix.Data[1][0] {
		t.Fatalf("matrix must be symmetric")
	}
}

func TestCorrelationMatrixRequiresOverlap(t *testing.T) {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	st.AddBars("AAA", "1m", []market.Bar{{Timestamp: 0, Close: 1}, {Timestamp: 60, Close: 2}})
	st.AddBars("BBB", "1m", []market.Bar{{Timestamp: 120, Close: 1}, {Timestamp: 180, Close: 2}})
	engine := NewMatrixEngine(st)
	if _, ok := engine.Matrix([]string{"AAA", "BBB"}, "1m"); ok {
		t.Fatalf("disjoint timestamps must be unavailable")
	}
}

func TestRollingMatrices(t *testing.T) {
	engine := NewMatrixEngine(seedMatrixStore(20))
	rolling, ok := engine.Rolling([]string{"AAA", "BBB"}, "1m", 10)
	if !ok {
		t.Fatalf("expected rolling matrices")
	}
	if len(rolling.Matrices) != 11 {
		t.Fatalf("expected n-window+1 steps, got %d", len(rolling.Matrices))
	}
	if rolling.Timestamps[0] != int64(9*60) {
		t.Fatalf("each matrix must carry its window's last bar timestamp, got %d", rolling.Timestamps[0])
	}
	last := rolling.Timestamps[len(rolling.Timestamps)-1]
	if last != int64(19*60) {
		t.Fatalf("final step must end at the series tail, got %d", last)
	}
}

func TestRollingMatricesWindowTooLarge(t *testing.T) {
	engine := NewMatrixEngine(seedMatrixStore(5))
	if _, ok := engine.Rolling([]string{"AAA", "BBB"}, "1m", 10); ok {
		t.Fatalf("window larger than aligned series must be unavailable")
	}
}
