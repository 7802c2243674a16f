package backtest

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"pairwatch/internal/analytics"
	"pairwatch/internal/config"
	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

func TestSimulateReferenceSequence(t *testing.T) {
	zscore := []float64{0, -2.5, -1, 0.5, 2.5, 1, 0}
	spread := []float64{10, 8, 9, 11, 14, 12, 10}

	trades := Simulate(spread, zscore, 2.0, 0.0)
	if len(trades) != 2 {
		t.Fatalf("expected exactly 2 trades, got %d: %+v", len(trades), trades)
	}

	long := trades[0]
	if long.Direction != Long || long.EntryIndex != 1 || long.EntrySpread != 8 {
		t.Fatalf("unexpected long entry: %+v", long)
	}
	if !long.Closed || long.ExitIndex != 3 || long.ExitSpread != 11 || long.PnL != 3 {
		t.Fatalf("unexpected long exit: %+v", long)
	}

	short := trades[1]
	if short.Direction != Short || short.EntryIndex != 4 || short.EntrySpread != 14 {
		t.Fatalf("unexpected short entry: %+v", short)
	}
	if !short.Closed || short.ExitIndex != 6 || short.ExitSpread != 10 || short.PnL != 4 {
		t.Fatalf("unexpected short exit: %+v", short)
	}

	result := ComputeMetrics(trades)
	if result.TotalTrades != 2 || result.TotalPnL != 7 || result.WinRate != 1.0 {
		t.Fatalf("unexpected metrics: %+v", result)
	}
}

func TestSimulateUnclosedPositionExcluded(t *testing.T) {
	zscore := []float64{0, -2.5, -1}
	spread := []float64{10, 8, 9}
	trades := Simulate(spread, zscore, 2.0, 0.0)
	if len(trades) != 1 || trades[0].Closed {
		t.Fatalf("expected one open trade: %+v", trades)
	}
	result := ComputeMetrics(trades)
	if result.TotalTrades != 0 || result.TotalPnL != 0 {
		t.Fatalf("open trade must be excluded from metrics: %+v", result)
	}
}

func TestSimulateNoPyramiding(t *testing.T) {
	// repeated entry signals while positioned must be ignored, including
	// the opposite-direction signal at index 2
	zscore := []float64{-2.5, -3, 2.6, -0.5, 0.1}
	spread := []float64{5, 4, 6, 5, 7}
	trades := Simulate(spread, zscore, 2.0, 0.0)
	if len(trades) != 1 {
		t.Fatalf("expected a single trade, got %+v", trades)
	}
	if trades[0].ExitIndex != 2 {
		t.Fatalf("long must exit at first z >= 0, got %+v", trades[0])
	}
}

func TestSimulateSkipsNaNZScores(t *testing.T) {
	zscore := []float64{math.NaN(), math.NaN(), -2.5, 0.5}
	spread := []float64{1, 2, 3, 4}
	trades := Simulate(spread, zscore, 2.0, 0.0)
	if len(trades) != 1 || trades[0].EntryIndex != 2 || trades[0].ExitIndex != 3 {
		t.Fatalf("NaN warmup points must be skipped: %+v", trades)
	}
}

func TestComputeMetricsZeroTrades(t *testing.T) {
	result := ComputeMetrics(nil)
	if result.TotalTrades != 0 || result.WinRate != 0 || result.Sharpe != 0 || result.MaxDrawdown != 0 {
		t.Fatalf("zero trades must yield the all-zero result: %+v", result)
	}
}

func TestComputeMetricsFlatPnLCountsNeither(t *testing.T) {
	trades := []Trade{
		{PnL: 0, Closed: true},
		{PnL: 2, Closed: true},
		{PnL: -1, Closed: true},
	}
	result := ComputeMetrics(trades)
	if result.TotalTrades != 3 || result.WinningTrades != 1 || result.LosingTrades != 1 {
		t.Fatalf("zero pnl counts as neither win nor loss: %+v", result)
	}
}

func TestComputeMetricsDrawdown(t *testing.T) {
	trades := []Trade{
		{PnL: 5, Closed: true},
		{PnL: -3, Closed: true},
		{PnL: -4, Closed: true},
		{PnL: 10, Closed: true},
	}
	result := ComputeMetrics(trades)
	// cum: 5, 2, -2, 8; peak: 5, 5, 5, 8 -> worst dd = -7
	if result.MaxDrawdown != -7 {
		t.Fatalf("expected max drawdown -7, got %f", result.MaxDrawdown)
	}
}

func TestComputeMetricsSharpeZeroStd(t *testing.T) {
	trades := []Trade{
		{PnL: 2, Closed: true},
		{PnL: 2, Closed: true},
	}
	if result := ComputeMetrics(trades); result.Sharpe != 0 {
		t.Fatalf("zero pnl std must yield sharpe 0, got %f", result.Sharpe)
	}
}

func TestRunnerAgainstStore(t *testing.T) {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	n := 80
	bars1 := make([]market.Bar, n)
	bars2 := make([]market.Bar, n)
	for i := 0; i < n; i++ {
		x := 100 + float64(i%9)
		// mean-reverting oscillation around the fitted relation
		bars2[i] = market.Bar{Timestamp: int64(i * 60), Close: x}
		bars1[i] = market.Bar{Timestamp: int64(i * 60), Close: 2*x + 4*math.Sin(float64(i)*0.9)}
	}
	st.AddBars("AAA", "1m", bars1)
	st.AddBars("BBB", "1m", bars2)

	an := analytics.NewEngine(st, config.Analytics{ZScoreWindow: 10, CorrelationWindow: 50, ADFMaxLag: 1}, zerolog.Nop())
	runner := NewRunner(an, zerolog.Nop())

	result, ok := runner.Run("AAA", "BBB", "1m", 10, 1.0, 0.0)
	if !ok {
		t.Fatalf("expected a backtest result")
	}
	if len(result.ZScore) != n {
		t.Fatalf("zscore must span the aligned series, got %d", len(result.ZScore))
	}
	if result.TotalTrades == 0 {
		t.Fatalf("oscillating spread should produce closed trades")
	}
}

func TestRunnerUnavailableWithoutData(t *testing.T) {
	st := store.NewTickStore(1000, nil, zerolog.Nop())
	an := analytics.NewEngine(st, config.Analytics{ZScoreWindow: 10, CorrelationWindow: 50, ADFMaxLag: 1}, zerolog.Nop())
	runner := NewRunner(an, zerolog.Nop())
	if _, ok := runner.Run("AAA", "BBB", "1m", 10, 2.0, 0.0); ok {
		t.Fatalf("empty store must be unavailable")
	}
}
