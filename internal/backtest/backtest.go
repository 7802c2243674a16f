// Package backtest simulates a mean-reversion position over a precomputed
// spread/z-score series.
package backtest

import (
	"math"

	"github.com/rs/zerolog"

	"pairwatch/internal/analytics"
)

// Direction of an open position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Trade records one entry and, once closed, its exit and realized pnl.
type Trade struct {
	EntryIndex  int       `json:"entry_index"`
	EntrySpread float64   `json:"entry_spread"`
	EntryZ      float64   `json:"entry_z"`
	Direction   Direction `json:"direction"`
	ExitIndex   int       `json:"exit_index"`
	ExitSpread  float64   `json:"exit_spread"`
	ExitZ       float64   `json:"exit_z"`
	PnL         float64   `json:"pnl"`
	Closed      bool      `json:"closed"`
}

// Result aggregates closed-trade metrics. Zero closed trades yields the
// all-zero result, never a failure.
type Result struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgPnL        float64 `json:"avg_pnl"`
	Sharpe        float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	Trades        []Trade `json:"trades"`

	// ZScore keeps the entry/exit signal series for inspection. It can hold
	// NaN warmup points, so the HTTP layer serializes it separately.
	ZScore []float64 `json:"-"`
}

// Runner executes backtests against fresh analytics snapshots.
type Runner struct {
	analytics *analytics.Engine
	log       zerolog.Logger
}

// NewRunner wires the backtester against the analytics engine.
func NewRunner(an *analytics.Engine, log zerolog.Logger) *Runner {
	return &Runner{analytics: an, log: log}
}

// Run recomputes the OLS hedge ratio, spread, and rolling z-score for the
// pair, then simulates the strategy. ok=false means insufficient data.
func (r *Runner) Run(symbol1, symbol2, interval string, window int, entryThreshold, exitThreshold float64) (Result, bool) {
	beta, ok := r.analytics.HedgeRatioOLS(symbol1, symbol2, interval)
	if !ok {
		return Result{}, false
	}
	spread, ok := r.analytics.Spread(symbol1, symbol2, interval, beta)
	if !ok || spread.Len() == 0 {
		return Result{}, false
	}
	zscore := analytics.RollingZScore(spread.Values, window)

	trades := Simulate(spread.Values, zscore, entryThreshold, exitThreshold)
	result := ComputeMetrics(trades)
	result.ZScore = zscore
	return result, true
}

// Simulate runs the FLAT/LONG/SHORT state machine over the series:
//
//	FLAT  -> LONG  when z < -entry
//	FLAT  -> SHORT when z >  entry
//	LONG  -> FLAT  when z >= exit, pnl =   spread - entrySpread
//	SHORT -> FLAT  when z <= exit, pnl = -(spread - entrySpread)
//
// Only one position at a time; signals while positioned are ignored. A
// position still open at series end stays open (excluded from metrics).
func Simulate(spread, zscore []float64, entryThreshold, exitThreshold float64) []Trade {
	var trades []Trade
	open := -1 // index into trades of the open position, -1 if flat

	for i := range zscore {
		z := zscore[i]
		if math.IsNaN(z) {
			continue
		}
		s := spread[i]

		if open < 0 {
			switch {
			case z < -entryThreshold:
				trades = append(trades, Trade{EntryIndex: i, EntrySpread: s, EntryZ: z, Direction: Long})
				open = len(trades) - 1
			case z > entryThreshold:
				trades = append(trades, Trade{EntryIndex: i, EntrySpread: s, EntryZ: z, Direction: Short})
				open = len(trades) - 1
			}
			continue
		}

		tr := &trades[open]
		exit := false
		switch tr.Direction {
		case Long:
			exit = z >= exitThreshold
		case Short:
			exit = z <= exitThreshold
		}
		if exit {
			tr.ExitIndex = i
			tr.ExitSpread = s
			tr.ExitZ = z
			if tr.Direction == Long {
				tr.PnL = s - tr.EntrySpread
			} else {
				tr.PnL = -(s - tr.EntrySpread)
			}
			tr.Closed = true
			open = -1
		}
	}
	return trades
}

// ComputeMetrics aggregates closed trades. Drawdown is taken over the trade
// sequence ordered by trade index, not calendar time.
func ComputeMetrics(trades []Trade) Result {
	result := Result{Trades: trades}
	var pnls []float64
	for _, tr := range trades {
		if tr.Closed {
			pnls = append(pnls, tr.PnL)
		}
	}
	if len(pnls) == 0 {
		return result
	}

	result.TotalTrades = len(pnls)
	var total float64
	for _, p := range pnls {
		total += p
		if p > 0 {
			result.WinningTrades++
		} else if p < 0 {
			result.LosingTrades++
		}
	}
	result.TotalPnL = total
	result.AvgPnL = total / float64(len(pnls))
	result.WinRate = float64(result.WinningTrades) / float64(len(pnls))
	result.Sharpe = sharpe(pnls)
	result.MaxDrawdown = maxDrawdown(pnls)
	return result
}

func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(len(pnls))
	variance := 0.0
	for _, p := range pnls {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(pnls) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

// maxDrawdown is the most negative value of cumulativePnl - runningMax over
// the closed-trade sequence.
func maxDrawdown(pnls []float64) float64 {
	var cum, peak, worst float64
	peak = math.Inf(-1)
	for _, p := range pnls {
		cum += p
		if cum > peak {
			peak = cum
		}
		if dd := cum - peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
