package analytics

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"pairwatch/internal/config"
	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

// Engine computes pair statistics on demand from the shared tick store.
// Every result is computed fresh per call against the current snapshot; an
// ok=false return means "insufficient aligned data" or a degenerate input,
// never a caller error.
type Engine struct {
	store *store.TickStore
	cfg   config.Analytics
	log   zerolog.Logger
}

// NewEngine builds an analytics engine over the given store.
func NewEngine(st *store.TickStore, cfg config.Analytics, log zerolog.Logger) *Engine {
	return &Engine{store: st, cfg: cfg, log: log}
}

// ZScoreWindow exposes the configured rolling window for z-score consumers.
func (e *Engine) ZScoreWindow() int { return e.cfg.ZScoreWindow }

// CorrelationWindow exposes the configured rolling correlation window.
func (e *Engine) CorrelationWindow() int { return e.cfg.CorrelationWindow }

// ValidatePair rejects pairs where either symbol has no buffered data or both
// symbols are the same.
func (e *Engine) ValidatePair(symbol1, symbol2 string) error {
	if symbol1 == symbol2 {
		return fmt.Errorf("symbols must be different")
	}
	available := make(map[string]struct{})
	for _, s := range e.store.GetSymbols() {
		available[s] = struct{}{}
	}
	for _, s := range []string{symbol1, symbol2} {
		if _, ok := available[s]; !ok {
			return fmt.Errorf("%s not available", s)
		}
	}
	return nil
}

func (e *Engine) alignedCloses(symbol1, symbol2, interval string) ([]int64, []float64, []float64) {
	// two independent reads: best-effort consistency across symbols is the
	// documented contract, do not "fix" by locking across both
	bars1 := e.store.GetBars(symbol1, interval)
	bars2 := e.store.GetBars(symbol2, interval)
	return alignPair(bars1, bars2)
}

// HedgeRatioOLS returns Cov(close1, close2)/Var(close2) over the aligned sample.
func (e *Engine) HedgeRatioOLS(symbol1, symbol2, interval string) (float64, bool) {
	_, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	beta, ok := olsHedgeRatio(c1, c2)
	if !ok {
		e.log.Debug().Str("pair", symbol1+"/"+symbol2).Msg("ols hedge ratio unavailable")
	}
	return beta, ok
}

// HedgeRatioKalman returns the per-step slope series from the Kalman recursion.
func (e *Engine) HedgeRatioKalman(symbol1, symbol2, interval string) (Series, bool) {
	ts, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	slopes, ok := kalmanHedgeRatios(c1, c2)
	if !ok {
		return Series{}, false
	}
	return Series{Timestamps: ts, Values: slopes}, true
}

// HedgeRatioRobust returns an outlier-resistant slope estimate. Only the
// robust methods are valid here; the zero value reports unavailable otherwise.
func (e *Engine) HedgeRatioRobust(symbol1, symbol2, interval string, method Method) (float64, bool) {
	_, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	switch method {
	case MethodHuber:
		return huberHedgeRatio(c1, c2)
	case MethodTheilSen:
		return theilSenHedgeRatio(c1, c2)
	case MethodOLS, MethodKalman:
		return 0, false
	default:
		return 0, false
	}
}

// HedgeRatio dispatches on the closed method set and returns a scalar ratio
// (the final slope for the Kalman method).
func (e *Engine) HedgeRatio(symbol1, symbol2, interval string, method Method) (float64, bool) {
	switch method {
	case MethodOLS:
		return e.HedgeRatioOLS(symbol1, symbol2, interval)
	case MethodKalman:
		series, ok := e.HedgeRatioKalman(symbol1, symbol2, interval)
		if !ok {
			return 0, false
		}
		return series.Last()
	case MethodHuber, MethodTheilSen:
		return e.HedgeRatioRobust(symbol1, symbol2, interval, method)
	default:
		return 0, false
	}
}

// Spread computes close1 - beta*close2 over the aligned series, indexed by
// the aligned timestamps.
func (e *Engine) Spread(symbol1, symbol2, interval string, beta float64) (Series, bool) {
	ts, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	if len(ts) == 0 {
		return Series{}, false
	}
	return Series{Timestamps: ts, Values: spreadValues(c1, c2, beta)}, true
}

// SpreadDynamic computes the spread under a per-step beta series. The beta
// series must match the aligned length (Kalman output over the same data).
func (e *Engine) SpreadDynamic(symbol1, symbol2, interval string, betas []float64) (Series, bool) {
	ts, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	if len(ts) == 0 || len(betas) != len(ts) {
		return Series{}, false
	}
	return Series{Timestamps: ts, Values: spreadValuesDynamic(c1, c2, betas)}, true
}

// ADF runs the stationarity test on a spread with the configured maximum lag.
func (e *Engine) ADF(spread []float64) (ADFResult, bool) {
	result, ok := ADFTest(spread, e.cfg.ADFMaxLag)
	if !ok {
		e.log.Debug().Msg("adf test unavailable")
	}
	return result, ok
}

// PairCorrelation computes the rolling Pearson correlation of the two raw
// close-price series over the configured window.
func (e *Engine) PairCorrelation(symbol1, symbol2, interval string, window int) (Series, bool) {
	ts, c1, c2 := e.alignedCloses(symbol1, symbol2, interval)
	if len(ts) == 0 {
		return Series{}, false
	}
	if window <= 0 {
		window = e.cfg.CorrelationWindow
	}
	return Series{Timestamps: ts, Values: RollingCorrelation(c1, c2, window)}, true
}

// PriceStats summarizes one symbol's bar series.
type PriceStats struct {
	CurrentPrice float64 `json:"current_price"`
	MeanPrice    float64 `json:"mean_price"`
	StdPrice     float64 `json:"std_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	TotalVolume  float64 `json:"total_volume"`
	NumBars      int     `json:"num_bars"`
}

// PriceStatistics computes descriptive statistics over a bar series.
func (e *Engine) PriceStatistics(symbol, interval string) (PriceStats, bool) {
	bars := e.store.GetBars(symbol, interval)
	if len(bars) == 0 {
		return PriceStats{}, false
	}
	closes := market.Closes(bars)
	min, max := closes[0], closes[0]
	volume := 0.0
	for i, b := range bars {
		if closes[i] < min {
			min = closes[i]
		}
		if closes[i] > max {
			max = closes[i]
		}
		volume += b.Volume
	}
	mean, std := stat.MeanStdDev(closes, nil)
	if len(closes) < 2 {
		std = 0
	}
	return PriceStats{
		CurrentPrice: closes[len(closes)-1],
		MeanPrice:    mean,
		StdPrice:     std,
		MinPrice:     min,
		MaxPrice:     max,
		TotalVolume:  volume,
		NumBars:      len(bars),
	}, true
}
