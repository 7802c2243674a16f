package analytics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"pairwatch/internal/market"
	"pairwatch/internal/store"
)

// CorrelationMatrix is a symmetric Pearson correlation matrix with a unit
// diagonal, ordered by Symbols.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Data    [][]float64 `json:"data"`
}

// RollingMatrices is a sequence of correlation matrices, one per window step,
// each timestamped by the last bar of its window.
type RollingMatrices struct {
	Symbols    []string    `json:"symbols"`
	Timestamps []int64     `json:"timestamps"`
	Matrices   [][][]float64 `json:"matrices"`
}

// MatrixEngine computes N-symbol correlation structure over the
// timestamp-intersection alignment of all requested series.
type MatrixEngine struct {
	store *store.TickStore
}

// NewMatrixEngine builds a matrix engine over the given store.
func NewMatrixEngine(st *store.TickStore) *MatrixEngine {
	return &MatrixEngine{store: st}
}

func (m *MatrixEngine) alignedColumns(symbols []string, interval string) ([]int64, [][]float64) {
	series := make(map[string][]market.Bar, len(symbols))
	for _, sym := range symbols {
		series[sym] = m.store.GetBars(sym, interval)
	}
	return alignSymbols(series, symbols)
}

// Matrix computes the full correlation matrix over all fully overlapping
// timestamps. Requires at least two symbols and two aligned rows.
func (m *MatrixEngine) Matrix(symbols []string, interval string) (CorrelationMatrix, bool) {
	if len(symbols) < 2 {
		return CorrelationMatrix{}, false
	}
	ts, columns := m.alignedColumns(symbols, interval)
	if len(ts) < 2 {
		return CorrelationMatrix{}, false
	}
	return CorrelationMatrix{Symbols: symbols, Data: correlate(columns, 0, len(ts))}, true
}

// Rolling slides a fixed-size window across the aligned series and emits one
// matrix per step. Unavailable when the aligned length is below the window.
func (m *MatrixEngine) Rolling(symbols []string, interval string, window int) (RollingMatrices, bool) {
	if len(symbols) < 2 || window < 2 {
		return RollingMatrices{}, false
	}
	ts, columns := m.alignedColumns(symbols, interval)
	if len(ts) < window {
		return RollingMatrices{}, false
	}

	out := RollingMatrices{Symbols: symbols}
	for end := window; end <= len(ts); end++ {
		out.Timestamps = append(out.Timestamps, ts[end-1])
		out.Matrices = append(out.Matrices, correlate(columns, end-window, end))
	}
	return out, true
}

// correlate builds the Pearson correlation matrix over rows [lo, hi) of the
// aligned columns.
func correlate(columns [][]float64, lo, hi int) [][]float64 {
	n := len(columns)
	rows := hi - lo
	data := mat.NewDense(rows, n, nil)
	for col, series := range columns {
		for row := 0; row < rows; row++ {
			data.Set(row, col, series[lo+row])
		}
	}
	sym := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(sym, data, nil)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			v := sym.At(i, j)
			// Zero-variance columns have undefined correlation. Report 0 so
			// the matrix stays finite and serializable.
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[i][j] = v
		}
	}
	return out
}
