package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// spreadValues computes close1 - beta*close2 elementwise with a scalar beta.
func spreadValues(close1, close2 []float64, beta float64) []float64 {
	out := make([]float64, len(close1))
	for i := range close1 {
		out[i] = close1[i] - beta*close2[i]
	}
	return out
}

// spreadValuesDynamic broadcasts a per-step beta series (Kalman output).
func spreadValuesDynamic(close1, close2, betas []float64) []float64 {
	out := make([]float64, len(close1))
	for i := range close1 {
		out[i] = close1[i] - betas[i]*close2[i]
	}
	return out
}

// RollingZScore computes (spread - rollingMean) / rollingStd over a trailing
// window. Points before a full window use the partial window available so
// far; a point is NaN when fewer than two observations exist or when the
// rolling standard deviation is exactly zero.
func RollingZScore(spread []float64, window int) []float64 {
	out := make([]float64, len(spread))
	if window < 1 {
		window = 1
	}
	for i := range spread {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sub := spread[lo : i+1]
		if len(sub) < 2 {
			out[i] = math.NaN()
			continue
		}
		mean, std := stat.MeanStdDev(sub, nil)
		if std == 0 || math.IsNaN(std) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (spread[i] - mean) / std
	}
	return out
}

// RollingCorrelation computes the trailing-window Pearson correlation of two
// equal-length series. The first window-1 points are NaN.
func RollingCorrelation(x, y []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		lo := i - window + 1
		out[i] = stat.Correlation(x[lo:i+1], y[lo:i+1], nil)
	}
	return out
}
