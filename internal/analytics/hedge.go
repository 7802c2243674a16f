package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Method selects the hedge-ratio estimation strategy. The set is closed;
// every dispatch site switches exhaustively over these values.
type Method int

const (
	MethodOLS Method = iota
	MethodKalman
	MethodHuber
	MethodTheilSen
)

// Minimum aligned point counts per estimator.
const (
	minPointsOLS    = 2
	minPointsKalman = 10
	minPointsRobust = 5
)

func (m Method) String() string {
	switch m {
	case MethodOLS:
		return "ols"
	case MethodKalman:
		return "kalman"
	case MethodHuber:
		return "huber"
	case MethodTheilSen:
		return "theil-sen"
	default:
		return "unknown"
	}
}

// ParseMethod maps a method name to its Method value.
func ParseMethod(name string) (Method, bool) {
	switch name {
	case "ols", "":
		return MethodOLS, true
	case "kalman":
		return MethodKalman, true
	case "huber":
		return MethodHuber, true
	case "theil-sen", "theilsen":
		return MethodTheilSen, true
	default:
		return MethodOLS, false
	}
}

// olsHedgeRatio computes beta = Cov(close1, close2) / Var(close2) over the
// full aligned sample, the least-squares slope with the intercept discarded.
// Alerting and backtesting depend on this exact value.
func olsHedgeRatio(close1, close2 []float64) (float64, bool) {
	if len(close1) < minPointsOLS || len(close1) != len(close2) {
		return 0, false
	}
	variance := stat.Variance(close2, nil)
	if variance == 0 || math.IsNaN(variance) {
		return 0, false
	}
	beta := stat.Covariance(close1, close2, nil) / variance
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}
	return beta, true
}

// kalmanHedgeRatios runs the standard predict/update recursion for a
// 2-dimensional state (slope, intercept) observed through
// close1_t = slope_t*close2_t + intercept_t + eps_t and returns the full
// per-step slope series. Callers treat the final element as the current ratio.
func kalmanHedgeRatios(close1, close2 []float64) ([]float64, bool) {
	n := len(close1)
	if n < minPointsKalman || n != len(close2) {
		return nil, false
	}

	const (
		delta    = 1e-5
		obsNoise = 1.0
	)
	processNoise := delta / (1 - delta)

	state := mat.NewVecDense(2, nil) // initial mean (0, 0)
	cov := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	transNoise := mat.NewDense(2, 2, []float64{processNoise, 0, 0, processNoise})
	identity := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	slopes := make([]float64, n)
	for t := 0; t < n; t++ {
		// predict: transition is identity, so only covariance grows
		var predCov mat.Dense
		predCov.Add(cov, transNoise)

		h := mat.NewVecDense(2, []float64{close2[t], 1})

		// innovation variance S = h' P h + R
		var ph mat.VecDense
		ph.MulVec(&predCov, h)
		s := mat.Dot(h, &ph) + obsNoise
		if s == 0 || math.IsNaN(s) {
			return nil, false
		}

		// gain K = P h / S
		var gain mat.VecDense
		gain.ScaleVec(1/s, &ph)

		innovation := close1[t] - mat.Dot(h, state)
		var update mat.VecDense
		update.ScaleVec(innovation, &gain)
		state.AddVec(state, &update)

		// P = (I - K h') P
		var kh mat.Dense
		kh.Mul(&gain, h.T())
		var factor mat.Dense
		factor.Sub(identity, &kh)
		var nextCov mat.Dense
		nextCov.Mul(&factor, &predCov)
		cov.Copy(&nextCov)

		slopes[t] = state.AtVec(0)
		if math.IsNaN(slopes[t]) || math.IsInf(slopes[t], 0) {
			return nil, false
		}
	}
	return slopes, true
}

// huberHedgeRatio fits close1 on close2 with an intercept using iteratively
// reweighted least squares under a bounded (Huber) loss, returning the slope.
func huberHedgeRatio(close1, close2 []float64) (float64, bool) {
	n := len(close1)
	if n < minPointsRobust || n != len(close2) {
		return 0, false
	}

	// start from the plain least-squares fit
	variance := stat.Variance(close2, nil)
	if variance == 0 || math.IsNaN(variance) {
		return 0, false
	}
	slope := stat.Covariance(close1, close2, nil) / variance
	intercept := stat.Mean(close1, nil) - slope*stat.Mean(close2, nil)

	const (
		tuning  = 1.345
		maxIter = 50
		tol     = 1e-8
	)
	residuals := make([]float64, n)
	weights := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		for i := range residuals {
			residuals[i] = close1[i] - slope*close2[i] - intercept
		}
		scale := madScale(residuals)
		if scale == 0 {
			return slope, !math.IsNaN(slope)
		}
		for i, r := range residuals {
			u := math.Abs(r) / scale
			if u <= tuning {
				weights[i] = 1
			} else {
				weights[i] = tuning / u
			}
		}

		newSlope, newIntercept, ok := weightedLinearFit(close2, close1, weights)
		if !ok {
			return 0, false
		}
		done := math.Abs(newSlope-slope) < tol && math.Abs(newIntercept-intercept) < tol
		slope, intercept = newSlope, newIntercept
		if done {
			break
		}
	}
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, false
	}
	return slope, true
}

// theilSenHedgeRatio returns the median of all pairwise slopes of close1 on
// close2, discarding the intercept.
func theilSenHedgeRatio(close1, close2 []float64) (float64, bool) {
	n := len(close1)
	if n < minPointsRobust || n != len(close2) {
		return 0, false
	}
	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := close2[j] - close2[i]
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (close1[j]-close1[i])/dx)
		}
	}
	if len(slopes) == 0 {
		return 0, false
	}
	sort.Float64s(slopes)
	return stat.Quantile(0.5, stat.Empirical, slopes, nil), true
}

func madScale(residuals []float64) float64 {
	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		abs[i] = math.Abs(r)
	}
	sort.Float64s(abs)
	// normalize to be consistent with a Gaussian standard deviation
	return stat.Quantile(0.5, stat.Empirical, abs, nil) / 0.6745
}

func weightedLinearFit(x, y, w []float64) (slope, intercept float64, ok bool) {
	var sw, swx, swy, swxx, swxy float64
	for i := range x {
		sw += w[i]
		swx += w[i] * x[i]
		swy += w[i] * y[i]
		swxx += w[i] * x[i] * x[i]
		swxy += w[i] * x[i] * y[i]
	}
	denom := sw*swxx - swx*swx
	if denom == 0 || math.IsNaN(denom) {
		return 0, 0, false
	}
	slope = (sw*swxy - swx*swy) / denom
	intercept = (swy - slope*swx) / sw
	return slope, intercept, true
}
