package analytics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ADFResult reports an Augmented Dickey-Fuller unit-root test on a spread.
type ADFResult struct {
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"p_value"`
	UsedLag    int     `json:"used_lag"`
	NObs       int     `json:"n_obs"`
	Critical1  float64 `json:"critical_1"`
	Critical5  float64 `json:"critical_5"`
	Critical10 float64 `json:"critical_10"`
}

// ADFTest runs the constant-only ADF regression
//
//	dy_t = c + gamma*y_{t-1} + sum_{i=1..k} b_i*dy_{t-i} + e_t
//
// with the lag order k chosen by AIC over 0..maxLag, and returns the t-statistic
// of gamma alongside MacKinnon critical values and approximate p-value.
// Degenerate input (constant series, singular regression) yields ok=false.
func ADFTest(series []float64, maxLag int) (ADFResult, bool) {
	y := dropNaN(series)
	if maxLag < 0 {
		maxLag = 0
	}
	// need a usable sample after differencing and the longest lag
	if len(y) < maxLag+10 {
		return ADFResult{}, false
	}

	bestLag := 0
	bestAIC := math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		// common sample start so AIC values are comparable across lags
		_, aic, ok := adfRegression(y, lag, maxLag)
		if !ok {
			continue
		}
		if aic < bestAIC {
			bestAIC = aic
			bestLag = lag
		}
	}
	if math.IsInf(bestAIC, 1) {
		return ADFResult{}, false
	}

	tstat, _, ok := adfRegression(y, bestLag, bestLag)
	if !ok {
		return ADFResult{}, false
	}

	nobs := len(y) - bestLag - 1
	c1, c5, c10 := mackinnonCrit(nobs)
	return ADFResult{
		Statistic:  tstat,
		PValue:     mackinnonPValue(tstat),
		UsedLag:    bestLag,
		NObs:       nobs,
		Critical1:  c1,
		Critical5:  c5,
		Critical10: c10,
	}, true
}

// adfRegression fits the ADF regression with `lag` lagged differences,
// starting the sample after `offset` differences so callers can hold the
// sample fixed while comparing lags. Returns the t-statistic of the level
// coefficient and the AIC of the fit.
func adfRegression(y []float64, lag, offset int) (tstat, aic float64, ok bool) {
	n := len(y)
	diffs := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		diffs[i] = y[i+1] - y[i]
	}

	ncols := lag + 2 // level, lagged diffs, constant
	nobs := len(diffs) - offset
	if nobs <= ncols {
		return 0, 0, false
	}

	design := mat.NewDense(nobs, ncols, nil)
	response := mat.NewVecDense(nobs, nil)
	for row := 0; row < nobs; row++ {
		t := offset + row
		design.Set(row, 0, y[t])
		for i := 1; i <= lag; i++ {
			design.Set(row, i, diffs[t-i])
		}
		design.Set(row, ncols-1, 1)
		response.SetVec(row, diffs[t])
	}

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return 0, 0, false
	}
	var xty mat.VecDense
	xty.MulVec(design.T(), response)
	var beta mat.VecDense
	beta.MulVec(&xtxInv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(design, &beta)
	rss := 0.0
	for i := 0; i < nobs; i++ {
		r := response.AtVec(i) - fitted.AtVec(i)
		rss += r * r
	}
	dof := nobs - ncols
	if dof <= 0 || rss <= 0 {
		return 0, 0, false
	}
	sigma2 := rss / float64(dof)
	se := math.Sqrt(sigma2 * xtxInv.At(0, 0))
	if se == 0 || math.IsNaN(se) {
		return 0, 0, false
	}

	tstat = beta.AtVec(0) / se
	aic = float64(nobs)*math.Log(rss/float64(nobs)) + 2*float64(ncols)
	if math.IsNaN(tstat) || math.IsInf(tstat, 0) {
		return 0, 0, false
	}
	return tstat, aic, true
}

// mackinnonCrit interpolates the finite-sample critical values for the
// constant-only Dickey-Fuller distribution (MacKinnon 2010 response surface).
func mackinnonCrit(nobs int) (c1, c5, c10 float64) {
	t := float64(nobs)
	eval := func(b0, b1, b2, b3 float64) float64 {
		return b0 + b1/t + b2/(t*t) + b3/(t*t*t)
	}
	c1 = eval(-3.43035, -6.5393, -16.786, -79.433)
	c5 = eval(-2.86154, -2.8903, -4.234, -40.04)
	c10 = eval(-2.56677, -1.5384, -2.809, 0)
	return c1, c5, c10
}

// mackinnonPValue approximates the asymptotic p-value for the constant-only
// Dickey-Fuller t-statistic (MacKinnon 1994 polynomial surfaces).
func mackinnonPValue(stat float64) float64 {
	const (
		tauMax  = 2.74
		tauMin  = -18.83
		tauStar = -1.61
	)
	switch {
	case stat > tauMax:
		return 1.0
	case stat < tauMin:
		return 0.0
	case stat <= tauStar:
		return normCDF(2.1659 + 1.4412*stat + 0.038269*stat*stat)
	default:
		return normCDF(1.7339 + 0.93202*stat - 0.12745*stat*stat - 0.010368*stat*stat*stat)
	}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
