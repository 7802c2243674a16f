package analytics

import (
	"math"
	"testing"
)

func TestADFTestStationarySeries(t *testing.T) {
	// bounded oscillation with a second component so no low-order
	// recurrence fits it exactly
	series := make([]float64, 120)
	for i := range series {
		series[i] = 3*math.Sin(float64(i)*1.7) + 0.5*math.Sin(float64(i)*7.3+1)
	}
	result, ok := ADFTest(series, 1)
	if !ok {
		t.Fatalf("expected an ADF result for a stationary series")
	}
	if result.Statistic >= result.Critical5 {
		t.Fatalf("stationary series should reject the unit root: stat=%f crit5=%f", result.Statistic, result.Critical5)
	}
	if result.PValue >= 0.05 {
		t.Fatalf("expected p < 0.05, got %f", result.PValue)
	}
	if !(result.Critical1 < result.Critical5 && result.Critical5 < result.Critical10) {
		t.Fatalf("critical values must be ordered: %+v", result)
	}
}

func TestADFTestConstantSeriesUnavailable(t *testing.T) {
	series := make([]float64, 60)
	for i := range series {
		series[i] = 42
	}
	if _, ok := ADFTest(series, 1); ok {
		t.Fatalf("constant series is degenerate and must be unavailable")
	}
}

func TestADFTestShortSeriesUnavailable(t *testing.T) {
	if _, ok := ADFTest([]float64{1, 2, 3}, 1); ok {
		t.Fatalf("short series must be unavailable")
	}
}

func TestADFTestDropsNaN(t *testing.T) {
	series := make([]float64, 120)
	for i := range series {
		series[i] = 3 * math.Sin(float64(i)*1.3+0.2*wobble(i))
	}
	series[5] = math.NaN()
	series[50] = math.NaN()
	if _, ok := ADFTest(series, 1); !ok {
		t.Fatalf("NaN values must be dropped, not fatal")
	}
}

func TestMackinnonPValueBounds(t *testing.T) {
	if p := mackinnonPValue(5); p != 1 {
		t.Fatalf("far-right statistic must saturate at 1, got %f", p)
	}
	if p := mackinnonPValue(-25); p != 0 {
		t.Fatalf("far-left statistic must saturate at 0, got %f", p)
	}
	p := mackinnonPValue(-2.8616) // near the 5% asymptotic critical value
	if p < 0.03 || p > 0.07 {
		t.Fatalf("p near 0.05 expected at the 5%% critical value, got %f", p)
	}
}
