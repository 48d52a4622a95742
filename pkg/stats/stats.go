// Package stats provides the pure numeric functions behind the growth
// analytics aggregations: mean, sample standard deviation, Pearson
// correlation, ordinary least squares regression, and Gaussian curve
// sampling for chart overlays.
//
// All functions are side-effect free and operate on finite slices.
// Degenerate inputs (empty slices, zero variance) resolve to documented
// neutral values rather than NaN or Inf, so callers can render results
// without guarding against unrepresentable numbers.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// SampleStdDev returns the sample standard deviation of values using
// Bessel's correction (n-1 denominator). These are sample statistics over
// a subset of a school population, not the whole population, so the
// corrected estimator is deliberate.
//
// Returns 0 for slices of length 0 or 1.
func SampleStdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	sd := stat.StdDev(values, nil)
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 0
	}
	return sd
}

// PearsonCorrelation returns the Pearson correlation coefficient of the
// paired samples xs and ys. When the denominator is exactly 0 (all-equal
// xs or ys, or fewer than two pairs) it returns 0 instead of NaN.
func PearsonCorrelation(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// RegressionLine holds the slope and intercept of a least-squares fit.
type RegressionLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// LinearRegression fits an ordinary least squares line to the paired
// samples xs and ys. When the denominator is 0 (degenerate xs) it returns
// a flat line through the mean of ys: slope 0, intercept mean(ys). That is
// defined behavior, not an error.
func LinearRegression(xs, ys []float64) RegressionLine {
	if len(xs) != len(ys) || len(xs) == 0 {
		return RegressionLine{Slope: 0, Intercept: Mean(ys)}
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return RegressionLine{Slope: 0, Intercept: Mean(ys)}
	}
	return RegressionLine{Slope: slope, Intercept: intercept}
}

// CurvePoint is a single sampled point of an overlay curve.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GaussianCurve samples numPoints evenly spaced points over [minX, maxX]
// where y = totalCount * binWidth * density(x; mean, stdDev). The result
// approximates the expected per-bin count under a normal model, so an
// overlay drawn from it is comparable in area to a real histogram of
// totalCount observations bucketed at binWidth.
//
// This is a display approximation only; it never fits the curve against
// observed data. A non-positive stdDev or numPoints < 1 yields sampled
// zeroes / an empty slice respectively.
func GaussianCurve(mean, stdDev, minX, maxX float64, totalCount int, binWidth float64, numPoints int) []CurvePoint {
	if numPoints < 1 {
		return nil
	}

	points := make([]CurvePoint, numPoints)
	step := 0.0
	if numPoints > 1 {
		step = (maxX - minX) / float64(numPoints-1)
	}

	if stdDev <= 0 {
		for i := range points {
			points[i] = CurvePoint{X: minX + float64(i)*step, Y: 0}
		}
		return points
	}

	dist := distuv.Normal{Mu: mean, Sigma: stdDev}
	scale := float64(totalCount) * binWidth
	for i := range points {
		x := minX + float64(i)*step
		points[i] = CurvePoint{X: x, Y: scale * dist.Prob(x)}
	}
	return points
}
