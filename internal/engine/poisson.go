package engine

import "math"

// maxCutoff is the largest per-side goal count a grid ever spans.
const maxCutoff = 15

var factorials = func() [maxCutoff + 1]float64 {
	var f [maxCutoff + 1]float64
	f[0] = 1
	for i := 1; i <= maxCutoff; i++ {
		f[i] = f[i-1] * float64(i)
	}
	return f
}()

// PoissonProb returns P(X = k) for X ~ Poisson(lambda).
// Very small or large rates go through log space to keep the factorial term stable.
func PoissonProb(lambda float64, k int) float64 {
	if k < 0 || lambda <= 0 {
		if k == 0 && lambda == 0 {
			return 1
		}
		return 0
	}
	if lambda < 0.3 || lambda > 3 || k > maxCutoff {
		lg, _ := math.Lgamma(float64(k + 1))
		return math.Exp(float64(k)*math.Log(lambda) - lambda - lg)
	}
	return math.Pow(lambda, float64(k)) * math.Exp(-lambda) / factorials[k]
}

// poissonRow returns P(X = 0..n).
func poissonRow(lambda float64, n int) []float64 {
	row := make([]float64, n+1)
	for k := 0; k <= n; k++ {
		row[k] = PoissonProb(lambda, k)
	}
	return row
}

// Cutoff returns the per-side goal bound for a pair of rates, large enough that
// the Poisson tail beyond it is below 0.1%.
func Cutoff(rates ScoringRates) int {
	m := math.Max(rates.Home, rates.Away)
	switch {
	case m < 1:
		return 8
	case m < 1.5:
		return 10
	case m < 2:
		return 11
	case m < 2.5:
		return 12
	case m < 3:
		return 13
	default:
		return maxCutoff
	}
}
