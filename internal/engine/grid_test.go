package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoissonProb_LogAndDirectPathsAgree(t *testing.T) {
	for _, lambda := range []float64{0.05, 0.29, 0.3, 1.2, 2.99, 3.0, 3.01, 4.5} {
		sum := 0.0
		for k := 0; k <= 40; k++ {
			p := PoissonProb(lambda, k)
			require.GreaterOrEqual(t, p, 0.0)
			lg, _ := math.Lgamma(float64(k + 1))
			want := math.Exp(float64(k)*math.Log(lambda) - lambda - lg)
			assert.InDelta(t, want, p, 1e-12, "lambda %v k %d", lambda, k)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "lambda %v", lambda)
	}
	assert.Equal(t, 0.0, PoissonProb(1.5, -1))
}

func TestCutoff_StepFunction(t *testing.T) {
	tests := []struct {
		rates ScoringRates
		want  int
	}{
		{ScoringRates{0.6, 0.9}, 8},
		{ScoringRates{1.2, 0.4}, 10},
		{ScoringRates{1.0, 1.7}, 11},
		{ScoringRates{2.2, 1.0}, 12},
		{ScoringRates{2.9, 2.9}, 13},
		{ScoringRates{3.0, 0.5}, 15},
		{ScoringRates{MaxRate, MaxRate}, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cutoff(tt.rates), "rates %+v", tt.rates)
	}
}

func TestCutoff_TailMassNegligible(t *testing.T) {
	for _, lambda := range []float64{0.99, 1.49, 1.99, 2.49, 2.99, MaxRate} {
		n := Cutoff(ScoringRates{Home: lambda, Away: lambda})
		kept := 0.0
		for k := 0; k <= n; k++ {
			kept += PoissonProb(lambda, k)
		}
		assert.Less(t, 1-kept, 1e-3, "lambda %v cutoff %d", lambda, n)
	}
}

func TestDixonColesRho(t *testing.T) {
	assert.Equal(t, 0.15, DixonColesRho(ScoringRates{1.5, 1.0}))
	assert.Equal(t, 0.12, DixonColesRho(ScoringRates{1.5, 1.5}))
	assert.Equal(t, 0.12, DixonColesRho(ScoringRates{3.0, 1.9}))
	assert.Equal(t, 0.08, DixonColesRho(ScoringRates{3.0, 2.0}))
}

func TestDixonColesTau(t *testing.T) {
	r := ScoringRates{Home: 1.5, Away: 1.0}
	rho := 0.15
	assert.InDelta(t, 1-1.5*1.0*0.15, DixonColesTau(0, 0, r, rho), 1e-12)
	assert.InDelta(t, 1+1.5*0.15, DixonColesTau(1, 0, r, rho), 1e-12)
	assert.InDelta(t, 1+1.0*0.15, DixonColesTau(0, 1, r, rho), 1e-12)
	assert.InDelta(t, 1-0.15, DixonColesTau(1, 1, r, rho), 1e-12)
	assert.Equal(t, 1.0, DixonColesTau(2, 0, r, rho))
	assert.Equal(t, 1.0, DixonColesTau(0, 2, r, rho))
	assert.Equal(t, 1.0, DixonColesTau(3, 3, r, rho))

	// 0-0 factor floors at 0.01 for extreme rates.
	assert.Equal(t, 0.01, DixonColesTau(0, 0, ScoringRates{MaxRate, MaxRate}, 0.08))
}

func TestBuild_OnlyLowScoresDeviateFromIndependence(t *testing.T) {
	r := ScoringRates{Home: 1.5, Away: 1.0}
	g := NewGridBuilder().Build(r)
	require.Equal(t, Cutoff(r), g.MaxGoals)

	rho := DixonColesRho(r)
	g.Each(func(h, a int, p float64) {
		independent := PoissonProb(r.Home, h) * PoissonProb(r.Away, a)
		assert.InDelta(t, independent*DixonColesTau(h, a, r, rho), p, 1e-15, "%d-%d", h, a)
		assert.GreaterOrEqual(t, p, 0.0)
	})
	assert.InDelta(t, 1.0, g.Total(), 0.01)
}

func TestScoreGrid_ProbOutsideGrid(t *testing.T) {
	g := NewGridBuilder().Build(ScoringRates{Home: 1, Away: 1})
	assert.Equal(t, 0.0, g.Prob(-1, 0))
	assert.Equal(t, 0.0, g.Prob(g.MaxGoals+1, 0))
	assert.Greater(t, g.Prob(1, 1), 0.0)
}

func TestScoreGrid_MapDoesNotMutate(t *testing.T) {
	g := NewGridBuilder().Build(ScoringRates{Home: 1.3, Away: 1.1})
	before := g.Prob(0, 0)
	mapped := g.Map(func(_, _ int, p float64) float64 { return p * 2 })
	assert.Equal(t, before, g.Prob(0, 0))
	assert.InDelta(t, 2*before, mapped.Prob(0, 0), 1e-15)
	assert.Equal(t, g.Rates, mapped.Rates)
}
