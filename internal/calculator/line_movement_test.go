package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/linecalc/internal/engine"
)

func TestDetectMovements(t *testing.T) {
	e, err := engine.New(engine.DefaultOptions())
	require.NoError(t, err)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	match := MatchRef{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}

	rep := e.Compute(engine.Request{
		Opening: engine.MatchLine{Spread: -0.5, Total: 2.5},
		Current: engine.MatchLine{Spread: -1.0, Total: 3.0},
	})

	movements := DetectMovements(match, rep, 3, now)
	require.NotEmpty(t, movements)

	for i, m := range movements {
		assert.GreaterOrEqual(t, math.Abs(m.ChangePP), 3.0)
		assert.InDelta(t, (m.CurrentProbability-m.OpeningProbability)*100, m.ChangePP, 1e-9)
		assert.Equal(t, "Arsenal vs Chelsea", m.MatchName)
		assert.Equal(t, now, m.DetectedAt)
		if i > 0 {
			assert.LessOrEqual(t, math.Abs(m.ChangePP), math.Abs(movements[i-1].ChangePP))
		}
	}

	// A higher threshold only keeps a subset.
	strict := DetectMovements(match, rep, 8, now)
	assert.Less(t, len(strict), len(movements))
}

func TestDetectMovements_NoChange(t *testing.T) {
	e, err := engine.New(engine.DefaultOptions())
	require.NoError(t, err)

	l := engine.MatchLine{Spread: -0.25, Total: 2.5}
	rep := e.Compute(engine.Request{Opening: l, Current: l})

	assert.Empty(t, DetectMovements(MatchRef{HomeTeam: "A", AwayTeam: "B"}, rep, 0.01, time.Now()))
	// Non-positive threshold disables detection.
	moved := e.Compute(engine.Request{Opening: l, Current: engine.MatchLine{Spread: -1.5, Total: 3.5}})
	assert.Nil(t, DetectMovements(MatchRef{HomeTeam: "A", AwayTeam: "B"}, moved, 0, time.Now()))
}
