package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLineStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLineStore()
	start := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	_, err := s.OpeningLine(ctx, "a|b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestLine(ctx, "a|b")
	assert.ErrorIs(t, err, ErrNotFound)

	// Appended out of order: the opening line is the earliest recorded one.
	require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "a|b", StartTime: start, Spread: -0.75, Total: 2.75, RecordedAt: start.Add(-time.Hour)}))
	require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "a|b", StartTime: start, Spread: -0.5, Total: 2.5, RecordedAt: start.Add(-5 * time.Hour)}))
	require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "c|d", StartTime: start.Add(24 * time.Hour), Spread: 0, Total: 2.5, RecordedAt: start}))

	opening, err := s.OpeningLine(ctx, "a|b")
	require.NoError(t, err)
	assert.Equal(t, -0.5, opening.Spread)

	latest, err := s.LatestLine(ctx, "a|b")
	require.NoError(t, err)
	assert.Equal(t, -0.75, latest.Spread)

	history, err := s.LineHistory(ctx, "a|b", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, -0.75, history[0].Spread)

	removed, err := s.CleanStartedMatches(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = s.OpeningLine(ctx, "a|b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.OpeningLine(ctx, "c|d")
	assert.NoError(t, err)
}

func TestMemoryLineStore_KeepsMatchesWithoutStartTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLineStore()
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "a|b", Spread: -0.5, Total: 2.5, RecordedAt: at}))
	require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "a|b", Spread: -1, Total: 2.75, RecordedAt: at.Add(time.Hour)}))

	removed, err := s.CleanStartedMatches(ctx, at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	opening, err := s.OpeningLine(ctx, "a|b")
	require.NoError(t, err)
	assert.Equal(t, -0.5, opening.Spread)
}

func TestMemoryLineStore_HistoryWithoutLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLineStore()
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, s.AppendLine(ctx, LineSnapshot{MatchKey: "a|b", Total: 2.5, RecordedAt: at.Add(time.Duration(i) * time.Minute)}))
	}

	history, err := s.LineHistory(ctx, "a|b", 0)
	require.NoError(t, err)
	assert.Len(t, history, 60)
	assert.Equal(t, at, history[0].RecordedAt)
}
