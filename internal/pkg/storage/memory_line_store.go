package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Ensure MemoryLineStore implements LineStore
var _ LineStore = (*MemoryLineStore)(nil)

// MemoryLineStore is a LineStore for runs without a database.
type MemoryLineStore struct {
	mu    sync.RWMutex
	lines map[string][]LineSnapshot // kept ordered by RecordedAt
}

func NewMemoryLineStore() *MemoryLineStore {
	return &MemoryLineStore{lines: make(map[string][]LineSnapshot)}
}

func (m *MemoryLineStore) AppendLine(_ context.Context, snap LineSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := append(m.lines[snap.MatchKey], snap)
	// stable: equal timestamps keep insertion order
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].RecordedAt.Before(lines[j].RecordedAt)
	})
	m.lines[snap.MatchKey] = lines
	return nil
}

func (m *MemoryLineStore) OpeningLine(_ context.Context, matchKey string) (LineSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := m.lines[matchKey]
	if len(lines) == 0 {
		return LineSnapshot{}, ErrNotFound
	}
	return lines[0], nil
}

func (m *MemoryLineStore) LatestLine(_ context.Context, matchKey string) (LineSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := m.lines[matchKey]
	if len(lines) == 0 {
		return LineSnapshot{}, ErrNotFound
	}
	return lines[len(lines)-1], nil
}

func (m *MemoryLineStore) LineHistory(_ context.Context, matchKey string, limit int) ([]LineSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := m.lines[matchKey]
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return append([]LineSnapshot(nil), lines...), nil
}

func (m *MemoryLineStore) CleanStartedMatches(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, lines := range m.lines {
		if len(lines) > 0 && !lines[0].StartTime.IsZero() && lines[0].StartTime.Before(now) {
			removed += int64(len(lines))
			delete(m.lines, key)
		}
	}
	return removed, nil
}

func (m *MemoryLineStore) Close() error {
	return nil
}
