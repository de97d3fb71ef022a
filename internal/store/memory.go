package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/session"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// storeless development runs; production deployments use Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Snapshot
	choices  map[string][]session.Choice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session.Snapshot),
		choices:  make(map[string][]session.Choice),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateSession(_ context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[snap.SessionID]; exists {
		return fmt.Errorf("session %s already exists", snap.SessionID)
	}
	now := time.Now().UTC()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now
	s.sessions[snap.SessionID] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySnapshot(snap), nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[snap.SessionID]; !exists {
		return fmt.Errorf("session %s not found", snap.SessionID)
	}
	snap.UpdatedAt = time.Now().UTC()
	s.sessions[snap.SessionID] = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) ListSessions(_ context.Context, filter SessionFilter) ([]*session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []*session.Snapshot
	for _, snap := range s.sessions {
		if filter.Status != nil && snap.Status != *filter.Status {
			continue
		}
		if filter.UpdatedBefore != nil && !snap.UpdatedAt.Before(*filter.UpdatedBefore) {
			continue
		}
		snaps = append(snaps, copySnapshot(snap))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.Before(snaps[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(snaps) {
			return nil, nil
		}
		snaps = snaps[filter.Offset:]
	}
	if filter.Limit > 0 && len(snaps) > filter.Limit {
		snaps = snaps[:filter.Limit]
	}
	return snaps, nil
}

func (s *MemoryStore) AppendChoice(_ context.Context, sessionID string, c session.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; !exists {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.choices[sessionID] = append(s.choices[sessionID], c)
	return nil
}

func (s *MemoryStore) ListChoices(_ context.Context, sessionID string) ([]session.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.Choice(nil), s.choices[sessionID]...), nil
}

func (s *MemoryStore) GetStats(_ context.Context) (*SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &SessionStats{TotalSessions: len(s.sessions)}
	for _, snap := range s.sessions {
		switch snap.Status {
		case session.StatusActive:
			stats.ActiveSessions++
		case session.StatusCompleted:
			stats.CompletedSessions++
		case session.StatusAbandoned:
			stats.AbandonedSessions++
		}
		if snap.AdaptivePhaseComplete {
			stats.AdaptiveComplete++
		}
	}
	for _, cs := range s.choices {
		stats.TotalChoices += len(cs)
	}
	if stats.TotalSessions > 0 {
		stats.AvgChoices = float64(stats.TotalChoices) / float64(stats.TotalSessions)
	}
	return stats, nil
}

func copySnapshot(snap *session.Snapshot) *session.Snapshot {
	out := *snap
	out.CompletedVignettes = append([]string(nil), snap.CompletedVignettes...)
	return &out
}
