package store

import (
	"context"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/session"
)

type SessionFilter struct {
	Status        *session.Status
	UpdatedBefore *time.Time
	Limit         int
	Offset        int
}

type SessionStats struct {
	TotalSessions     int     `json:"total_sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	AbandonedSessions int     `json:"abandoned_sessions"`
	AdaptiveComplete  int     `json:"adaptive_complete"`
	TotalChoices      int     `json:"total_choices"`
	AvgChoices        float64 `json:"avg_choices_per_session"`
}

// Store persists session snapshots and their append-only choice logs.
// Get returns (nil, nil) when the session does not exist.
type Store interface {
	CreateSession(ctx context.Context, snap *session.Snapshot) error
	GetSession(ctx context.Context, id string) (*session.Snapshot, error)
	UpdateSession(ctx context.Context, snap *session.Snapshot) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*session.Snapshot, error)

	AppendChoice(ctx context.Context, sessionID string, c session.Choice) error
	ListChoices(ctx context.Context, sessionID string) ([]session.Choice, error)

	GetStats(ctx context.Context) (*SessionStats, error)

	Close() error
}
