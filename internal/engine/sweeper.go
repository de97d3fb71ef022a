package engine

import (
	"context"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/events"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/store"
)

func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepAbandoned(ctx)
		}
	}
}

// sweepAbandoned marks active sessions idle past the TTL as abandoned. The
// choice log stays; an abandoned session is terminal but fully replayable.
func (e *Engine) sweepAbandoned(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-e.cfg.AbandonAfter())
	active := session.StatusActive
	stale, err := e.store.ListSessions(ctx, store.SessionFilter{Status: &active, UpdatedBefore: &cutoff})
	if err != nil {
		e.logger.Error("failed to list stale sessions", "error", err)
		return
	}

	for _, snap := range stale {
		snap.Status = session.StatusAbandoned
		if err := e.store.UpdateSession(ctx, snap); err != nil {
			e.logger.Error("failed to abandon session", "session_id", snap.SessionID, "error", err)
			continue
		}
		sessionsAbandoned.Inc()
		if e.events != nil {
			_ = e.events.Publish(events.SubjectSessionAbandoned(snap.SessionID), events.SessionAbandonedEvent{
				SessionID:    snap.SessionID,
				TotalChoices: len(snap.CompletedVignettes),
				IdleSince:    snap.UpdatedAt,
			})
		}
		e.logger.Info("session abandoned", "session_id", snap.SessionID, "idle_since", snap.UpdatedAt)
		e.evict(snap.SessionID)
	}
}
