package engine

import (
	"context"

	"github.com/Pathwise-Labs/Elicit/internal/narrator"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// prewarm asks the narrator for personalized text in the background so the
// conversational layer finds it ready. Selection never waits on it and a
// failure costs nothing but the warm cache.
func (e *Engine) prewarm(sessionID string, v *vignette.Vignette) {
	if e.narrator == nil || !e.cfg.Session.PrewarmEnabled {
		return
	}
	key := sessionID + "/" + v.ID

	e.mu.RLock()
	_, have := e.narrations[key]
	user := e.userCtx[sessionID]
	e.mu.RUnlock()
	if have {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NarratorTimeout())
		defer cancel()
		n, err := e.narrator.Personalize(ctx, v, user)
		if err != nil {
			e.logger.Warn("narration prewarm failed", "session_id", sessionID, "vignette_id", v.ID, "error", err)
			return
		}
		e.mu.Lock()
		e.narrations[key] = n
		e.mu.Unlock()
	}()
}

// narration returns the prewarmed text for a vignette if it arrived already.
func (e *Engine) narration(sessionID, vignetteID string) *narrator.Narration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.narrations[sessionID+"/"+vignetteID]
}
