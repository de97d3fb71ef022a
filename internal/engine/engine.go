// Package engine orchestrates elicitation sessions: the three-phase vignette
// sequence, posterior updates on every recorded choice, and the stopping
// decision that closes the adaptive phase.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pathwise-Labs/Elicit/internal/adaptive"
	"github.com/Pathwise-Labs/Elicit/internal/config"
	"github.com/Pathwise-Labs/Elicit/internal/events"
	"github.com/Pathwise-Labs/Elicit/internal/narrator"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/store"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Session phases in presentation order.
const (
	PhaseStaticBeginning = "static_beginning"
	PhaseAdaptive        = "adaptive"
	PhaseStaticEnd       = "static_end"
	PhaseComplete        = "complete"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotActive = errors.New("session not active")
	ErrUnknownVignette  = errors.New("unknown vignette")
	ErrUnknownOption    = errors.New("unknown option")
	ErrAlreadyAnswered  = errors.New("vignette already answered in this session")

	// ErrDuplicateSelection means the engine was about to serve a vignette the
	// session has already completed. That is an internal invariant violation,
	// not a caller mistake.
	ErrDuplicateSelection = errors.New("duplicate vignette selection")
)

type Engine struct {
	store     store.Store
	events    events.Client
	narrator  narrator.Client
	library   *vignette.Library
	params    adaptive.Params
	posterior *adaptive.Posterior
	optimizer *adaptive.Optimizer
	stopping  *adaptive.StoppingRule
	cfg       *config.Config
	logger    *slog.Logger

	// Presentation-side caches. None of this is session state: losing it on
	// restart costs a narration round-trip, nothing more.
	mu            sync.RWMutex
	userCtx       map[string]vignette.UserContext
	narrations    map[string]*narrator.Narration
	lastSelection map[string]*adaptive.Selection

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, ev events.Client, nr narrator.Client, lib *vignette.Library, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	params := adaptive.Params{
		PriorVariance:            cfg.Adaptive.PriorVariance,
		MinVignettes:             cfg.Adaptive.MinVignettes,
		MaxVignettes:             cfg.Adaptive.MaxVignettes,
		FIMDetThreshold:          cfg.Adaptive.FIMDetThreshold,
		MaxVarianceThreshold:     cfg.Adaptive.MaxVarianceThreshold,
		Temperature:              cfg.Adaptive.Temperature,
		MaxNewtonIterations:      cfg.Adaptive.MaxNewtonIterations,
		ConvergenceTolerance:     cfg.Adaptive.ConvergenceTolerance,
		UncertaintyThreshold:     cfg.Adaptive.UncertaintyThreshold,
		FIMRegularization:        cfg.Adaptive.FIMRegularization,
		CovarianceRegularization: cfg.Adaptive.CovarianceRegularization,
	}
	for i, v := range cfg.Adaptive.PriorMean {
		params.PriorMean[i] = v
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("adaptive config: %w", err)
	}

	return &Engine{
		store:         s,
		events:        ev,
		narrator:      nr,
		library:       lib,
		params:        params,
		posterior:     adaptive.NewPosterior(params, logger),
		optimizer:     adaptive.NewOptimizer(params, logger),
		stopping:      adaptive.NewStoppingRule(params, logger),
		cfg:           cfg,
		logger:        logger,
		userCtx:       make(map[string]vignette.UserContext),
		narrations:    make(map[string]*narrator.Narration),
		lastSelection: make(map[string]*adaptive.Selection),
		stopCh:        make(chan struct{}),
	}, nil
}

// Params returns the validated adaptive parameter set in effect.
func (e *Engine) Params() adaptive.Params { return e.params }

// Library returns the vignette library the engine selects from.
func (e *Engine) Library() *vignette.Library { return e.library }

// Start launches the background loops. Stop is its counterpart.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.sweepLoop(ctx)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// StartSession creates a session at the prior. An empty id lets the engine
// mint one. The user context only feeds narration; it is not session state.
func (e *Engine) StartSession(ctx context.Context, id string, user vignette.UserContext) (*session.State, error) {
	if id == "" {
		id = uuid.New().String()
	} else {
		existing, err := e.store.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if existing != nil {
			return nil, ErrSessionExists
		}
	}

	st := session.New(id, e.posterior.Prior(), time.Now().UTC())
	if err := e.store.CreateSession(ctx, st.Snapshot()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	e.mu.Lock()
	e.userCtx[id] = user
	e.mu.Unlock()

	sessionsCreated.Inc()
	if e.events != nil {
		_ = e.events.Publish(events.SubjectSessionCreated(id), events.SessionCreatedEvent{
			SessionID:  id,
			Occupation: user.Occupation,
			CreatedAt:  st.CreatedAt,
		})
	}
	e.logger.Info("session created", "session_id", id)
	return st, nil
}

// GetSession loads a session. When the snapshot and the choice log disagree
// the log wins: state is rebuilt by replay, which is exactly what the
// append-only model is for.
func (e *Engine) GetSession(ctx context.Context, id string) (*session.State, error) {
	snap, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}
	choices, err := e.store.ListChoices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}

	st, err := session.FromSnapshot(snap, choices)
	if err != nil {
		e.logger.Warn("snapshot disagrees with choice log, replaying log", "session_id", id, "error", err)
		return e.rebuild(snap, choices)
	}
	return st, nil
}

// rebuild replays the choice log from the prior, reproducing the posterior,
// the FIM, and the stopping latch step by step.
func (e *Engine) rebuild(snap *session.Snapshot, choices []session.Choice) (*session.State, error) {
	st := session.New(snap.SessionID, e.posterior.Prior(), snap.CreatedAt)
	st.Status = snap.Status

	for _, c := range choices {
		v := e.library.Get(c.VignetteID)
		if v == nil {
			return nil, fmt.Errorf("session %s: choice log references unknown vignette %s", snap.SessionID, c.VignetteID)
		}
		st.Append(c)

		obs, err := e.observations(st.Choices)
		if err != nil {
			return nil, err
		}
		res := e.posterior.Update(obs)
		st.Posterior = res.Estimate
		st.FIM = adaptive.Accumulate(st.FIM, v, res.Estimate.Mean, e.params)
		if !e.isStatic(v.ID) {
			st.AdaptiveShown++
		}
		if !st.AdaptiveComplete {
			if d := e.stopping.Decide(st.AdaptiveShown, st.Posterior, st.FIM); d.Stop {
				st.MarkAdaptiveComplete(d.Reason)
			}
		}
	}
	if snap.UpdatedAt.After(st.UpdatedAt) {
		st.UpdatedAt = snap.UpdatedAt
	}
	return st, nil
}

// NextResult is one answer to "what should this session see now".
type NextResult struct {
	Complete  bool                `json:"complete"`
	Phase     string              `json:"phase,omitempty"`
	Vignette  *vignette.Vignette  `json:"vignette,omitempty"`
	Narration *narrator.Narration `json:"narration,omitempty"`
}

// NextVignette selects the next vignette for the session: static beginning in
// order, then adaptive by D-efficiency until the stopping latch, then static
// end in order. A nil vignette means every phase is exhausted.
func (e *Engine) NextVignette(ctx context.Context, id string) (*NextResult, error) {
	start := time.Now()
	st, err := e.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status == session.StatusAbandoned {
		return nil, ErrSessionNotActive
	}
	if st.Status == session.StatusCompleted {
		return &NextResult{Complete: true, Phase: PhaseComplete}, nil
	}

	v, phase, sel, latched := e.selectNext(st)
	if latched {
		if err := e.store.UpdateSession(ctx, st.Snapshot()); err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
	}
	if v == nil {
		if err := e.complete(ctx, st); err != nil {
			return nil, err
		}
		return &NextResult{Complete: true, Phase: PhaseComplete}, nil
	}

	if st.HasCompleted(v.ID) {
		e.logger.Error("selected vignette already completed", "session_id", id, "vignette_id", v.ID, "phase", phase)
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSelection, v.ID)
	}

	if sel != nil {
		e.mu.Lock()
		e.lastSelection[id] = sel
		e.mu.Unlock()
	}

	selectionDuration.Observe(time.Since(start).Seconds())
	if e.events != nil {
		evt := events.VignetteSelectedEvent{
			SessionID:  id,
			VignetteID: v.ID,
			Phase:      phase,
		}
		if sel != nil {
			evt.Criterion = sel.Criterion
			evt.Score = sel.Score
			evt.Evaluated = sel.Evaluated
		}
		_ = e.events.Publish(events.SubjectVignetteSelected(id), evt)
	}

	e.prewarm(id, v)
	return &NextResult{
		Phase:     phase,
		Vignette:  v,
		Narration: e.narration(id, v.ID),
	}, nil
}

// selectNext walks the phases. It may latch the adaptive phase closed when
// the candidate pool is exhausted; latched reports that transition so the
// caller can persist it.
func (e *Engine) selectNext(st *session.State) (v *vignette.Vignette, phase string, sel *adaptive.Selection, latched bool) {
	for _, b := range e.library.Beginning() {
		if !st.HasCompleted(b.ID) {
			return b, PhaseStaticBeginning, nil, false
		}
	}

	if !st.AdaptiveComplete {
		var pool []*vignette.Vignette
		for _, c := range e.library.Adaptive() {
			if !st.HasCompleted(c.ID) {
				pool = append(pool, c)
			}
		}
		if len(pool) > 0 {
			if s := e.optimizer.SelectBest(pool, st.FIM, st.Posterior.Mean); s != nil {
				if s.Criterion == adaptive.CriterionAOptimal {
					optimizerFallbacks.Inc()
				}
				return s.Vignette, PhaseAdaptive, s, false
			}
		}
		// Nothing usable left: the pool ran dry before any threshold fired.
		e.latchStop(st, adaptive.ReasonCandidatesExhausted)
		latched = true
	}

	for _, f := range e.library.End() {
		if !st.HasCompleted(f.ID) {
			return f, PhaseStaticEnd, nil, latched
		}
	}
	return nil, PhaseComplete, nil, latched
}

// RecordChoice appends one observation, replays the posterior over the whole
// log, folds the vignette's information into the FIM at the new mean, and
// evaluates stopping while the adaptive phase is open.
func (e *Engine) RecordChoice(ctx context.Context, id, vignetteID, optionID string) (*session.State, error) {
	st, err := e.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != session.StatusActive {
		return nil, ErrSessionNotActive
	}

	v := e.library.Get(vignetteID)
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVignette, vignetteID)
	}
	if st.HasCompleted(vignetteID) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAnswered, vignetteID)
	}
	if v.Option(optionID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}

	choice := session.Choice{VignetteID: vignetteID, OptionID: optionID, ChosenAt: time.Now().UTC()}
	st.Append(choice)

	obs, err := e.observations(st.Choices)
	if err != nil {
		return nil, err
	}
	res := e.posterior.Update(obs)
	st.Posterior = res.Estimate
	st.FIM = adaptive.Accumulate(st.FIM, v, res.Estimate.Mean, e.params)

	newtonIterations.Observe(float64(res.Iterations))
	if !res.Converged {
		newtonNonConverged.Inc()
	}

	if !e.isStatic(vignetteID) {
		st.AdaptiveShown++
	}
	if !st.AdaptiveComplete {
		if d := e.stopping.Decide(st.AdaptiveShown, st.Posterior, st.FIM); d.Stop {
			e.latchStop(st, d.Reason)
		}
	}

	if err := e.store.AppendChoice(ctx, id, choice); err != nil {
		return nil, fmt.Errorf("append choice: %w", err)
	}
	if err := e.store.UpdateSession(ctx, st.Snapshot()); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	if e.events != nil {
		_ = e.events.Publish(events.SubjectChoiceRecorded(id), events.ChoiceRecordedEvent{
			SessionID:     id,
			VignetteID:    vignetteID,
			OptionID:      optionID,
			ChoiceCount:   len(st.Choices),
			AdaptiveShown: st.AdaptiveShown,
		})
	}
	e.logger.Info("choice recorded",
		"session_id", id,
		"vignette_id", vignetteID,
		"option_id", optionID,
		"adaptive_shown", st.AdaptiveShown,
		"newton_iterations", res.Iterations,
		"converged", res.Converged)

	// The choice just consumed may have been the last one available. The peek
	// can latch the exhausted-pool stop, so persist again when it does.
	next, _, _, latched := e.selectNext(st)
	if latched {
		if err := e.store.UpdateSession(ctx, st.Snapshot()); err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
	}
	if next == nil {
		if err := e.complete(ctx, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// latchStop closes the adaptive phase once. Repeat calls keep the first
// reason and publish nothing.
func (e *Engine) latchStop(st *session.State, reason string) {
	if st.AdaptiveComplete {
		return
	}
	st.MarkAdaptiveComplete(reason)
	stopReasons.WithLabelValues(reason).Inc()
	if e.events != nil {
		_ = e.events.Publish(events.SubjectAdaptiveCompleted(st.ID), events.AdaptiveCompletedEvent{
			SessionID:     st.ID,
			Reason:        reason,
			AdaptiveShown: st.AdaptiveShown,
			FIMDet:        st.FIM.Det(),
			MaxVariance:   st.Posterior.Covariance.MaxDiagonal(),
		})
	}
	e.logger.Info("adaptive phase complete", "session_id", st.ID, "reason", reason, "adaptive_shown", st.AdaptiveShown)
}

func (e *Engine) complete(ctx context.Context, st *session.State) error {
	if st.Status == session.StatusCompleted {
		return nil
	}
	st.Status = session.StatusCompleted
	st.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateSession(ctx, st.Snapshot()); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	sessionsCompleted.Inc()
	if e.events != nil {
		_ = e.events.Publish(events.SubjectSessionCompleted(st.ID), events.SessionCompletedEvent{
			SessionID:     st.ID,
			TotalChoices:  len(st.Choices),
			StopReason:    st.StopReason,
			PosteriorMean: append([]float64(nil), st.Posterior.Mean[:]...),
			Confidence:    adaptive.ConfidenceTier(st.Posterior, e.params),
			CompletedAt:   st.UpdatedAt,
		})
	}
	e.logger.Info("session complete", "session_id", st.ID, "choices", len(st.Choices), "stop_reason", st.StopReason)
	e.evict(st.ID)
	return nil
}

// SetupSubscriptions lets the conversation orchestrator start sessions over
// the bus as well as HTTP.
func (e *Engine) SetupSubscriptions() {
	if e.events == nil {
		return
	}
	_ = e.events.Subscribe(events.SubjectSessionRequest, func(_ string, data []byte) {
		var req events.SessionRequestEvent
		if err := json.Unmarshal(data, &req); err != nil {
			e.logger.Warn("invalid session request event", "error", err)
			return
		}
		user := vignette.UserContext{
			Occupation: req.Occupation,
			Region:     req.Region,
			Language:   req.Language,
		}
		if _, err := e.StartSession(context.Background(), req.SessionID, user); err != nil {
			e.logger.Error("failed to create session from bus request", "session_id", req.SessionID, "error", err)
		}
	})
}

func (e *Engine) observations(choices []session.Choice) ([]adaptive.Observation, error) {
	obs := make([]adaptive.Observation, 0, len(choices))
	for _, c := range choices {
		v := e.library.Get(c.VignetteID)
		if v == nil {
			return nil, fmt.Errorf("choice log references unknown vignette %s", c.VignetteID)
		}
		o, err := adaptive.NewObservation(v, c.OptionID)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// isStatic reports whether the id belongs to one of the fixed phases. Static
// choices still update the posterior and the FIM; they just never count
// toward the adaptive budget.
func (e *Engine) isStatic(id string) bool {
	for _, v := range e.library.Beginning() {
		if v.ID == id {
			return true
		}
	}
	for _, v := range e.library.End() {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) evict(sessionID string) {
	e.mu.Lock()
	delete(e.userCtx, sessionID)
	delete(e.lastSelection, sessionID)
	prefix := sessionID + "/"
	for k := range e.narrations {
		if strings.HasPrefix(k, prefix) {
			delete(e.narrations, k)
		}
	}
	e.mu.Unlock()
}
