package engine

import (
	"context"
	"sort"

	"github.com/Pathwise-Labs/Elicit/internal/adaptive"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// DimensionScore is one dimension of the estimate, ranked by preference.
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Mean      float64 `json:"mean"`
	Variance  float64 `json:"variance"`
	Rank      int     `json:"rank"`
}

// EstimateResult is the consumer-facing read of a session's posterior.
type EstimateResult struct {
	SessionID     string            `json:"session_id"`
	Status        session.Status    `json:"status"`
	Mean          vignette.Features `json:"posterior_mean"`
	Covariance    adaptive.Matrix   `json:"posterior_covariance"`
	Dimensions    []DimensionScore  `json:"dimensions"`
	Confidence    string            `json:"confidence"`
	ChoiceCount   int               `json:"choice_count"`
	AdaptiveShown int               `json:"adaptive_vignettes_shown"`
	StopReason    string            `json:"stop_reason,omitempty"`
}

// Estimate returns the current posterior read, ranked per dimension with a
// confidence tier. Valid at any point in the session; early reads just carry
// wide variances and a low tier.
func (e *Engine) Estimate(ctx context.Context, id string) (*EstimateResult, error) {
	st, err := e.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	dims := make([]DimensionScore, vignette.Dimensions)
	for i := 0; i < vignette.Dimensions; i++ {
		dims[i] = DimensionScore{
			Dimension: vignette.DimensionNames[i],
			Mean:      st.Posterior.Mean[i],
			Variance:  st.Posterior.Covariance[i][i],
		}
	}
	sort.SliceStable(dims, func(i, j int) bool { return dims[i].Mean > dims[j].Mean })
	for i := range dims {
		dims[i].Rank = i + 1
	}

	return &EstimateResult{
		SessionID:     st.ID,
		Status:        st.Status,
		Mean:          st.Posterior.Mean,
		Covariance:    st.Posterior.Covariance,
		Dimensions:    dims,
		Confidence:    adaptive.ConfidenceTier(st.Posterior, e.params),
		ChoiceCount:   len(st.Choices),
		AdaptiveShown: st.AdaptiveShown,
		StopReason:    st.StopReason,
	}, nil
}

// Explanation is the diagnostic read: why the engine picked what it picked
// and where the stopping rules stand.
type Explanation struct {
	SessionID  string              `json:"session_id"`
	Phase      string              `json:"phase"`
	Selection  *adaptive.Selection `json:"selection,omitempty"`
	Stopping   adaptive.Decision   `json:"stopping"`
	FIMDet     float64             `json:"fim_det"`
	Confidence string              `json:"confidence"`
}

// Explain reports the latest adaptive selection breakdown (when one has been
// served this process lifetime) and a fresh stopping evaluation.
func (e *Engine) Explain(ctx context.Context, id string) (*Explanation, error) {
	st, err := e.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	var d adaptive.Decision
	if st.AdaptiveComplete {
		d = adaptive.Decision{
			Stop:          true,
			Reason:        st.StopReason,
			AdaptiveShown: st.AdaptiveShown,
			FIMDet:        st.FIM.Det(),
			MaxVariance:   st.Posterior.Covariance.MaxDiagonal(),
		}
	} else {
		d = e.stopping.Decide(st.AdaptiveShown, st.Posterior, st.FIM)
	}

	e.mu.RLock()
	sel := e.lastSelection[id]
	e.mu.RUnlock()

	return &Explanation{
		SessionID:  st.ID,
		Phase:      e.phaseOf(st),
		Selection:  sel,
		Stopping:   d,
		FIMDet:     st.FIM.Det(),
		Confidence: adaptive.ConfidenceTier(st.Posterior, e.params),
	}, nil
}

// phaseOf names the session's current phase without running the optimizer.
func (e *Engine) phaseOf(st *session.State) string {
	for _, b := range e.library.Beginning() {
		if !st.HasCompleted(b.ID) {
			return PhaseStaticBeginning
		}
	}
	if !st.AdaptiveComplete {
		return PhaseAdaptive
	}
	for _, f := range e.library.End() {
		if !st.HasCompleted(f.ID) {
			return PhaseStaticEnd
		}
	}
	return PhaseComplete
}
