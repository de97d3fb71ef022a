package adaptive

import (
	"log/slog"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Selection criteria reported on the explain surface.
const (
	CriterionDOptimal = "d_optimal"
	CriterionAOptimal = "a_optimal"
)

// CandidateScore records one candidate's evaluation.
type CandidateScore struct {
	VignetteID string  `json:"vignette_id"`
	Det        float64 `json:"det"`
	Trace      float64 `json:"trace"`
	Skipped    string  `json:"skipped,omitempty"`
}

// Selection is the optimizer's outcome for one adaptive turn.
type Selection struct {
	Vignette   *vignette.Vignette `json:"-"`
	VignetteID string             `json:"vignette_id"`
	Criterion  string             `json:"criterion"`
	Score      float64            `json:"score"`
	Evaluated  int                `json:"evaluated"`
	Scores     []CandidateScore   `json:"scores"`
}

// Optimizer picks the next vignette by greedy one-step-ahead D-efficiency:
// maximize det(cumulative FIM + candidate contribution) at the current
// posterior mean.
type Optimizer struct {
	params Params
	logger *slog.Logger
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(params Params, logger *slog.Logger) *Optimizer {
	return &Optimizer{params: params, logger: logger}
}

// SelectBest evaluates the candidates against the accumulated information and
// returns the winner, or nil when no usable candidate remains. Candidates
// whose option pair is dominance-degenerate are skipped up front. Ties keep
// the earliest candidate: only a strictly greater score displaces the
// incumbent, so insertion order is the tie-break. When every candidate's
// determinant is degenerate (<= 0) the optimizer falls back to the trace
// criterion and says so in the log and the selection.
func (o *Optimizer) SelectBest(candidates []*vignette.Vignette, cum Matrix, theta vignette.Features) *Selection {
	scores := make([]CandidateScore, 0, len(candidates))

	var (
		bestDet        *vignette.Vignette
		bestDetScore   float64
		bestTrace      *vignette.Vignette
		bestTraceScore float64
		evaluated      int
	)
	for _, c := range candidates {
		if c.Degenerate() {
			scores = append(scores, CandidateScore{VignetteID: c.ID, Skipped: "degenerate"})
			continue
		}
		next := Accumulate(cum, c, theta, o.params)
		det := next.Det()
		tr := next.Trace()
		scores = append(scores, CandidateScore{VignetteID: c.ID, Det: det, Trace: tr})
		evaluated++

		if bestDet == nil || det > bestDetScore {
			bestDet, bestDetScore = c, det
		}
		if bestTrace == nil || tr > bestTraceScore {
			bestTrace, bestTraceScore = c, tr
		}
	}
	if evaluated == 0 {
		return nil
	}

	sel := &Selection{
		Vignette:   bestDet,
		VignetteID: bestDet.ID,
		Criterion:  CriterionDOptimal,
		Score:      bestDetScore,
		Evaluated:  evaluated,
		Scores:     scores,
	}
	if bestDetScore <= 0 {
		// Degenerate determinant across the board, typically early in a
		// session before the FIM spans all dimensions.
		sel.Vignette = bestTrace
		sel.VignetteID = bestTrace.ID
		sel.Criterion = CriterionAOptimal
		sel.Score = bestTraceScore
		o.logger.Warn("d-efficiency degenerate for all candidates, using trace criterion",
			"evaluated", evaluated,
			"selected", sel.VignetteID,
			"trace", bestTraceScore)
	}
	return sel
}
