package adaptive

import (
	"log/slog"
)

// Stop and continue reasons, in rule order.
const (
	ReasonMinNotReached     = "min_vignettes_not_reached"
	ReasonMaxReached        = "max_vignettes_reached"
	ReasonInfoSufficient    = "information_sufficient"
	ReasonVarianceConverged = "variance_converged"
	ReasonInfoInsufficient  = "information_insufficient"

	// ReasonCandidatesExhausted is set by the engine, not by the rule chain:
	// an empty candidate pool ends the adaptive phase implicitly.
	ReasonCandidatesExhausted = "candidates_exhausted"
)

// Decision is one stopping evaluation.
type Decision struct {
	Stop          bool    `json:"stop"`
	Reason        string  `json:"reason"`
	AdaptiveShown int     `json:"adaptive_shown"`
	FIMDet        float64 `json:"fim_det"`
	MaxVariance   float64 `json:"max_variance"`
}

// StoppingRule ends the adaptive phase once enough information has been
// gathered, bounded by the min/max vignette counts.
type StoppingRule struct {
	params Params
	logger *slog.Logger
}

// NewStoppingRule creates a StoppingRule.
func NewStoppingRule(params Params, logger *slog.Logger) *StoppingRule {
	return &StoppingRule{params: params, logger: logger}
}

// Decide applies the ordered rules; the first match wins.
//  1. below min_vignettes: continue, regardless of any threshold
//  2. at or past max_vignettes: stop
//  3. det(FIM) above threshold: stop
//  4. every posterior variance below threshold: stop
//  5. otherwise continue
//
// Stickiness is the engine's job: once it latches a stop decision for a
// session the rule chain is never consulted again.
func (r *StoppingRule) Decide(adaptiveShown int, est Estimate, fim Matrix) Decision {
	d := Decision{
		AdaptiveShown: adaptiveShown,
		FIMDet:        fim.Det(),
		MaxVariance:   est.Covariance.MaxDiagonal(),
	}

	switch {
	case adaptiveShown < r.params.MinVignettes:
		d.Reason = ReasonMinNotReached
	case adaptiveShown >= r.params.MaxVignettes:
		d.Stop = true
		d.Reason = ReasonMaxReached
	case d.FIMDet > r.params.FIMDetThreshold:
		d.Stop = true
		d.Reason = ReasonInfoSufficient
	case d.MaxVariance < r.params.MaxVarianceThreshold:
		d.Stop = true
		d.Reason = ReasonVarianceConverged
	default:
		d.Reason = ReasonInfoInsufficient
	}

	if d.Stop {
		r.logger.Info("adaptive phase stopping",
			"reason", d.Reason,
			"adaptive_shown", d.AdaptiveShown,
			"fim_det", d.FIMDet,
			"max_variance", d.MaxVariance)
	}
	return d
}

// Confidence tiers for the estimate surface.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceTier grades an estimate by mean posterior variance against the
// uncertainty threshold: below it is high confidence, within twice it is
// medium, beyond that low.
func ConfidenceTier(est Estimate, params Params) string {
	meanVar := est.Covariance.Trace() / Dimensions
	switch {
	case meanVar < params.UncertaintyThreshold:
		return ConfidenceHigh
	case meanVar < 2*params.UncertaintyThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
