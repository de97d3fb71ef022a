package adaptive

import (
	"fmt"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Params is the numeric configuration of the estimator. Values arrive from
// the service configuration; Validate runs eagerly at startup so a bad value
// never reaches a live session.
type Params struct {
	PriorMean                vignette.Features
	PriorVariance            float64
	MinVignettes             int
	MaxVignettes             int
	FIMDetThreshold          float64
	MaxVarianceThreshold     float64
	Temperature              float64
	MaxNewtonIterations      int
	ConvergenceTolerance     float64
	UncertaintyThreshold     float64
	FIMRegularization        float64
	CovarianceRegularization float64
}

// DefaultParams returns the production defaults: a flat unit-variance prior
// and thresholds sized to the [0,1] feature grid.
func DefaultParams() Params {
	return Params{
		PriorMean:                vignette.Features{},
		PriorVariance:            1.0,
		MinVignettes:             5,
		MaxVignettes:             15,
		FIMDetThreshold:          0.5,
		MaxVarianceThreshold:     0.3,
		Temperature:              1.0,
		MaxNewtonIterations:      25,
		ConvergenceTolerance:     1e-6,
		UncertaintyThreshold:     0.5,
		FIMRegularization:        1e-6,
		CovarianceRegularization: 1e-6,
	}
}

// Validate checks every numeric constraint and names the offending field.
func (p Params) Validate() error {
	if p.PriorVariance <= 0 {
		return fmt.Errorf("prior_variance must be > 0, got %g", p.PriorVariance)
	}
	if p.MinVignettes < 0 {
		return fmt.Errorf("min_vignettes must be >= 0, got %d", p.MinVignettes)
	}
	if p.MaxVignettes < p.MinVignettes {
		return fmt.Errorf("max_vignettes %d below min_vignettes %d", p.MaxVignettes, p.MinVignettes)
	}
	if p.Temperature <= 0 {
		return fmt.Errorf("temperature must be > 0, got %g", p.Temperature)
	}
	if p.MaxNewtonIterations < 1 {
		return fmt.Errorf("max_newton_iterations must be >= 1, got %d", p.MaxNewtonIterations)
	}
	if p.ConvergenceTolerance <= 0 {
		return fmt.Errorf("convergence_tolerance must be > 0, got %g", p.ConvergenceTolerance)
	}
	if p.FIMDetThreshold <= 0 {
		return fmt.Errorf("fim_det_threshold must be > 0, got %g", p.FIMDetThreshold)
	}
	if p.MaxVarianceThreshold <= 0 {
		return fmt.Errorf("max_variance_threshold must be > 0, got %g", p.MaxVarianceThreshold)
	}
	if p.UncertaintyThreshold <= 0 {
		return fmt.Errorf("uncertainty_threshold must be > 0, got %g", p.UncertaintyThreshold)
	}
	if p.FIMRegularization < 0 {
		return fmt.Errorf("fim_regularization must be >= 0, got %g", p.FIMRegularization)
	}
	if p.CovarianceRegularization < 0 {
		return fmt.Errorf("covariance_regularization must be >= 0, got %g", p.CovarianceRegularization)
	}
	return nil
}
