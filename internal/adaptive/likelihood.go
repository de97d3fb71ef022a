package adaptive

import (
	"fmt"
	"math"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// ChoiceProbability returns P(choose a over b) under the binary logit model:
// sigmoid(temperature * theta . (fa - fb)).
func ChoiceProbability(theta, fa, fb vignette.Features, temperature float64) float64 {
	return sigmoid(temperature * theta.Dot(fa.Sub(fb)))
}

// deltaProbability is ChoiceProbability expressed on a precomputed feature
// difference. The inner loops of the posterior and the FIM work off deltas.
func deltaProbability(theta, delta vignette.Features, temperature float64) float64 {
	return sigmoid(temperature * theta.Dot(delta))
}

// sigmoid is the logistic function, stable for large |z| in either direction.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logSigmoid returns log(sigmoid(z)) without overflow.
func logSigmoid(z float64) float64 {
	if z >= 0 {
		return -math.Log1p(math.Exp(-z))
	}
	return z - math.Log1p(math.Exp(z))
}

// LikelihoodFunc gives the probability of an observed choice as a function of
// the preference vector.
type LikelihoodFunc func(theta vignette.Features) float64

// NewLikelihood binds a vignette and the observed choice into a likelihood
// closure. The option id must belong to the vignette.
func NewLikelihood(v *vignette.Vignette, chosenID string, temperature float64) (LikelihoodFunc, error) {
	obs, err := NewObservation(v, chosenID)
	if err != nil {
		return nil, fmt.Errorf("likelihood for vignette %s: %w", v.ID, err)
	}
	return func(theta vignette.Features) float64 {
		return deltaProbability(theta, obs.Delta, temperature)
	}, nil
}
