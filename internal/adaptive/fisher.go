package adaptive

import (
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Contribution returns one vignette's Fisher information at theta:
// p*(1-p) * delta*delta^T plus the configured diagonal regularization.
// p is the logit choice probability, so the contribution does not depend on
// which option ends up chosen (p*(1-p) is symmetric in the two options).
func Contribution(v *vignette.Vignette, theta vignette.Features, p Params) Matrix {
	delta := v.Delta()
	prob := deltaProbability(theta, delta, p.Temperature)
	w := prob * (1 - prob)

	var m Matrix
	for i := 0; i < Dimensions; i++ {
		for j := 0; j < Dimensions; j++ {
			m[i][j] = w * delta[i] * delta[j]
		}
	}
	return m.AddDiagonal(p.FIMRegularization)
}

// Accumulate folds a completed vignette into the running session FIM at the
// posterior mean current at completion time. Every contribution is positive
// semidefinite, so the accumulated matrix never decreases in the Loewner
// order.
func Accumulate(cum Matrix, v *vignette.Vignette, theta vignette.Features, p Params) Matrix {
	return cum.Add(Contribution(v, theta, p))
}
