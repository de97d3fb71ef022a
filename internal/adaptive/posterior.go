package adaptive

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Posterior computes Laplace-approximated posteriors over the preference
// vector: Newton-Raphson finds the MAP point of prior plus all observations,
// and the inverse Hessian there is the covariance. Updates replay the full
// observation log from the prior, so identical logs always produce identical
// estimates.
type Posterior struct {
	params Params
	logger *slog.Logger
}

// NewPosterior creates a Posterior with validated params.
func NewPosterior(params Params, logger *slog.Logger) *Posterior {
	return &Posterior{params: params, logger: logger}
}

// Prior returns the configured Gaussian prior as an Estimate.
func (p *Posterior) Prior() Estimate {
	return Estimate{
		Mean:       p.params.PriorMean,
		Covariance: Identity(p.params.PriorVariance),
	}
}

// UpdateResult carries the new estimate plus convergence diagnostics.
type UpdateResult struct {
	Estimate    Estimate
	Iterations  int
	Converged   bool
	StepNorm    float64
	Regularized bool
}

// Update returns the posterior given every observation recorded so far.
// Non-convergence within the iteration cap is not an error: the best iterate
// found is returned and a warning logged. Numerical trouble (a Hessian that
// will not factorize) is absorbed by diagonal regularization; if even that
// fails the last stable values are kept.
func (p *Posterior) Update(obs []Observation) UpdateResult {
	if len(obs) == 0 {
		return UpdateResult{Estimate: p.Prior(), Converged: true}
	}

	theta := p.params.PriorMean
	best := theta
	bestNLP := p.negLogPosterior(theta, obs)

	var (
		iterations  int
		converged   bool
		regularized bool
		stepNorm    float64
	)
	for i := 0; i < p.params.MaxNewtonIterations; i++ {
		iterations = i + 1
		grad, hess := p.gradHess(theta, obs)
		step, ok, reged := solveSPD(hess, grad, p.params.CovarianceRegularization)
		regularized = regularized || reged
		if !ok {
			p.logger.Warn("newton step unsolvable, keeping best iterate",
				"iteration", iterations)
			break
		}
		for d := range theta {
			theta[d] -= step[d]
		}
		stepNorm = floats.Norm(step[:], 2)
		if nlp := p.negLogPosterior(theta, obs); nlp < bestNLP {
			best, bestNLP = theta, nlp
		}
		if stepNorm < p.params.ConvergenceTolerance {
			converged = true
			break
		}
	}
	if !converged {
		p.logger.Warn("newton did not converge",
			"iterations", iterations,
			"step_norm", stepNorm,
			"observations", len(obs))
	}

	// Laplace covariance: inverse Hessian at the reported mean.
	_, hess := p.gradHess(best, obs)
	cov, ok, reged := invertSPD(hess, p.params.CovarianceRegularization)
	regularized = regularized || reged
	if !ok {
		p.logger.Warn("hessian inversion failed, keeping prior covariance",
			"observations", len(obs))
		cov = Identity(p.params.PriorVariance)
	}

	return UpdateResult{
		Estimate:    Estimate{Mean: best, Covariance: cov},
		Iterations:  iterations,
		Converged:   converged,
		StepNorm:    stepNorm,
		Regularized: regularized,
	}
}

// negLogPosterior is the Newton objective: negative log-likelihood of all
// observations plus the Gaussian prior penalty.
func (p *Posterior) negLogPosterior(theta vignette.Features, obs []Observation) float64 {
	var nlp float64
	for _, o := range obs {
		z := p.params.Temperature * theta.Dot(o.Delta)
		nlp -= logSigmoid(z)
	}
	lambda := 1 / p.params.PriorVariance
	d := theta.Sub(p.params.PriorMean)
	nlp += 0.5 * lambda * d.Dot(d)
	return nlp
}

// gradHess evaluates the gradient and Hessian of the negative log-posterior.
// Both are closed-form under the logit model, and the Hessian is positive
// definite because the prior precision sits on its diagonal.
func (p *Posterior) gradHess(theta vignette.Features, obs []Observation) (vignette.Features, Matrix) {
	t := p.params.Temperature
	var grad vignette.Features
	var hess Matrix
	for _, o := range obs {
		prob := deltaProbability(theta, o.Delta, t)
		gw := -t * (1 - prob)
		hw := t * t * prob * (1 - prob)
		for i := 0; i < Dimensions; i++ {
			grad[i] += gw * o.Delta[i]
			for j := 0; j < Dimensions; j++ {
				hess[i][j] += hw * o.Delta[i] * o.Delta[j]
			}
		}
	}
	lambda := 1 / p.params.PriorVariance
	for i := 0; i < Dimensions; i++ {
		grad[i] += lambda * (theta[i] - p.params.PriorMean[i])
		hess[i][i] += lambda
	}
	return grad, hess
}

// regAttempts lists the diagonal loadings tried when a factorization fails:
// none, then the configured regularization escalating two decades.
func regAttempts(reg float64) []float64 {
	if reg <= 0 {
		return []float64{0}
	}
	return []float64{0, reg, reg * 10, reg * 100}
}

// solveSPD solves h*step = g by Cholesky, retrying with growing diagonal
// regularization. Reports whether any regularization was needed.
func solveSPD(h Matrix, g vignette.Features, reg float64) (step vignette.Features, ok bool, regularized bool) {
	gv := mat.NewVecDense(Dimensions, append([]float64(nil), g[:]...))
	for attempt, eps := range regAttempts(reg) {
		var chol mat.Cholesky
		if !chol.Factorize(h.AddDiagonal(eps).Sym()) {
			continue
		}
		var sv mat.VecDense
		if err := chol.SolveVecTo(&sv, gv); err != nil {
			continue
		}
		for i := 0; i < Dimensions; i++ {
			step[i] = sv.AtVec(i)
		}
		return step, true, attempt > 0
	}
	return vignette.Features{}, false, true
}

// invertSPD inverts h by Cholesky with the same retry ladder as solveSPD,
// symmetrizing the value-form result.
func invertSPD(h Matrix, reg float64) (inv Matrix, ok bool, regularized bool) {
	for attempt, eps := range regAttempts(reg) {
		var chol mat.Cholesky
		if !chol.Factorize(h.AddDiagonal(eps).Sym()) {
			continue
		}
		var s mat.SymDense
		if err := chol.InverseTo(&s); err != nil {
			continue
		}
		return FromSym(&s), true, attempt > 0
	}
	return Matrix{}, false, true
}
