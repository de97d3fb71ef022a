// Package adaptive implements the Bayesian core of the elicitation engine:
// the logit choice likelihood, Laplace-approximated posterior updates, Fisher
// information accounting, D-efficiency candidate selection and the stopping
// rules.
package adaptive

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Dimensions mirrors the feature-space size for local readability.
const Dimensions = vignette.Dimensions

// Matrix is a dense 7x7 matrix in value form. Snapshots and API payloads use
// it directly; linear algebra goes through the gonum conversions below.
type Matrix [Dimensions][Dimensions]float64

// Identity returns scale times the identity matrix.
func Identity(scale float64) Matrix {
	var m Matrix
	for i := 0; i < Dimensions; i++ {
		m[i][i] = scale
	}
	return m
}

// Add returns m plus n.
func (m Matrix) Add(n Matrix) Matrix {
	var out Matrix
	for i := range m {
		for j := range m[i] {
			out[i][j] = m[i][j] + n[i][j]
		}
	}
	return out
}

// AddDiagonal returns m with eps added to every diagonal entry.
func (m Matrix) AddDiagonal(eps float64) Matrix {
	for i := 0; i < Dimensions; i++ {
		m[i][i] += eps
	}
	return m
}

// Trace returns the sum of the diagonal.
func (m Matrix) Trace() float64 {
	diag := make([]float64, Dimensions)
	for i := range diag {
		diag[i] = m[i][i]
	}
	return floats.Sum(diag)
}

// MaxDiagonal returns the largest diagonal entry.
func (m Matrix) MaxDiagonal() float64 {
	diag := make([]float64, Dimensions)
	for i := range diag {
		diag[i] = m[i][i]
	}
	return floats.Max(diag)
}

// Det returns the determinant.
func (m Matrix) Det() float64 {
	return mat.Det(m.Dense())
}

// Dense converts to a gonum dense matrix.
func (m Matrix) Dense() *mat.Dense {
	data := make([]float64, 0, Dimensions*Dimensions)
	for i := range m {
		data = append(data, m[i][:]...)
	}
	return mat.NewDense(Dimensions, Dimensions, data)
}

// Sym converts to a gonum symmetric matrix using the upper triangle.
func (m Matrix) Sym() *mat.SymDense {
	s := mat.NewSymDense(Dimensions, nil)
	for i := 0; i < Dimensions; i++ {
		for j := i; j < Dimensions; j++ {
			s.SetSym(i, j, m[i][j])
		}
	}
	return s
}

// FromSym converts a gonum symmetric matrix back to value form.
func FromSym(s *mat.SymDense) Matrix {
	var m Matrix
	for i := 0; i < Dimensions; i++ {
		for j := 0; j < Dimensions; j++ {
			m[i][j] = s.At(i, j)
		}
	}
	return m
}

// Estimate is the Gaussian posterior over the latent preference vector.
// Covariance is symmetric positive semidefinite.
type Estimate struct {
	Mean       vignette.Features `json:"mean"`
	Covariance Matrix            `json:"covariance"`
}

// Observation is one recorded choice projected into feature space: the
// feature difference of the chosen option minus the rejected one.
type Observation struct {
	VignetteID string
	ChosenID   string
	Delta      vignette.Features
}

// NewObservation resolves a recorded choice against its vignette.
func NewObservation(v *vignette.Vignette, chosenID string) (Observation, error) {
	chosen := v.Option(chosenID)
	if chosen == nil {
		return Observation{}, fmt.Errorf("vignette %s has no option %q", v.ID, chosenID)
	}
	var rejected *vignette.Option
	for i := range v.Options {
		if v.Options[i].ID != chosenID {
			rejected = &v.Options[i]
		}
	}
	return Observation{
		VignetteID: v.ID,
		ChosenID:   chosenID,
		Delta:      chosen.Features.Sub(rejected.Features),
	}, nil
}
