// Package vignette holds the discrete-choice domain model: binary job
// vignettes, the shared attribute encoding table, dominance screening and
// candidate profile generation.
package vignette

import (
	"fmt"
)

// Option ids are fixed: every vignette presents exactly two alternatives.
const (
	OptionA = "A"
	OptionB = "B"
)

// Option is one of the two job scenarios in a vignette. Attributes hold the
// raw levels shown to the respondent; Features caches their encoding.
type Option struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
	Features   Features          `json:"features"`
}

// Vignette is a binary discrete-choice question. Immutable once created:
// construct through New and treat the fields as read-only.
type Vignette struct {
	ID           string    `json:"vignette_id"`
	ScenarioText string    `json:"scenario_text"`
	Options      [2]Option `json:"options"`
}

// UserContext carries respondent background the narrator may use to
// personalize scenario text. The numeric core never reads it.
type UserContext struct {
	Occupation string `json:"occupation,omitempty"`
	Region     string `json:"region,omitempty"`
	Language   string `json:"language,omitempty"`
}

// New builds a vignette from two raw-attribute options, encoding their
// features through the shared table. The two options must encode to distinct
// feature vectors; a pair that encodes identically carries no information.
func New(id, scenarioText string, a, b Option) (*Vignette, error) {
	if id == "" {
		return nil, fmt.Errorf("vignette id is empty")
	}
	if a.ID == "" {
		a.ID = OptionA
	}
	if b.ID == "" {
		b.ID = OptionB
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("vignette %s: duplicate option id %q", id, a.ID)
	}

	fa, err := EncodeAttributes(a.Attributes)
	if err != nil {
		return nil, fmt.Errorf("vignette %s option %s: %w", id, a.ID, err)
	}
	fb, err := EncodeAttributes(b.Attributes)
	if err != nil {
		return nil, fmt.Errorf("vignette %s option %s: %w", id, b.ID, err)
	}
	if fa == fb {
		return nil, fmt.Errorf("vignette %s: options encode to identical features", id)
	}
	a.Features = fa
	b.Features = fb

	return &Vignette{ID: id, ScenarioText: scenarioText, Options: [2]Option{a, b}}, nil
}

// Option returns the option with the given id, or nil.
func (v *Vignette) Option(id string) *Option {
	for i := range v.Options {
		if v.Options[i].ID == id {
			return &v.Options[i]
		}
	}
	return nil
}

// Delta returns the feature difference between the two options (first minus
// second). The likelihood and FIM both work off this difference.
func (v *Vignette) Delta() Features {
	return v.Options[0].Features.Sub(v.Options[1].Features)
}

// Degenerate reports whether one option dominates the other, meaning the
// choice expresses no trade-off. Degenerate vignettes are rejected from
// libraries and skipped by the optimizer.
func (v *Vignette) Degenerate() bool {
	return HasPairwiseDominance(v.Options[0].Features, v.Options[1].Features)
}
