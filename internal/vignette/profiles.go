package vignette

import (
	"fmt"
	"log/slog"
)

// Contrast is one high/low target pair in encoded feature space. A variant of
// strength {1, 0} pits the best level of one dimension against the worst of
// another; weaker variants probe finer trade-offs.
type Contrast struct {
	High float64
	Low  float64
}

// DefaultContrasts covers the three distinct strengths expressible on the
// three-level attribute grid.
var DefaultContrasts = []Contrast{
	{High: 1, Low: 0},
	{High: 1, Low: 0.5},
	{High: 0.5, Low: 0},
}

// Generator produces adaptive candidate vignettes covering the design space:
// one trade-off pair per unordered dimension pair per contrast variant, all
// other attributes neutral. Pairs are non-dominated by construction since
// each option wins one dimension and loses the other.
type Generator struct {
	contrasts []Contrast
	logger    *slog.Logger
}

// NewGenerator creates a Generator. Passing variants <= 0 or beyond the grid
// uses all of DefaultContrasts; otherwise the first `variants` entries.
func NewGenerator(variants int, logger *slog.Logger) *Generator {
	contrasts := DefaultContrasts
	if variants > 0 && variants < len(DefaultContrasts) {
		contrasts = DefaultContrasts[:variants]
	}
	return &Generator{contrasts: contrasts, logger: logger}
}

// GenerateCandidates returns the full candidate set for the configured
// design space, already screened for dominance. Ids are deterministic so a
// regenerated pool matches a persisted session's history.
func (g *Generator) GenerateCandidates() ([]*Vignette, error) {
	var out []*Vignette
	for i := 0; i < Dimensions; i++ {
		for j := i + 1; j < Dimensions; j++ {
			for k, c := range g.contrasts {
				v, err := g.tradeOff(i, j, k, c)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		}
	}
	kept := FilterDominated(out)
	if g.logger != nil {
		g.logger.Debug("generated candidate pool",
			"candidates", len(out),
			"kept", len(kept),
			"contrasts", len(g.contrasts))
	}
	return kept, nil
}

// tradeOff builds the vignette pitting dimension i against dimension j at the
// given contrast: option A is high on i and low on j, option B mirrored.
func (g *Generator) tradeOff(i, j, variant int, c Contrast) (*Vignette, error) {
	attrsA, err := profileAttributes(i, c.High, j, c.Low)
	if err != nil {
		return nil, err
	}
	attrsB, err := profileAttributes(i, c.Low, j, c.High)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("gen_%s_%s_%02d", DimensionNames[i], DimensionNames[j], variant+1)
	scenario := fmt.Sprintf("Two roles that trade %s against %s.", DimensionNames[i], DimensionNames[j])
	a := Option{
		ID:         OptionA,
		Text:       fmt.Sprintf("A role stronger on %s, weaker on %s.", DimensionNames[i], DimensionNames[j]),
		Attributes: attrsA,
	}
	b := Option{
		ID:         OptionB,
		Text:       fmt.Sprintf("A role stronger on %s, weaker on %s.", DimensionNames[j], DimensionNames[i]),
		Attributes: attrsB,
	}
	return New(id, scenario, a, b)
}

// profileAttributes builds a raw attribute map hitting the target scores on
// two dimensions and neutral everywhere else. Dimensions fed by several
// attributes set all of their sources to the target level.
func profileAttributes(dimHigh int, high float64, dimLow int, low float64) (map[string]string, error) {
	attrs := make(map[string]string, len(attributeTable))
	for _, name := range AttributeNames() {
		target := neutralScore
		switch attributeTable[name].dim {
		case dimHigh:
			target = high
		case dimLow:
			target = low
		}
		level, err := LevelFor(name, target)
		if err != nil {
			return nil, err
		}
		attrs[name] = level
	}
	return attrs, nil
}
