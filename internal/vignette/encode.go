package vignette

import (
	"fmt"
	"math"
	"sort"
)

// Dimensions is the size of the latent preference space.
const Dimensions = 7

// EncodingVersion identifies the attribute table below. Bump it whenever the
// table changes so persisted sessions can be told apart from live ones.
const EncodingVersion = 1

// Features is a point in the 7-dimensional preference feature space.
// Every dimension is oriented so that a higher value is objectively more
// attractive (inverted attributes are flipped at encoding time).
type Features [Dimensions]float64

// DimensionNames labels the feature dimensions, in index order.
var DimensionNames = [Dimensions]string{
	"compensation",
	"flexibility",
	"security",
	"growth",
	"variety",
	"culture",
	"comfort",
}

// attributeSpec ties one job attribute to its feature dimension and ordered
// raw levels. Levels encode to an even grid on [0,1]; inverted attributes
// reverse the grid so that higher always means better.
type attributeSpec struct {
	dim      int
	inverted bool
	levels   []string
}

// attributeTable is the single shared encoding table. Profile generation,
// dominance screening, likelihood evaluation and FIM computation all go
// through EncodeAttributes; nothing else may interpret raw levels.
//
// Ten attributes map onto seven dimensions: flexibility/remote_work,
// social_interaction/company_values and physical_demand/commute_time share a
// dimension (the dimension takes the mean of its sources).
var attributeTable = map[string]attributeSpec{
	"wage":               {dim: 0, levels: []string{"below_market", "market_rate", "above_market"}},
	"flexibility":        {dim: 1, levels: []string{"fixed_schedule", "some_flexibility", "full_flexibility"}},
	"remote_work":        {dim: 1, levels: []string{"on_site", "hybrid", "fully_remote"}},
	"job_security":       {dim: 2, levels: []string{"temporary_contract", "fixed_term", "permanent"}},
	"career_growth":      {dim: 3, levels: []string{"limited", "steady", "fast_track"}},
	"task_variety":       {dim: 4, levels: []string{"repetitive", "mixed", "highly_varied"}},
	"social_interaction": {dim: 5, levels: []string{"independent", "small_team", "highly_collaborative"}},
	"company_values":     {dim: 5, levels: []string{"profit_driven", "balanced", "mission_driven"}},
	"physical_demand":    {dim: 6, inverted: true, levels: []string{"low", "moderate", "high"}},
	"commute_time":       {dim: 6, inverted: true, levels: []string{"short", "moderate", "long"}},
}

// neutralScore is the contribution of an attribute absent from an option.
const neutralScore = 0.5

// EncodeAttributes maps raw attribute levels to the feature space.
// Unknown attribute names and unknown levels are errors; a missing attribute
// contributes the neutral midpoint. The mapping is pure and deterministic.
func EncodeAttributes(attrs map[string]string) (Features, error) {
	for name := range attrs {
		if _, ok := attributeTable[name]; !ok {
			return Features{}, fmt.Errorf("unknown attribute %q", name)
		}
	}

	var sums [Dimensions]float64
	var counts [Dimensions]int
	for _, name := range AttributeNames() {
		spec := attributeTable[name]
		score := neutralScore
		if level, ok := attrs[name]; ok {
			s, err := levelScore(name, spec, level)
			if err != nil {
				return Features{}, err
			}
			score = s
		}
		sums[spec.dim] += score
		counts[spec.dim]++
	}

	var f Features
	for d := 0; d < Dimensions; d++ {
		f[d] = sums[d] / float64(counts[d])
	}
	return f, nil
}

// levelScore encodes one raw level on the attribute's [0,1] grid.
func levelScore(name string, spec attributeSpec, level string) (float64, error) {
	for i, l := range spec.levels {
		if l == level {
			s := float64(i) / float64(len(spec.levels)-1)
			if spec.inverted {
				s = 1 - s
			}
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q for attribute %q", level, name)
}

// LevelFor returns the raw level of an attribute whose encoded score is
// closest to the target. Used by the profile generator to work backwards from
// the feature space.
func LevelFor(name string, target float64) (string, error) {
	spec, ok := attributeTable[name]
	if !ok {
		return "", fmt.Errorf("unknown attribute %q", name)
	}
	best := ""
	bestDist := math.Inf(1)
	for _, level := range spec.levels {
		s, _ := levelScore(name, spec, level)
		if d := math.Abs(s - target); d < bestDist {
			best = level
			bestDist = d
		}
	}
	return best, nil
}

// AttributeNames returns all known attribute names in stable sorted order.
func AttributeNames() []string {
	names := make([]string, 0, len(attributeTable))
	for name := range attributeTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AttributesForDimension returns the attribute names feeding one dimension.
func AttributesForDimension(dim int) []string {
	var names []string
	for _, name := range AttributeNames() {
		if attributeTable[name].dim == dim {
			names = append(names, name)
		}
	}
	return names
}

// Sub returns f minus g, componentwise.
func (f Features) Sub(g Features) Features {
	var d Features
	for i := range f {
		d[i] = f[i] - g[i]
	}
	return d
}

// Dot returns the inner product of f and g.
func (f Features) Dot(g Features) float64 {
	var s float64
	for i := range f {
		s += f[i] * g[i]
	}
	return s
}
