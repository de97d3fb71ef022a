package vignette

// FeaturesDominate returns true if a dominates b: weakly greater or equal on
// every dimension and strictly greater on at least one. All dimensions are
// oriented higher-is-better by the encoding table, so no per-dimension
// direction handling is needed here.
func FeaturesDominate(a, b Features) bool {
	for i := range a {
		if a[i] < b[i] {
			return false
		}
	}
	for i := range a {
		if a[i] > b[i] {
			return true
		}
	}
	// Identical profiles do not dominate each other.
	return false
}

// HasPairwiseDominance reports whether either profile dominates the other.
// A pair in a dominance relation presents no trade-off and is useless for
// preference elicitation.
func HasPairwiseDominance(a, b Features) bool {
	return FeaturesDominate(a, b) || FeaturesDominate(b, a)
}

// FilterDominated drops vignettes whose own option pair is degenerate,
// preserving input order. O(n) since each vignette is screened against its
// own pair only.
func FilterDominated(vs []*Vignette) []*Vignette {
	kept := make([]*Vignette, 0, len(vs))
	for _, v := range vs {
		if v.Degenerate() {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}
