package vignette

import (
	"math"
	"testing"
)

func TestEncodeAttributesDeterministic(t *testing.T) {
	attrs := map[string]string{
		"wage":               "above_market",
		"flexibility":        "full_flexibility",
		"remote_work":        "on_site",
		"job_security":       "permanent",
		"career_growth":      "steady",
		"task_variety":       "highly_varied",
		"social_interaction": "small_team",
		"company_values":     "mission_driven",
		"physical_demand":    "low",
		"commute_time":       "long",
	}

	first, err := EncodeAttributes(attrs)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := EncodeAttributes(attrs)
		if err != nil {
			t.Fatalf("encode failed on repeat: %v", err)
		}
		if again != first {
			t.Fatalf("encoding not deterministic: %v vs %v", again, first)
		}
	}
}

func TestEncodeAttributesValues(t *testing.T) {
	attrs := map[string]string{
		"wage":               "above_market",      // dim 0 -> 1.0
		"flexibility":        "full_flexibility",  // dim 1 source
		"remote_work":        "on_site",           // dim 1 source -> mean 0.5
		"job_security":       "temporary_contract",// dim 2 -> 0.0
		"career_growth":      "steady",            // dim 3 -> 0.5
		"task_variety":       "highly_varied",     // dim 4 -> 1.0
		"social_interaction": "independent",       // dim 5 source
		"company_values":     "mission_driven",    // dim 5 source -> mean 0.5
		"physical_demand":    "low",               // dim 6 source, inverted -> 1.0
		"commute_time":       "short",             // dim 6 source, inverted -> mean 1.0
	}
	f, err := EncodeAttributes(attrs)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	want := Features{1.0, 0.5, 0.0, 0.5, 1.0, 0.5, 1.0}
	for i := range want {
		if math.Abs(f[i]-want[i]) > 1e-12 {
			t.Errorf("dim %d (%s): expected %f, got %f", i, DimensionNames[i], want[i], f[i])
		}
	}
}

func TestEncodeAttributesMissingIsNeutral(t *testing.T) {
	f, err := EncodeAttributes(map[string]string{"wage": "above_market"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if f[0] != 1.0 {
		t.Errorf("expected compensation 1.0, got %f", f[0])
	}
	for i := 1; i < Dimensions; i++ {
		if f[i] != 0.5 {
			t.Errorf("dim %d: expected neutral 0.5, got %f", i, f[i])
		}
	}
}

func TestEncodeAttributesErrors(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
	}{
		{"unknown attribute", map[string]string{"salary": "high"}},
		{"unknown level", map[string]string{"wage": "astronomical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeAttributes(tt.attrs); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInvertedAttributesFlip(t *testing.T) {
	low, err := EncodeAttributes(map[string]string{"physical_demand": "low", "commute_time": "short"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	high, err := EncodeAttributes(map[string]string{"physical_demand": "high", "commute_time": "long"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if low[6] != 1.0 {
		t.Errorf("low demand + short commute should encode comfort 1.0, got %f", low[6])
	}
	if high[6] != 0.0 {
		t.Errorf("high demand + long commute should encode comfort 0.0, got %f", high[6])
	}
}

func TestLevelForRoundTrip(t *testing.T) {
	for _, name := range AttributeNames() {
		for _, target := range []float64{0, 0.5, 1} {
			level, err := LevelFor(name, target)
			if err != nil {
				t.Fatalf("LevelFor(%s, %f): %v", name, target, err)
			}
			f, err := EncodeAttributes(map[string]string{name: level})
			if err != nil {
				t.Fatalf("encode %s=%s: %v", name, level, err)
			}
			dim := attributeTable[name].dim
			// The chosen level's own contribution must hit the target; dims
			// with a second source have that source at neutral.
			got := f[dim]*float64(len(AttributesForDimension(dim))) - neutralScore*float64(len(AttributesForDimension(dim))-1)
			if math.Abs(got-target) > 1e-12 {
				t.Errorf("%s target %f: level %s encodes to %f", name, target, level, got)
			}
		}
	}
}

func TestEveryDimensionHasSources(t *testing.T) {
	for d := 0; d < Dimensions; d++ {
		if len(AttributesForDimension(d)) == 0 {
			t.Errorf("dimension %d (%s) has no source attributes", d, DimensionNames[d])
		}
	}
	if len(AttributeNames()) != 10 {
		t.Errorf("expected 10 attributes, got %d", len(AttributeNames()))
	}
}
