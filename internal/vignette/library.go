package vignette

import (
	"encoding/json"
	"fmt"
	"os"
)

// Library holds the session's vignette pools: the fixed beginning sequence,
// the adaptive candidate pool and the fixed ending sequence. Libraries are
// built once at startup and never mutated afterwards except through
// AddAdaptive during assembly.
type Library struct {
	beginning []*Vignette
	adaptive  []*Vignette
	end       []*Vignette
	byID      map[string]*Vignette
}

// libraryFile is the on-disk JSON shape: a manifest of static ids plus the
// full vignette list. Vignettes not named by either manifest form the
// adaptive pool, in file order.
type libraryFile struct {
	StaticBeginning []string       `json:"static_beginning"`
	StaticEnd       []string       `json:"static_end"`
	Vignettes       []vignetteFile `json:"vignettes"`
}

type vignetteFile struct {
	VignetteID   string       `json:"vignette_id"`
	ScenarioText string       `json:"scenario_text"`
	Options      []optionFile `json:"options"`
}

type optionFile struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
}

// LoadLibrary reads and validates a library file. Every validation failure is
// an error: libraries are configuration, and bad configuration is fatal at
// startup rather than discovered mid-session.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", path, err)
	}
	var f libraryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse library %s: %w", path, err)
	}

	vs := make([]*Vignette, 0, len(f.Vignettes))
	for _, vf := range f.Vignettes {
		if len(vf.Options) != 2 {
			return nil, fmt.Errorf("vignette %s: want exactly 2 options, got %d", vf.VignetteID, len(vf.Options))
		}
		a := Option{ID: vf.Options[0].ID, Text: vf.Options[0].Text, Attributes: vf.Options[0].Attributes}
		b := Option{ID: vf.Options[1].ID, Text: vf.Options[1].Text, Attributes: vf.Options[1].Attributes}
		v, err := New(vf.VignetteID, vf.ScenarioText, a, b)
		if err != nil {
			return nil, err
		}
		if v.Degenerate() {
			return nil, fmt.Errorf("vignette %s: one option dominates the other", v.ID)
		}
		vs = append(vs, v)
	}

	return NewLibrary(f.StaticBeginning, f.StaticEnd, vs)
}

// NewLibrary assembles a library from already-constructed vignettes and the
// static manifests. Ids must be unique, manifest ids must resolve, and no id
// may appear in both manifests.
func NewLibrary(beginning, end []string, vs []*Vignette) (*Library, error) {
	lib := &Library{byID: make(map[string]*Vignette, len(vs))}
	for _, v := range vs {
		if _, dup := lib.byID[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vignette id %s", v.ID)
		}
		lib.byID[v.ID] = v
	}

	static := make(map[string]bool, len(beginning)+len(end))
	for _, id := range beginning {
		v, ok := lib.byID[id]
		if !ok {
			return nil, fmt.Errorf("static_beginning id %s not in library", id)
		}
		if static[id] {
			return nil, fmt.Errorf("id %s listed twice in static manifests", id)
		}
		static[id] = true
		lib.beginning = append(lib.beginning, v)
	}
	for _, id := range end {
		v, ok := lib.byID[id]
		if !ok {
			return nil, fmt.Errorf("static_end id %s not in library", id)
		}
		if static[id] {
			return nil, fmt.Errorf("id %s listed twice in static manifests", id)
		}
		static[id] = true
		lib.end = append(lib.end, v)
	}

	for _, v := range vs {
		if !static[v.ID] {
			lib.adaptive = append(lib.adaptive, v)
		}
	}
	return lib, nil
}

// AddAdaptive appends generated candidates to the adaptive pool. Generated
// ids must not collide with anything already in the library.
func (l *Library) AddAdaptive(vs ...*Vignette) error {
	for _, v := range vs {
		if _, dup := l.byID[v.ID]; dup {
			return fmt.Errorf("generated vignette id %s collides with library", v.ID)
		}
		if v.Degenerate() {
			return fmt.Errorf("generated vignette %s: one option dominates the other", v.ID)
		}
		l.byID[v.ID] = v
		l.adaptive = append(l.adaptive, v)
	}
	return nil
}

// Beginning returns the static beginning sequence, in positional order.
func (l *Library) Beginning() []*Vignette { return l.beginning }

// End returns the static ending sequence, in positional order.
func (l *Library) End() []*Vignette { return l.end }

// Adaptive returns the adaptive candidate pool, in insertion order. The
// optimizer depends on this order for its tie-break.
func (l *Library) Adaptive() []*Vignette { return l.adaptive }

// Get returns the vignette with the given id, or nil.
func (l *Library) Get(id string) *Vignette { return l.byID[id] }

// Len returns the total number of vignettes across all pools.
func (l *Library) Len() int { return len(l.byID) }
