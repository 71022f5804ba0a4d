package pattern

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// Snapshot is an immutable, indexed view of a loaded pattern set. It is
// constructed once per process run (or per explicit reload) and passed
// into detectors, the scorer, and staleness checks; nothing mutates it
// after construction.
type Snapshot struct {
	byID    map[string]model.PatternDefinition
	ordered []model.PatternDefinition // id ascending
}

func newSnapshot(defs []model.PatternDefinition) (*Snapshot, error) {
	byID := make(map[string]model.PatternDefinition, len(defs))
	for _, d := range defs {
		if _, dup := byID[d.ID]; dup {
			return nil, &ConfigError{Err: eris.Errorf("duplicate pattern id %q", d.ID)}
		}
		byID[d.ID] = d
	}

	ordered := make([]model.PatternDefinition, len(defs))
	copy(ordered, defs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Snapshot{byID: byID, ordered: ordered}, nil
}

// NewSnapshot builds a Snapshot from already-validated definitions.
// Primarily useful for tests and embedded pattern sets.
func NewSnapshot(defs []model.PatternDefinition) (*Snapshot, error) {
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}
	return newSnapshot(defs)
}

// Lookup returns the definition for id.
func (s *Snapshot) Lookup(id string) (model.PatternDefinition, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// All returns every definition in id-ascending order. When categories are
// given, only matching definitions are returned, same ordering.
func (s *Snapshot) All(categories ...model.Category) []model.PatternDefinition {
	if len(categories) == 0 {
		out := make([]model.PatternDefinition, len(s.ordered))
		copy(out, s.ordered)
		return out
	}

	want := make(map[model.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	var out []model.PatternDefinition
	for _, d := range s.ordered {
		if want[d.Category] {
			out = append(out, d)
		}
	}
	return out
}

// Versions returns the id → version mapping the staleness predicate runs
// against.
func (s *Snapshot) Versions() map[string]int {
	v := make(map[string]int, len(s.ordered))
	for _, d := range s.ordered {
		v[d.ID] = d.Version
	}
	return v
}

// Categories returns the distinct categories present, in stable order.
func (s *Snapshot) Categories() []model.Category {
	present := make(map[model.Category]bool)
	for _, d := range s.ordered {
		present[d.Category] = true
	}
	var out []model.Category
	for _, c := range model.Categories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of loaded patterns.
func (s *Snapshot) Len() int { return len(s.ordered) }
