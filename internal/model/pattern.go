// Package model defines the core domain types shared across the scanner:
// pattern definitions, scan rows, per-pattern results, and aggregates.
package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Category groups patterns by the kind of stylistic signal they measure.
type Category string

const (
	CategoryPhrases     Category = "phrases"
	CategoryPunctuation Category = "punctuation"
	CategoryStructure   Category = "structure"
	CategoryVocabulary  Category = "vocabulary"
	CategoryEmoji       Category = "emoji"
)

// Categories lists all valid categories in stable order.
var Categories = []Category{
	CategoryEmoji,
	CategoryPhrases,
	CategoryPunctuation,
	CategoryStructure,
	CategoryVocabulary,
}

// DetectionType identifies which detector evaluates a pattern. The set is
// closed: adding a kind means extending the constructor switch in detect.
type DetectionType string

const (
	DetectFrequency  DetectionType = "frequency"
	DetectRegex      DetectionType = "regex"
	DetectStructural DetectionType = "structural"
	DetectLinguistic DetectionType = "linguistic"
)

// Severity is informational only; it never affects scoring.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Params holds detection-type-specific configuration for a pattern.
type Params struct {
	// frequency
	Terms     []string `yaml:"terms,omitempty" json:"terms,omitempty"`
	MatchMode string   `yaml:"match_mode,omitempty" json:"match_mode,omitempty"` // "exact" | "contains"

	// regex
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// structural / linguistic
	Metric     string `yaml:"metric,omitempty" json:"metric,omitempty"`
	WindowSize int    `yaml:"window_size,omitempty" json:"window_size,omitempty"`

	// normalization (all detection types)
	PerNWords     int     `yaml:"per_n_words,omitempty" json:"per_n_words,omitempty"`
	ThresholdLow  float64 `yaml:"threshold_low" json:"threshold_low"`
	ThresholdHigh float64 `yaml:"threshold_high" json:"threshold_high"`
}

// PatternDefinition is one configured detector. Definitions are immutable
// once loaded; a registry reload produces a fresh snapshot.
type PatternDefinition struct {
	ID            string        `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"name"`
	Version       int           `yaml:"version" json:"version"`
	Description   string        `yaml:"description" json:"description"`
	Category      Category      `yaml:"category" json:"category"`
	Weight        float64       `yaml:"weight" json:"weight"`
	DetectionType DetectionType `yaml:"detection_type" json:"detection_type"`
	Severity      Severity      `yaml:"severity" json:"severity"`
	References    []string      `yaml:"references,omitempty" json:"references,omitempty"`
	AddedBy       string        `yaml:"added_by,omitempty" json:"added_by,omitempty"`
	Params        Params        `yaml:"params" json:"params"`
}

// Validate checks a single definition against the schema invariants.
func (p *PatternDefinition) Validate() error {
	var errs []string

	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, "id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}
	if p.Version < 1 {
		errs = append(errs, fmt.Sprintf("version must be >= 1, got %d", p.Version))
	}
	if p.Weight < 0 || p.Weight > 1 {
		errs = append(errs, fmt.Sprintf("weight must be in [0,1], got %g", p.Weight))
	}

	switch p.Category {
	case CategoryPhrases, CategoryPunctuation, CategoryStructure, CategoryVocabulary, CategoryEmoji:
	default:
		errs = append(errs, fmt.Sprintf("invalid category %q", p.Category))
	}

	switch p.DetectionType {
	case DetectFrequency, DetectRegex, DetectStructural, DetectLinguistic:
	default:
		errs = append(errs, fmt.Sprintf("invalid detection_type %q", p.DetectionType))
	}

	switch p.Severity {
	case "", SeverityLow, SeverityMedium, SeverityHigh:
	default:
		errs = append(errs, fmt.Sprintf("invalid severity %q", p.Severity))
	}

	if p.Params.ThresholdLow < 0 {
		errs = append(errs, "threshold_low must be >= 0")
	}
	// Equal thresholds are allowed and degrade normalization to a step function.
	if p.Params.ThresholdHigh < p.Params.ThresholdLow {
		errs = append(errs, fmt.Sprintf(
			"threshold_high (%g) must be >= threshold_low (%g)",
			p.Params.ThresholdHigh, p.Params.ThresholdLow))
	}

	switch p.DetectionType {
	case DetectFrequency:
		if len(p.Params.Terms) == 0 {
			errs = append(errs, "frequency pattern requires params.terms")
		}
		switch p.Params.MatchMode {
		case "", "exact", "contains":
		default:
			errs = append(errs, fmt.Sprintf("invalid match_mode %q", p.Params.MatchMode))
		}
	case DetectRegex:
		if len(p.Params.Patterns) == 0 {
			errs = append(errs, "regex pattern requires params.patterns")
		}
	case DetectStructural, DetectLinguistic:
		if p.Params.Metric == "" {
			errs = append(errs, "structural/linguistic pattern requires params.metric")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("pattern %q: %s", p.ID, strings.Join(errs, "; "))
	}
	return nil
}
