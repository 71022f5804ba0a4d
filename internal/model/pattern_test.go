package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDef() PatternDefinition {
	return PatternDefinition{
		ID: "delve_overuse", Name: "Delve overuse", Version: 1,
		Category: CategoryPhrases, Weight: 1.0,
		DetectionType: DetectFrequency, Severity: SeverityHigh,
		Params: Params{Terms: []string{"delve"}, ThresholdLow: 1, ThresholdHigh: 5},
	}
}

func TestPatternDefinition_Validate(t *testing.T) {
	def := validDef()
	require.NoError(t, def.Validate())
}

func TestPatternDefinition_ValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PatternDefinition)
		message string
	}{
		{"missing id", func(d *PatternDefinition) { d.ID = " " }, "id is required"},
		{"missing name", func(d *PatternDefinition) { d.Name = "" }, "name is required"},
		{"zero version", func(d *PatternDefinition) { d.Version = 0 }, "version must be >= 1"},
		{"negative weight", func(d *PatternDefinition) { d.Weight = -0.1 }, "weight must be in [0,1]"},
		{"overweight", func(d *PatternDefinition) { d.Weight = 1.5 }, "weight must be in [0,1]"},
		{"bad category", func(d *PatternDefinition) { d.Category = "sarcasm" }, "invalid category"},
		{"bad type", func(d *PatternDefinition) { d.DetectionType = "psychic" }, "invalid detection_type"},
		{"bad severity", func(d *PatternDefinition) { d.Severity = "critical" }, "invalid severity"},
		{"inverted thresholds", func(d *PatternDefinition) {
			d.Params.ThresholdLow = 5
			d.Params.ThresholdHigh = 2
		}, "threshold_high"},
		{"negative low", func(d *PatternDefinition) { d.Params.ThresholdLow = -1 }, "threshold_low"},
		{"frequency without terms", func(d *PatternDefinition) { d.Params.Terms = nil }, "requires params.terms"},
		{"bad match mode", func(d *PatternDefinition) { d.Params.MatchMode = "fuzzy" }, "invalid match_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDef()
			tt.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestPatternDefinition_ValidatePerType(t *testing.T) {
	def := validDef()
	def.DetectionType = DetectRegex
	def.Params.Terms = nil
	require.Error(t, def.Validate()) // regex without patterns

	def.Params.Patterns = []string{"—"}
	require.NoError(t, def.Validate())

	def.DetectionType = DetectStructural
	require.Error(t, def.Validate()) // structural without metric

	def.Params.Metric = "bullet_density"
	require.NoError(t, def.Validate())
}

func TestPatternDefinition_EqualThresholdsAllowed(t *testing.T) {
	def := validDef()
	def.Params.ThresholdLow = 5
	def.Params.ThresholdHigh = 5
	require.NoError(t, def.Validate())
}
