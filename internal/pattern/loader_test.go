package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carteakey/aidar/internal/model"
)

const validPattern = `
id: delve_overuse
name: Delve overuse
version: 2
category: phrases
weight: 1.0
detection_type: frequency
severity: high
params:
  terms: [delve, delving]
  match_mode: exact
  per_n_words: 1000
  threshold_low: 0.5
  threshold_high: 3.0
`

func writePattern(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_ValidDirectory(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "delve.yaml", validPattern)
	writePattern(t, dir, "emdash.yml", `
id: em_dash_rate
name: Em-dash rate
category: punctuation
weight: 0.8
detection_type: regex
params:
  patterns: ["—"]
  threshold_low: 2
  threshold_high: 12
`)
	// Non-YAML files and _-prefixed files are not pattern definitions.
	writePattern(t, dir, "README.md", "notes")
	writePattern(t, dir, "_weights.yaml", "weights:\n  phrases: 2\n")

	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	def, ok := snap.Lookup("delve_overuse")
	require.True(t, ok)
	assert.Equal(t, 2, def.Version)
	assert.Equal(t, model.SeverityHigh, def.Severity)
	assert.Equal(t, []string{"delve", "delving"}, def.Params.Terms)

	// Omitted version and severity take their defaults.
	def, ok = snap.Lookup("em_dash_rate")
	require.True(t, ok)
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, model.SeverityMedium, def.Severity)
}

func TestLoad_WalksSubdirectoriesSkippingModels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "phrases"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	writePattern(t, filepath.Join(dir, "phrases"), "delve.yaml", validPattern)
	writePattern(t, filepath.Join(dir, "models"), "chatgpt.yaml", "profile:\n  delve_overuse: 0.7\n")

	snap, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestLoad_InvalidSchemaIsConfigError(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "bad.yaml", `
id: bad
name: Bad
category: nonsense
weight: 1.0
detection_type: frequency
params:
  terms: [x]
  threshold_high: 1
`)

	_, err := Load(dir)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "bad.yaml")
	assert.Contains(t, ce.Error(), "invalid category")
}

func TestLoad_ThresholdOrderEnforced(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "inverted.yaml", `
id: inverted
name: Inverted
category: phrases
weight: 1.0
detection_type: frequency
params:
  terms: [x]
  threshold_low: 5
  threshold_high: 2
`)

	_, err := Load(dir)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestLoad_UncompilableRegexIsConfigError(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "badre.yaml", `
id: badre
name: Bad regex
category: phrases
weight: 1.0
detection_type: regex
params:
  patterns: ["([unclosed"]
  threshold_high: 1
`)

	_, err := Load(dir)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestLoad_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "a.yaml", validPattern)
	writePattern(t, dir, "b.yaml", validPattern)

	_, err := Load(dir)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "duplicate pattern id")
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "_weights.yaml", `
weights:
  phrases: 2.0
  emoji: 0.5
`)

	w, err := LoadWeights(dir)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, w[model.CategoryPhrases], 1e-9)
	assert.InDelta(t, 0.5, w[model.CategoryEmoji], 1e-9)
}

func TestLoadWeights_MissingFileMeansEqual(t *testing.T) {
	w, err := LoadWeights(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestLoadWeights_UnknownCategory(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "_weights.yaml", "weights:\n  sarcasm: 1.0\n")

	_, err := LoadWeights(dir)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestLoadModelProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	writePattern(t, filepath.Join(dir, "models"), "chatgpt.yaml", `
profile:
  delve_overuse: 0.7
  em_dash_rate: 0.8
`)

	p, err := LoadModelProfile(dir, "chatgpt")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p["delve_overuse"], 1e-9)

	_, err = LoadModelProfile(dir, "gemini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chatgpt") // lists what is available
}

func TestSnapshot_VersionsAndCategories(t *testing.T) {
	snap, err := NewSnapshot([]model.PatternDefinition{
		{
			ID: "a", Name: "a", Version: 3, Category: model.CategoryPhrases, Weight: 1,
			DetectionType: model.DetectFrequency,
			Params:        model.Params{Terms: []string{"x"}, ThresholdHigh: 1},
		},
		{
			ID: "b", Name: "b", Version: 1, Category: model.CategoryEmoji, Weight: 1,
			DetectionType: model.DetectStructural,
			Params:        model.Params{Metric: "emoji_density", ThresholdHigh: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"a": 3, "b": 1}, snap.Versions())
	assert.Equal(t, []model.Category{model.CategoryEmoji, model.CategoryPhrases}, snap.Categories())
	assert.Len(t, snap.All(model.CategoryEmoji), 1)
}
