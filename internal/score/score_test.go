package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/detect"
	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestDoc(t *testing.T, text string) *detect.Document {
	t.Helper()
	return detect.NewDocument(text)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name           string
		raw, low, high float64
		want           float64
	}{
		{"below low", 1.0, 2, 12, 0},
		{"at low", 2.0, 2, 12, 0},
		{"midpoint", 7.0, 2, 12, 0.5},
		{"at high", 12.0, 2, 12, 1},
		{"above high", 50.0, 2, 12, 1},
		{"step below", 4.9, 5, 5, 0},
		{"step at", 5.0, 5, 5, 1},
		{"step above", 5.1, 5, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.raw, tt.low, tt.high), 1e-9)
		})
	}
}

func TestLabelFor(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, model.LabelLikelyHuman, th.LabelFor(0))
	assert.Equal(t, model.LabelLikelyHuman, th.LabelFor(14))
	assert.Equal(t, model.LabelUncertain, th.LabelFor(15))
	assert.Equal(t, model.LabelUncertain, th.LabelFor(29))
	assert.Equal(t, model.LabelLikelyAI, th.LabelFor(30))
	assert.Equal(t, model.LabelLikelyAI, th.LabelFor(100))
}

func result(cat model.Category, normalized, weight float64) model.PatternResult {
	return model.PatternResult{
		PatternID: string(cat) + "_p", Category: cat,
		Normalized: normalized, Weight: weight, Version: 1,
	}
}

// Two categories, one scoring 0.5 and one 0.0: the index is their mean, 25.
func TestAggregate_MeanOfFiringCategories(t *testing.T) {
	agg := Aggregate([]model.PatternResult{
		result(model.CategoryPunctuation, 0.5, 1),
		result(model.CategoryPhrases, 0.0, 1),
	}, nil, DefaultThresholds())

	assert.Equal(t, 25, agg.Index)
	assert.Equal(t, model.LabelUncertain, agg.Label)
	assert.InDelta(t, 0.5, agg.CategoryScores[model.CategoryPunctuation], 1e-9)
	assert.InDelta(t, 0.0, agg.CategoryScores[model.CategoryPhrases], 1e-9)
}

func TestAggregate_AbsentCategoryExcluded(t *testing.T) {
	// Only one category fired; the others do not drag the index down.
	agg := Aggregate([]model.PatternResult{
		result(model.CategoryStructure, 0.8, 1),
	}, nil, DefaultThresholds())

	assert.Equal(t, 80, agg.Index)
	assert.Equal(t, model.LabelLikelyAI, agg.Label)
	assert.Len(t, agg.CategoryScores, 1)
}

func TestAggregate_WithinCategoryWeighting(t *testing.T) {
	agg := Aggregate([]model.PatternResult{
		{PatternID: "a", Category: model.CategoryPhrases, Normalized: 1.0, Weight: 3},
		{PatternID: "b", Category: model.CategoryPhrases, Normalized: 0.0, Weight: 1},
	}, nil, DefaultThresholds())

	assert.InDelta(t, 0.75, agg.CategoryScores[model.CategoryPhrases], 1e-9)
	assert.Equal(t, 75, agg.Index)
}

func TestAggregate_CategoryWeights(t *testing.T) {
	weights := pattern.Weights{
		model.CategoryPhrases: 3,
		model.CategoryEmoji:   1,
	}
	agg := Aggregate([]model.PatternResult{
		result(model.CategoryPhrases, 1.0, 1),
		result(model.CategoryEmoji, 0.0, 1),
	}, weights, DefaultThresholds())

	assert.Equal(t, 75, agg.Index)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil, nil, DefaultThresholds())
	assert.Equal(t, 0, agg.Index)
	assert.Equal(t, model.LabelLikelyHuman, agg.Label)
	assert.Empty(t, agg.CategoryScores)
}

func TestCompareProfile(t *testing.T) {
	results := []model.PatternResult{
		{PatternID: "a", Normalized: 0.7},
		{PatternID: "b", Normalized: 0.2},
	}
	profile := map[string]float64{
		"a": 0.8,
		"b": 0.2,
		"c": 0.5, // unknown to this scan, skipped
	}

	out := CompareProfile(results, profile)
	assert.InDelta(t, 0.1, out["a"], 1e-9)
	assert.InDelta(t, 0.0, out["b"], 1e-9)
	assert.NotContains(t, out, "c")
	assert.InDelta(t, 0.95, out["similarity"], 1e-9)
}

func TestCompareProfile_NoOverlap(t *testing.T) {
	out := CompareProfile(nil, map[string]float64{"a": 0.5})
	assert.InDelta(t, 0.0, out["similarity"], 1e-9)
}

func TestEvaluator_EvaluatesEveryPatternInIDOrder(t *testing.T) {
	snap, err := pattern.NewSnapshot([]model.PatternDefinition{
		{
			ID: "z_last", Name: "z", Version: 1, Category: model.CategoryPhrases, Weight: 1,
			DetectionType: model.DetectFrequency,
			Params:        model.Params{Terms: []string{"delve"}, ThresholdLow: 1, ThresholdHigh: 10},
		},
		{
			ID: "a_first", Name: "a", Version: 3, Category: model.CategoryPunctuation, Weight: 1,
			DetectionType: model.DetectRegex,
			Params:        model.Params{Patterns: []string{"—"}, ThresholdLow: 0, ThresholdHigh: 5},
		},
	})
	require.NoError(t, err)

	eval, err := NewEvaluator(snap)
	require.NoError(t, err)

	doc := newTestDoc(t, "We delve deep — very deep — into nothing much at all here today.")
	results := eval.Evaluate(doc)

	require.Len(t, results, 2)
	assert.Equal(t, "a_first", results[0].PatternID)
	assert.Equal(t, "z_last", results[1].PatternID)
	assert.Equal(t, 3, results[0].Version)
	assert.Positive(t, results[0].Normalized)
}

func TestEvaluator_BadMetricScoresZero(t *testing.T) {
	snap, err := pattern.NewSnapshot([]model.PatternDefinition{{
		ID: "broken", Name: "broken", Version: 1, Category: model.CategoryStructure, Weight: 1,
		DetectionType: model.DetectStructural,
		Params:        model.Params{Metric: "nonexistent_metric", ThresholdHigh: 1},
	}})
	require.NoError(t, err)

	eval, err := NewEvaluator(snap)
	require.NoError(t, err)

	results := eval.Evaluate(newTestDoc(t, "Some ordinary text with several words."))
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Normalized)
	assert.Equal(t, "detection error", results[0].Detail)
}

func TestEvaluator_BadRegexFailsConstruction(t *testing.T) {
	// NewSnapshot validates schema, not regex compilation; the evaluator
	// is where an uncompilable expression surfaces.
	snap, err := pattern.NewSnapshot([]model.PatternDefinition{{
		ID: "bad_re", Name: "bad", Version: 1, Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectRegex,
		Params:        model.Params{Patterns: []string{"([unclosed"}, ThresholdHigh: 1},
	}})
	require.NoError(t, err)

	_, err = NewEvaluator(snap)
	require.Error(t, err)
}
