package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carteakey/aidar/internal/model"
)

func freqDef(terms []string, mode string) model.PatternDefinition {
	return model.PatternDefinition{
		ID: "freq", Name: "freq", Version: 1,
		Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectFrequency,
		Params: model.Params{
			Terms: terms, MatchMode: mode,
			PerNWords: 1000, ThresholdLow: 1, ThresholdHigh: 10,
		},
	}
}

// padTo appends filler so the document has exactly n words.
func padTo(text string, n int) string {
	have := len(strings.Fields(text))
	return text + strings.Repeat(" filler", n-have)
}

func TestFrequency_ExactRate(t *testing.T) {
	d, err := New(freqDef([]string{"delve"}, "exact"))
	require.NoError(t, err)

	doc := NewDocument(padTo("We delve here. They delve there. Everyone delves.", 100))
	raw, detail, err := d.Compute(doc)
	require.NoError(t, err)
	// "delves" is a different token under exact matching.
	assert.InDelta(t, 20.0, raw, 0.001)
	assert.Contains(t, detail, "2 matches")
}

func TestFrequency_ContainsMatchesSubstrings(t *testing.T) {
	d, err := New(freqDef([]string{"delve"}, "contains"))
	require.NoError(t, err)

	doc := NewDocument(padTo("We delve here. They delve there. Everyone delves.", 100))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, raw, 0.001)
}

func TestFrequency_MultiWordExactTerm(t *testing.T) {
	d, err := New(freqDef([]string{"at the end"}, "exact"))
	require.NoError(t, err)

	doc := NewDocument(padTo("At the end of the day, we meet at the end.", 50))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, raw, 0.001)
}

func TestFrequency_EmptyDocument(t *testing.T) {
	d, err := New(freqDef([]string{"delve"}, "exact"))
	require.NoError(t, err)

	raw, _, err := d.Compute(NewDocument(""))
	require.NoError(t, err)
	assert.Zero(t, raw)
}

func TestRegex_LiteralPunctuationProbe(t *testing.T) {
	def := model.PatternDefinition{
		ID: "em", Name: "em", Version: 1,
		Category: model.CategoryPunctuation, Weight: 1,
		DetectionType: model.DetectRegex,
		Params: model.Params{
			Patterns: []string{"—"}, PerNWords: 1000,
			ThresholdLow: 2, ThresholdHigh: 12,
		},
	}
	d, err := New(def)
	require.NoError(t, err)

	doc := NewDocument(padTo("One—two—three makes two dashes.", 100))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, raw, 0.001)
}

func TestRegex_ExpressionAndCaseInsensitive(t *testing.T) {
	def := model.PatternDefinition{
		ID: "hedge", Name: "hedge", Version: 1,
		Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectRegex,
		Params: model.Params{
			Patterns:     []string{`\bit'?s worth noting\b`},
			PerNWords:    1000,
			ThresholdLow: 0, ThresholdHigh: 2,
		},
	}
	d, err := New(def)
	require.NoError(t, err)

	doc := NewDocument(padTo("It's worth noting this. Also, its worth noting that.", 100))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, raw, 0.001)
}

func TestRegex_BadExpressionFailsConstruction(t *testing.T) {
	def := model.PatternDefinition{
		ID: "bad", Name: "bad", Version: 1,
		Category: model.CategoryPhrases, Weight: 1,
		DetectionType: model.DetectRegex,
		Params:        model.Params{Patterns: []string{"([unclosed"}, ThresholdHigh: 1},
	}
	_, err := New(def)
	require.Error(t, err)
}

func structDef(metric string) model.PatternDefinition {
	return model.PatternDefinition{
		ID: metric, Name: metric, Version: 1,
		Category: model.CategoryStructure, Weight: 1,
		DetectionType: model.DetectStructural,
		Params:        model.Params{Metric: metric, PerNWords: 1000, ThresholdHigh: 1},
	}
}

func TestStructural_BulletDensity(t *testing.T) {
	d, err := New(structDef("bullet_density"))
	require.NoError(t, err)

	doc := NewDocument("Intro line here\n- first item\n- second item\n1. numbered item\nplain closing line")
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 3.0/5.0, raw, 0.001)
}

func TestStructural_HeaderRatio(t *testing.T) {
	d, err := New(structDef("header_ratio"))
	require.NoError(t, err)

	doc := NewDocument("# Top\nbody text here\n## Section\nmore body text")
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, raw, 0.001)
}

func TestStructural_ParagraphUniformity(t *testing.T) {
	d, err := New(structDef("paragraph_cv_inverted"))
	require.NoError(t, err)

	uniform := NewDocument("one two three four five\n\nsix seven eight nine ten\n\na b c d e")
	raw, _, err := d.Compute(uniform)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, raw, 0.001) // identical lengths, zero variance

	two := NewDocument("one two\n\nthree four")
	raw, detail, err := d.Compute(two)
	require.NoError(t, err)
	assert.Zero(t, raw)
	assert.Contains(t, detail, "too few paragraphs")
}

func TestStructural_EmojiDensity(t *testing.T) {
	d, err := New(structDef("emoji_density"))
	require.NoError(t, err)

	doc := NewDocument(padTo("Launch day 🚀 went great 🎉", 100))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, raw, 0.001)
}

func TestStructural_UnknownMetric(t *testing.T) {
	d, err := New(structDef("teleportation"))
	require.NoError(t, err)

	_, _, err = d.Compute(NewDocument("some text here"))
	var derr *DetectionError
	require.ErrorAs(t, err, &derr)
}

func lingDef(metric string) model.PatternDefinition {
	return model.PatternDefinition{
		ID: metric, Name: metric, Version: 1,
		Category: model.CategoryVocabulary, Weight: 1,
		DetectionType: model.DetectLinguistic,
		Params:        model.Params{Metric: metric, ThresholdHigh: 1},
	}
}

func TestLinguistic_SentenceUniformity(t *testing.T) {
	d, err := New(lingDef("sentence_burstiness"))
	require.NoError(t, err)

	// Four sentences of identical length: zero variance, raw 1.
	doc := NewDocument("Alpha beta gamma delta. Epsilon zeta eta theta. One two three four. Five six seven eight.")
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, raw, 0.001)

	short := NewDocument("Only one sentence here.")
	raw, detail, err := d.Compute(short)
	require.NoError(t, err)
	assert.Zero(t, raw)
	assert.Contains(t, detail, "too few sentences")
}

func TestLinguistic_TypeTokenRatio(t *testing.T) {
	d, err := New(lingDef("type_token_ratio"))
	require.NoError(t, err)

	// Maximally repetitive: every window has TTR 1/50, so raw ≈ 0.98.
	doc := NewDocument(strings.Repeat("same ", 200))
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 0.98, raw, 0.001)

	tiny := NewDocument("too few words")
	raw, _, err = d.Compute(tiny)
	require.NoError(t, err)
	assert.Zero(t, raw)
}

func TestLinguistic_QuestionRate(t *testing.T) {
	d, err := New(lingDef("question_rate"))
	require.NoError(t, err)

	doc := NewDocument("Is this real? It is real. Are you sure? I am sure.")
	raw, _, err := d.Compute(doc)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, raw, 0.001)
}

func TestNew_UnknownDetectionType(t *testing.T) {
	_, err := New(model.PatternDefinition{DetectionType: "psychic"})
	require.Error(t, err)
}
