// Package detect implements the per-pattern raw-signal detectors. Each
// detection type maps document features to a single scalar; normalization
// against thresholds happens in the score package.
package detect

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// defaultPerNWords is the rate denominator when a pattern omits per_n_words.
const defaultPerNWords = 1000

// Detector computes one raw scalar for a document. Implementations never
// fail on ordinary edge cases (empty text, no sentences, zero matches);
// those resolve to a defined scalar, typically 0.
type Detector interface {
	Compute(doc *Document) (raw float64, detail string, err error)
}

// DetectionError marks a pattern whose configuration turned out to be
// unusable at evaluation time (e.g. an unrecognized metric name). The
// pattern scores 0 for that document and a warning is recorded; the scan
// itself continues.
type DetectionError struct {
	PatternID string
	Err       error
}

func (e *DetectionError) Error() string {
	return "pattern " + e.PatternID + ": " + e.Err.Error()
}

func (e *DetectionError) Unwrap() error { return e.Err }

// New builds the detector for a definition. The detection-type set is
// closed; an unknown type is a programming or config error, not a
// dispatch-table miss.
func New(def model.PatternDefinition) (Detector, error) {
	switch def.DetectionType {
	case model.DetectFrequency:
		return newFrequencyDetector(def), nil
	case model.DetectRegex:
		return newRegexDetector(def)
	case model.DetectStructural:
		return &structuralDetector{def: def}, nil
	case model.DetectLinguistic:
		return &linguisticDetector{def: def}, nil
	default:
		return nil, eris.Errorf("detect: no detector for detection_type %q", def.DetectionType)
	}
}

func perNWords(def model.PatternDefinition) float64 {
	if def.Params.PerNWords > 0 {
		return float64(def.Params.PerNWords)
	}
	return defaultPerNWords
}

// rate converts an occurrence count into occurrences per N words.
// A zero word count yields rate 0 rather than an error.
func rateOf(occurrences int, wordCount int, perN float64) float64 {
	if wordCount == 0 {
		return 0
	}
	return float64(occurrences) * perN / float64(wordCount)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation; it needs at least two values.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
