package score

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/detect"
	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
)

// Evaluator runs every pattern in a registry snapshot against a document.
// Detectors are constructed once, up front; construction failures are
// configuration errors and fail fast.
type Evaluator struct {
	snapshot  *pattern.Snapshot
	detectors map[string]detect.Detector
}

// NewEvaluator builds detectors for every pattern in the snapshot.
func NewEvaluator(snapshot *pattern.Snapshot) (*Evaluator, error) {
	detectors := make(map[string]detect.Detector, snapshot.Len())
	for _, def := range snapshot.All() {
		d, err := detect.New(def)
		if err != nil {
			return nil, eris.Wrap(err, "score: build detectors")
		}
		detectors[def.ID] = d
	}
	return &Evaluator{snapshot: snapshot, detectors: detectors}, nil
}

// Snapshot returns the registry snapshot this evaluator was built from.
func (e *Evaluator) Snapshot() *pattern.Snapshot { return e.snapshot }

// Evaluate computes a PatternResult for every pattern, in id order. A
// DetectionError is non-fatal: the pattern records score 0 and a warning
// is logged; anything else would let one bad pattern take down a scan.
func (e *Evaluator) Evaluate(doc *detect.Document) []model.PatternResult {
	defs := e.snapshot.All()
	results := make([]model.PatternResult, 0, len(defs))

	for _, def := range defs {
		raw, detail, err := e.detectors[def.ID].Compute(doc)
		if err != nil {
			zap.L().Warn("score: pattern failed, recording zero",
				zap.String("pattern_id", def.ID),
				zap.Error(err),
			)
			raw, detail = 0, "detection error"
		}

		results = append(results, model.PatternResult{
			PatternID:  def.ID,
			Category:   def.Category,
			RawValue:   raw,
			Normalized: Normalize(raw, def.Params.ThresholdLow, def.Params.ThresholdHigh),
			Weight:     def.Weight,
			Version:    def.Version,
			Detail:     detail,
		})
	}
	return results
}
