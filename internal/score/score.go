// Package score normalizes raw detector signals into comparable [0,1]
// scores and aggregates them into the final stylistic index and label.
package score

import (
	"math"
	"sort"

	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
)

// Thresholds are the label boundaries on the 0-100 index. They are
// configuration, not constants; these defaults are the documented ones.
type Thresholds struct {
	LikelyHuman int // index below this → LIKELY_HUMAN
	LikelyAI    int // index at or above this → LIKELY_AI
}

// DefaultThresholds returns the default label boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{LikelyHuman: 15, LikelyAI: 30}
}

// LabelFor maps an index to its label.
func (t Thresholds) LabelFor(index int) model.Label {
	switch {
	case index < t.LikelyHuman:
		return model.LabelLikelyHuman
	case index < t.LikelyAI:
		return model.LabelUncertain
	default:
		return model.LabelLikelyAI
	}
}

// Normalize maps a raw detector value onto [0,1] against a threshold band:
// 0 at or below low, 1 at or above high, linear in between. Equal
// thresholds degenerate to a step function at the shared value.
func Normalize(raw, low, high float64) float64 {
	if high <= low {
		if raw >= high {
			return 1
		}
		return 0
	}
	if raw <= low {
		return 0
	}
	if raw >= high {
		return 1
	}
	return (raw - low) / (high - low)
}

// Aggregation is the derived summary of one evaluation.
type Aggregation struct {
	CategoryScores map[model.Category]float64
	Index          int
	Label          model.Label
}

// Aggregate computes per-category weighted means and the final index.
//
// Within a category: sum(score*weight)/sum(weight) over the patterns that
// produced a score. Across categories: weighted mean of the category
// scores over the categories that fired; absent categories are excluded,
// not zeroed. A nil weights map means equal category weighting.
func Aggregate(results []model.PatternResult, weights pattern.Weights, th Thresholds) Aggregation {
	sums := make(map[model.Category]float64)
	weightTotals := make(map[model.Category]float64)
	for _, r := range results {
		sums[r.Category] += r.Normalized * r.Weight
		weightTotals[r.Category] += r.Weight
	}

	scores := make(map[model.Category]float64, len(sums))
	for cat, wt := range weightTotals {
		if wt == 0 {
			scores[cat] = 0
			continue
		}
		scores[cat] = sums[cat] / wt
	}

	// Iterate categories in stable order so the result is independent of
	// map ordering (and therefore of pattern iteration order).
	var cats []model.Category
	for cat := range scores {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var weighted, totalWeight float64
	for _, cat := range cats {
		w := 1.0
		if weights != nil {
			w = weights[cat]
		}
		weighted += scores[cat] * w
		totalWeight += w
	}

	index := 0
	if totalWeight > 0 {
		index = int(math.Round(100 * weighted / totalWeight))
	}
	if index < 0 {
		index = 0
	}
	if index > 100 {
		index = 100
	}

	return Aggregation{
		CategoryScores: scores,
		Index:          index,
		Label:          th.LabelFor(index),
	}
}

// CompareProfile measures how closely pattern results track a model
// family's known normalized-score profile. The similarity key is
// 1 − mean absolute deviation over the patterns both sides know about.
func CompareProfile(results []model.PatternResult, profile map[string]float64) map[string]float64 {
	byID := make(map[string]float64, len(results))
	for _, r := range results {
		byID[r.PatternID] = r.Normalized
	}

	out := make(map[string]float64)
	var total float64
	var n int
	for id, expected := range profile {
		actual, ok := byID[id]
		if !ok {
			continue
		}
		dev := math.Abs(actual - expected)
		out[id] = math.Round(dev*1000) / 1000
		total += dev
		n++
	}

	similarity := 0.0
	if n > 0 {
		similarity = 1 - total/float64(n)
	}
	out["similarity"] = math.Round(similarity*1000) / 1000
	return out
}
