package detect

import (
	"fmt"
	"strings"

	"github.com/carteakey/aidar/internal/model"
)

// frequencyDetector counts occurrences of configured terms and reports
// them as a rate per N words.
type frequencyDetector struct {
	def       model.PatternDefinition
	terms     []string
	matchMode string
}

func newFrequencyDetector(def model.PatternDefinition) *frequencyDetector {
	terms := make([]string, 0, len(def.Params.Terms))
	for _, t := range def.Params.Terms {
		terms = append(terms, strings.ToLower(t))
	}
	mode := def.Params.MatchMode
	if mode == "" {
		mode = "contains"
	}
	return &frequencyDetector{def: def, terms: terms, matchMode: mode}
}

func (d *frequencyDetector) Compute(doc *Document) (float64, string, error) {
	total := 0
	for _, term := range d.terms {
		if d.matchMode == "exact" {
			total += countExact(doc.Words, term)
		} else {
			total += strings.Count(doc.LowerText, term)
		}
	}

	perN := perNWords(d.def)
	raw := rateOf(total, doc.WordCount, perN)
	return raw, fmt.Sprintf("%.2f per %.0f words (%d matches)", raw, perN, total), nil
}

// countExact matches whole tokens only. Multi-word terms are matched as a
// consecutive token sequence.
func countExact(words []string, term string) int {
	parts := strings.Fields(term)
	if len(parts) == 0 {
		return 0
	}
	count := 0
	for i := 0; i+len(parts) <= len(words); i++ {
		match := true
		for j, p := range parts {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}
