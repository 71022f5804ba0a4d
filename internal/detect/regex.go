package detect

import (
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// regexDetector counts regular-expression matches as a rate per N words.
// Matches are counted once per non-overlapping left-to-right scan, which
// is the semantics of FindAllStringIndex.
type regexDetector struct {
	def      model.PatternDefinition
	compiled []*regexp.Regexp
}

func newRegexDetector(def model.PatternDefinition) (*regexDetector, error) {
	compiled := make([]*regexp.Regexp, 0, len(def.Params.Patterns))
	for _, expr := range def.Params.Patterns {
		// Short expressions are treated as literals: patterns like "—" or
		// "!!" are punctuation probes, not regex syntax.
		if len([]rune(expr)) <= 3 {
			expr = regexp.QuoteMeta(expr)
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, eris.Wrapf(err, "detect: pattern %q: compile regex %q", def.ID, expr)
		}
		compiled = append(compiled, re)
	}
	return &regexDetector{def: def, compiled: compiled}, nil
}

func (d *regexDetector) Compute(doc *Document) (float64, string, error) {
	total := 0
	for _, re := range d.compiled {
		total += len(re.FindAllStringIndex(doc.Text, -1))
	}

	perN := perNWords(d.def)
	raw := rateOf(total, doc.WordCount, perN)
	return raw, fmt.Sprintf("%.1f per %.0f words (%d matches)", raw, perN, total), nil
}
