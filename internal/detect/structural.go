package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// structuralDetector measures document shape: list density, header density,
// paragraph uniformity, emoji rate.
type structuralDetector struct {
	def model.PatternDefinition
}

func (d *structuralDetector) Compute(doc *Document) (float64, string, error) {
	switch d.def.Params.Metric {
	case "bullet_density":
		return d.bulletDensity(doc)
	case "header_ratio":
		return d.headerRatio(doc)
	case "paragraph_cv_inverted":
		return d.paragraphUniformity(doc)
	case "emoji_density":
		return d.emojiDensity(doc)
	default:
		return 0, "", &DetectionError{
			PatternID: d.def.ID,
			Err:       eris.Errorf("unknown structural metric %q", d.def.Params.Metric),
		}
	}
}

func (d *structuralDetector) bulletDensity(doc *Document) (float64, string, error) {
	if len(doc.Lines) == 0 {
		return 0, "no lines", nil
	}
	bullets := 0
	for _, line := range doc.Lines {
		if isBulletLine(line) {
			bullets++
		}
	}
	ratio := float64(bullets) / float64(len(doc.Lines))
	return ratio, fmt.Sprintf("%d/%d bullet lines (%.1f%%)", bullets, len(doc.Lines), ratio*100), nil
}

func (d *structuralDetector) headerRatio(doc *Document) (float64, string, error) {
	if len(doc.Lines) == 0 {
		return 0, "no lines", nil
	}
	headers := 0
	for _, line := range doc.Lines {
		if isHeaderLine(line) {
			headers++
		}
	}
	ratio := float64(headers) / float64(len(doc.Lines))
	return ratio, fmt.Sprintf("%d/%d header lines (%.1f%%)", headers, len(doc.Lines), ratio*100), nil
}

// paragraphUniformity is 1 − coefficient of variation of paragraph word
// counts, floored at 0. Uniform paragraph lengths score near 1. Fewer than
// three paragraphs is not enough signal to measure.
func (d *structuralDetector) paragraphUniformity(doc *Document) (float64, string, error) {
	if len(doc.Paragraphs) < 3 {
		return 0, "too few paragraphs to measure", nil
	}
	lengths := make([]float64, len(doc.Paragraphs))
	for i, p := range doc.Paragraphs {
		lengths[i] = float64(len(strings.Fields(p)))
	}
	m := mean(lengths)
	if m == 0 {
		return 0, "empty paragraphs", nil
	}
	cv := stdev(lengths) / m
	raw := math.Max(0, 1-cv)
	return raw, fmt.Sprintf("CV=%.2f (uniformity=%.2f)", cv, raw), nil
}

func (d *structuralDetector) emojiDensity(doc *Document) (float64, string, error) {
	perN := perNWords(d.def)
	raw := rateOf(doc.EmojiCount, doc.WordCount, perN)
	return raw, fmt.Sprintf("%d emoji (%.2f per %.0f words)", doc.EmojiCount, raw, perN), nil
}
