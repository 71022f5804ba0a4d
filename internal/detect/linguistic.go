package detect

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// Minimum sample sizes below which a linguistic metric has no signal and
// resolves to 0 rather than erroring.
const (
	minSentencesForCV = 4
	minWordsForTTR    = 50
	defaultTTRWindow  = 50
)

// linguisticDetector measures language use: sentence rhythm, vocabulary
// repetitiveness, question frequency.
type linguisticDetector struct {
	def model.PatternDefinition
}

func (d *linguisticDetector) Compute(doc *Document) (float64, string, error) {
	switch d.def.Params.Metric {
	case "sentence_burstiness":
		return d.sentenceBurstiness(doc)
	case "type_token_ratio":
		return d.typeTokenRatio(doc)
	case "question_rate":
		return d.questionRate(doc)
	case "avg_sentence_length":
		return d.avgSentenceLength(doc)
	default:
		return 0, "", &DetectionError{
			PatternID: d.def.ID,
			Err:       eris.Errorf("unknown linguistic metric %q", d.def.Params.Metric),
		}
	}
}

// sentenceBurstiness is 1 − coefficient of variation of sentence word
// counts, floored at 0. Uniform sentence lengths (low variance) score
// near 1.
func (d *linguisticDetector) sentenceBurstiness(doc *Document) (float64, string, error) {
	if len(doc.Sentences) < minSentencesForCV {
		return 0, "too few sentences", nil
	}
	lengths := make([]float64, len(doc.Sentences))
	for i, s := range doc.Sentences {
		lengths[i] = float64(len(strings.Fields(s)))
	}
	m := mean(lengths)
	if m == 0 {
		return 0, "empty sentences", nil
	}
	cv := stdev(lengths) / m
	raw := math.Max(0, 1-cv)
	return raw, fmt.Sprintf("CV=%.2f (uniformity=%.2f)", cv, raw), nil
}

// typeTokenRatio averages unique/total token ratios over fixed-size
// sliding windows so long documents are not penalized, then inverts:
// repetitive vocabulary (low TTR) scores near 1.
func (d *linguisticDetector) typeTokenRatio(doc *Document) (float64, string, error) {
	window := d.def.Params.WindowSize
	if window <= 0 {
		window = defaultTTRWindow
	}
	if len(doc.Words) < minWordsForTTR || len(doc.Words) < window {
		return 0, "too few words for TTR", nil
	}

	stride := window / 2
	if stride < 1 {
		stride = 1
	}

	var ttrs []float64
	for i := 0; i+window <= len(doc.Words); i += stride {
		chunk := doc.Words[i : i+window]
		uniq := make(map[string]struct{}, len(chunk))
		for _, w := range chunk {
			uniq[w] = struct{}{}
		}
		ttrs = append(ttrs, float64(len(uniq))/float64(len(chunk)))
	}

	avg := mean(ttrs)
	raw := math.Max(0, 1-avg)
	return raw, fmt.Sprintf("STTR=%.3f over %d windows", avg, len(ttrs)), nil
}

// questionRate is 1 − the fraction of sentences ending in '?': documents
// that never ask questions score near 1.
func (d *linguisticDetector) questionRate(doc *Document) (float64, string, error) {
	if len(doc.Sentences) == 0 {
		return 0, "no sentences", nil
	}
	questions := 0
	for _, s := range doc.Sentences {
		if strings.HasSuffix(strings.TrimRight(s, " \t"), "?") {
			questions++
		}
	}
	rate := float64(questions) / float64(len(doc.Sentences))
	raw := 1 - rate
	return raw, fmt.Sprintf("%d/%d sentences are questions (%.1f%%)", questions, len(doc.Sentences), rate*100), nil
}

func (d *linguisticDetector) avgSentenceLength(doc *Document) (float64, string, error) {
	if len(doc.Sentences) == 0 {
		return 0, "no sentences", nil
	}
	lengths := make([]float64, len(doc.Sentences))
	for i, s := range doc.Sentences {
		lengths[i] = float64(len(strings.Fields(s)))
	}
	avg := mean(lengths)
	return avg, fmt.Sprintf("%.1f words/sentence avg", avg), nil
}
