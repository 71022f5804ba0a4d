package detect

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is the pre-computed feature view of one extracted text. It is
// built once per target and shared, read-only, by every detector so that
// tokenizing and boundary detection happen exactly once.
type Document struct {
	Text      string
	LowerText string

	Lines      []string // non-blank lines
	Paragraphs []string // blank-line separated blocks
	Sentences  []string // naive sentence split, >= 2 words each
	Words      []string // lower-cased tokens, stripped of edge punctuation

	WordCount  int
	EmojiCount int
}

// NewDocument normalizes text to NFC and computes all document features.
func NewDocument(text string) *Document {
	text = norm.NFC.String(text)

	d := &Document{
		Text:      text,
		LowerText: strings.ToLower(text),
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			d.Lines = append(d.Lines, line)
		}
	}

	d.Paragraphs = splitParagraphs(text)
	d.Sentences = splitSentences(text)
	d.Words = tokenize(text)
	d.WordCount = len(strings.Fields(text))
	d.EmojiCount = countEmoji(text)

	return d
}

func splitParagraphs(text string) []string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// splitSentences breaks each prose line at ., ! or ? followed by whitespace.
// A newline always ends a sentence, and heading/bullet lines are skipped
// outright, so document structure never glues into the surrounding prose.
// Fragments shorter than two words are dropped as noise.
func splitSentences(text string) []string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		if isHeaderLine(line) || isBulletLine(line) {
			continue
		}
		sentences = append(sentences, splitLineSentences(line)...)
	}
	return sentences
}

func splitLineSentences(line string) []string {
	runes := []rune(strings.TrimSpace(line))
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Consume a run of terminators (e.g. "?!", "...").
			j := i
			for j+1 < len(runes) && isTerminator(runes[j+1]) {
				j++
			}
			if j+1 >= len(runes) || isSpace(runes[j+1]) {
				s := strings.TrimSpace(string(runes[start : j+1]))
				if len(strings.Fields(s)) >= 2 {
					sentences = append(sentences, s)
				}
				start = j + 1
			}
			i = j
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); len(strings.Fields(tail)) >= 2 {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminator(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// tokenize lower-cases and strips edge punctuation from whitespace-split
// tokens. Tokens that are pure punctuation are dropped.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, ".,!?;:\"'()[]“”‘’")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// emojiRanges covers the common emoji blocks: emoticons, pictographs,
// transport, flags, misc symbols and dingbats, supplemental pictographs.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F},
	{0x1F300, 0x1F5FF},
	{0x1F680, 0x1F6FF},
	{0x1F1E6, 0x1F1FF},
	{0x2600, 0x27BF},
	{0x1F900, 0x1F9FF},
	{0x1FA70, 0x1FAFF},
}

func countEmoji(text string) int {
	n := 0
	for _, r := range text {
		for _, rng := range emojiRanges {
			if r >= rng[0] && r <= rng[1] {
				n++
				break
			}
		}
	}
	return n
}

// isBulletLine reports whether a line opens with a list marker.
func isBulletLine(line string) bool {
	s := strings.TrimLeft(line, " \t")
	if s == "" {
		return false
	}
	switch []rune(s)[0] {
	case '-', '*', '•', '·', '◦', '▪', '▸', '►', '✓', '✗':
		rest := string([]rune(s)[1:])
		return strings.TrimSpace(rest) != ""
	}
	// Numbered lists: "1. item" / "2) item".
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:]) != ""
	}
	return false
}

// isHeaderLine reports whether a line is a markdown-style header.
func isHeaderLine(line string) bool {
	s := strings.TrimLeft(line, " \t")
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && n < len(s) && (s[n] == ' ' || s[n] == '\t')
}
