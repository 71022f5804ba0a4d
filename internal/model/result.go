package model

import (
	"net/url"
	"strings"
	"time"
)

// Label buckets a stylistic index into a human-readable verdict.
type Label string

const (
	LabelLikelyHuman Label = "LIKELY_HUMAN"
	LabelUncertain   Label = "UNCERTAIN"
	LabelLikelyAI    Label = "LIKELY_AI"
)

// Identity is a scan target's stable key: exactly one of URL or FilePath.
type Identity struct {
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// NewURLIdentity builds an Identity for a remote target.
func NewURLIdentity(u string) Identity { return Identity{URL: u} }

// NewFileIdentity builds an Identity for a local file target.
func NewFileIdentity(path string) Identity { return Identity{FilePath: path} }

// Valid reports whether exactly one of URL / FilePath is set.
func (id Identity) Valid() bool {
	return (id.URL != "") != (id.FilePath != "")
}

// String returns whichever key is populated.
func (id Identity) String() string {
	if id.URL != "" {
		return id.URL
	}
	return id.FilePath
}

// Domain derives the host from the URL; empty for file targets.
func (id Identity) Domain() string {
	if id.URL == "" {
		return ""
	}
	u, err := url.Parse(id.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// PatternResult is one pattern's outcome against one document.
type PatternResult struct {
	PatternID  string   `json:"pattern_id"`
	Category   Category `json:"category"`
	RawValue   float64  `json:"raw_value"`
	Normalized float64  `json:"normalized_score"`
	Weight     float64  `json:"weight"`
	Version    int      `json:"pattern_version"`
	Detail     string   `json:"detail,omitempty"`
}

// Result is the full evaluation of one target: per-pattern detail plus the
// derived category scores, index, and label. Only the index and the pattern
// results are persisted; category scores are always re-derivable.
type Result struct {
	Identity       Identity             `json:"identity"`
	Title          string               `json:"title,omitempty"`
	WordCount      int                  `json:"word_count"`
	PatternResults []PatternResult      `json:"pattern_results"`
	CategoryScores map[Category]float64 `json:"category_scores"`
	Index          int                  `json:"stylistic_index"`
	Label          Label                `json:"label"`
	PublishedDate  *time.Time           `json:"published_date,omitempty"`
	ScannedAt      time.Time            `json:"scanned_at"`
	ProfileMatch   map[string]float64   `json:"profile_match,omitempty"`
}

// ResultsByCategory filters pattern results for one category.
func (r *Result) ResultsByCategory(c Category) []PatternResult {
	var out []PatternResult
	for _, pr := range r.PatternResults {
		if pr.Category == c {
			out = append(out, pr)
		}
	}
	return out
}
