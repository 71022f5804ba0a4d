package model

import "time"

// ScanRow mirrors one persisted row of the scans table.
type ScanRow struct {
	ID            int64      `json:"id"`
	Identity      Identity   `json:"identity"`
	Domain        string     `json:"domain"`
	Title         string     `json:"title,omitempty"`
	WordCount     int        `json:"word_count"`
	Index         int        `json:"stylistic_index"`
	Label         Label      `json:"label"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	ScannedAt     time.Time  `json:"scanned_at"`
}

// PatternScoreRow mirrors one persisted row of the pattern_scores table.
// The version column pins which revision of the pattern produced the score,
// which is what the staleness predicate compares against.
type PatternScoreRow struct {
	ScanID     int64    `json:"scan_id"`
	PatternID  string   `json:"pattern_id"`
	Category   Category `json:"category"`
	RawValue   float64  `json:"raw_value"`
	Normalized float64  `json:"normalized_score"`
	Version    int      `json:"pattern_version_at_scan_time"`
}

// DomainStats aggregates stored scans for one domain.
type DomainStats struct {
	Domain      string          `json:"domain"`
	Scans       int             `json:"scans"`
	AvgIndex    float64         `json:"avg_index"`
	MinIndex    int             `json:"min_index"`
	MaxIndex    int             `json:"max_index"`
	Latest      time.Time       `json:"latest"`
	LabelCounts map[Label]int   `json:"label_counts"`
}

// DomainLeaderboardEntry is one row of the per-domain leaderboard,
// ordered by average index.
type DomainLeaderboardEntry struct {
	Domain   string    `json:"domain"`
	Scans    int       `json:"scans"`
	AvgIndex float64   `json:"avg_index"`
	MaxIndex int       `json:"max_index"`
	Latest   time.Time `json:"latest"`
}

// PatternStat is the corpus-wide average for one pattern.
type PatternStat struct {
	PatternID   string   `json:"pattern_id"`
	Category    Category `json:"category"`
	AvgScore    float64  `json:"avg_score"`
	Occurrences int      `json:"occurrences"`
}

// PatternVersionSummary compares stored pattern versions against the registry.
type PatternVersionSummary struct {
	PatternID        string `json:"pattern_id"`
	MaxStoredVersion int    `json:"max_stored_version"`
	ScanCount        int    `json:"scan_count"`
}

// GlobalStats summarizes the whole stored corpus.
type GlobalStats struct {
	TotalScans   int           `json:"total_scans"`
	TotalDomains int           `json:"total_domains"`
	AvgIndex     float64       `json:"avg_index"`
	LabelCounts  map[Label]int `json:"label_counts"`
}
