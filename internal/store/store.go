// Package store persists scan results and per-pattern scores, with
// versioned rows and a staleness predicate driving re-evaluation.
package store

import (
	"context"
	"time"

	"github.com/carteakey/aidar/internal/model"
)

// ScanRecord carries the scan-level fields of an upsert. Identity must be
// exactly one of url / file_path; it is the uniqueness key.
type ScanRecord struct {
	Identity      model.Identity
	Title         string
	WordCount     int
	Index         int
	Label         model.Label
	PublishedDate *time.Time
	ScannedAt     time.Time
}

// ScanFilter narrows and orders ListScans.
type ScanFilter struct {
	Domain string
	Label  model.Label
	Order  string // "recent" (default) | "highest" | "lowest"
	Limit  int
	Offset int
}

// Store is the persistence interface for scan results.
//
// Writers must treat SaveResult as the only commit path during scanning:
// it performs the scan upsert and the full pattern-score replacement in a
// single transaction, so a failure leaves the previous state intact.
type Store interface {
	// UpsertScan inserts or updates the scan row keyed by identity and
	// returns the row id, resolved by an explicit keyed read after the
	// write — never by last-insert metadata, which is undefined on the
	// update path.
	UpsertScan(ctx context.Context, rec ScanRecord) (int64, error)

	// ReplacePatternScores atomically swaps the full pattern-score set
	// for a scan. The previous set survives any mid-operation failure.
	ReplacePatternScores(ctx context.Context, scanID int64, rows []model.PatternScoreRow) error

	// SaveResult combines UpsertScan and ReplacePatternScores in one
	// transaction and returns the scan id.
	SaveResult(ctx context.Context, res *model.Result) (int64, error)

	GetScan(ctx context.Context, id model.Identity) (*model.ScanRow, error)
	HasScan(ctx context.Context, id model.Identity) (bool, error)
	PatternScores(ctx context.Context, scanID int64) ([]model.PatternScoreRow, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRow, error)

	// StaleScans returns identities whose stored scores are older than
	// the given registry versions, or which are missing a score row for
	// a registry pattern.
	StaleScans(ctx context.Context, versions map[string]int) ([]model.Identity, error)

	// DomainStats returns aggregates for one domain, or nil when the
	// domain has no stored scans.
	DomainStats(ctx context.Context, domain string) (*model.DomainStats, error)
	// DomainLeaderboard ranks domains by average index, descending.
	DomainLeaderboard(ctx context.Context, limit int) ([]model.DomainLeaderboardEntry, error)
	GlobalStats(ctx context.Context) (*model.GlobalStats, error)
	PatternStats(ctx context.Context) ([]model.PatternStat, error)
	PatternVersionSummary(ctx context.Context) ([]model.PatternVersionSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}
