package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carteakey/aidar/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and enables foreign key enforcement (referential integrity between
// pattern_scores and scans is enforced by the store, not assumed).
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT UNIQUE,
	file_path       TEXT UNIQUE,
	domain          TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	word_count      INTEGER NOT NULL DEFAULT 0,
	stylistic_index INTEGER NOT NULL,
	label           TEXT NOT NULL,
	published_date  DATETIME,
	scanned_at      DATETIME NOT NULL,
	CHECK ((url IS NULL) <> (file_path IS NULL))
);

CREATE TABLE IF NOT EXISTS pattern_scores (
	scan_id          INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	pattern_id       TEXT NOT NULL,
	category         TEXT NOT NULL,
	raw_value        REAL NOT NULL,
	normalized_score REAL NOT NULL,
	pattern_version  INTEGER NOT NULL DEFAULT 1,
	UNIQUE (scan_id, pattern_id)
);

CREATE INDEX IF NOT EXISTS idx_scans_domain ON scans(domain);
CREATE INDEX IF NOT EXISTS idx_scans_index ON scans(stylistic_index DESC);
CREATE INDEX IF NOT EXISTS idx_pattern_scores_scan ON pattern_scores(scan_id);
CREATE INDEX IF NOT EXISTS idx_pattern_scores_pattern ON pattern_scores(pattern_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// identityClause returns the keyed WHERE fragment and its argument for an
// identity. Exactly one of url/file_path is set.
func identityClause(id model.Identity) (string, any) {
	if id.URL != "" {
		return "url = ?", id.URL
	}
	return "file_path = ?", id.FilePath
}

func (s *SQLiteStore) UpsertScan(ctx context.Context, rec ScanRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := upsertScanTx(ctx, tx, rec)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return id, nil
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertScanTx(ctx context.Context, q execer, rec ScanRecord) (int64, error) {
	if !rec.Identity.Valid() {
		return 0, eris.New("sqlite: scan identity must be exactly one of url or file_path")
	}

	conflictCol := "url"
	if rec.Identity.FilePath != "" {
		conflictCol = "file_path"
	}

	var published sql.NullTime
	if rec.PublishedDate != nil {
		published = sql.NullTime{Time: rec.PublishedDate.UTC(), Valid: true}
	}
	scannedAt := rec.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO scans
			(url, file_path, domain, title, word_count, stylistic_index, label, published_date, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(`+conflictCol+`) DO UPDATE SET
			domain          = excluded.domain,
			title           = CASE WHEN excluded.title <> '' THEN excluded.title ELSE scans.title END,
			word_count      = excluded.word_count,
			stylistic_index = excluded.stylistic_index,
			label           = excluded.label,
			published_date  = COALESCE(excluded.published_date, scans.published_date),
			scanned_at      = excluded.scanned_at`,
		nullable(rec.Identity.URL), nullable(rec.Identity.FilePath), rec.Identity.Domain(),
		rec.Title, rec.WordCount, rec.Index, string(rec.Label), published, scannedAt.UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert scan %s", rec.Identity)
	}

	// Resolve the id by a keyed read: last-insert metadata is undefined on
	// the update path of an upsert.
	where, arg := identityClause(rec.Identity)
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM scans WHERE `+where, arg).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "sqlite: resolve scan id for %s", rec.Identity)
	}
	return id, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) ReplacePatternScores(ctx context.Context, scanID int64, rows []model.PatternScoreRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := replaceScoresTx(ctx, tx, scanID, rows); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace")
}

func replaceScoresTx(ctx context.Context, tx *sql.Tx, scanID int64, rows []model.PatternScoreRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_scores WHERE scan_id = ?`, scanID); err != nil {
		return eris.Wrapf(err, "sqlite: delete pattern scores for scan %d", scanID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pattern_scores
			(scan_id, pattern_id, category, raw_value, normalized_score, pattern_version)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert pattern score")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, scanID, r.PatternID, string(r.Category),
			r.RawValue, r.Normalized, r.Version); err != nil {
			return eris.Wrapf(err, "sqlite: insert pattern score %s for scan %d", r.PatternID, scanID)
		}
	}
	return nil
}

// SaveResult commits the scan row and its full pattern-score set in a
// single transaction; a failure anywhere leaves prior state untouched.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *model.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback() //nolint:errcheck

	scanID, err := upsertScanTx(ctx, tx, ScanRecord{
		Identity:      res.Identity,
		Title:         res.Title,
		WordCount:     res.WordCount,
		Index:         res.Index,
		Label:         res.Label,
		PublishedDate: res.PublishedDate,
		ScannedAt:     res.ScannedAt,
	})
	if err != nil {
		return 0, err
	}

	rows := make([]model.PatternScoreRow, 0, len(res.PatternResults))
	for _, pr := range res.PatternResults {
		rows = append(rows, model.PatternScoreRow{
			ScanID:     scanID,
			PatternID:  pr.PatternID,
			Category:   pr.Category,
			RawValue:   pr.RawValue,
			Normalized: pr.Normalized,
			Version:    pr.Version,
		})
	}
	if err := replaceScoresTx(ctx, tx, scanID, rows); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save")
	}
	return scanID, nil
}

const scanColumns = `id, url, file_path, domain, title, word_count, stylistic_index, label, published_date, scanned_at`

func (s *SQLiteStore) GetScan(ctx context.Context, id model.Identity) (*model.ScanRow, error) {
	where, arg := identityClause(id)
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE `+where, arg)
	sr, err := scanScanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scan %s", id)
	}
	return sr, nil
}

func (s *SQLiteStore) HasScan(ctx context.Context, id model.Identity) (bool, error) {
	where, arg := identityClause(id)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE `+where, arg).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has scan %s", id)
	}
	return n > 0, nil
}

func (s *SQLiteStore) PatternScores(ctx context.Context, scanID int64) ([]model.PatternScoreRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, pattern_id, category, raw_value, normalized_score, pattern_version
		FROM pattern_scores WHERE scan_id = ? ORDER BY pattern_id`, scanID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: pattern scores for scan %d", scanID)
	}
	defer rows.Close()

	var out []model.PatternScoreRow
	for rows.Next() {
		var r model.PatternScoreRow
		var cat string
		if err := rows.Scan(&r.ScanID, &r.PatternID, &cat, &r.RawValue, &r.Normalized, &r.Version); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern score row")
		}
		r.Category = model.Category(cat)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pattern scores")
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRow, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE 1=1`
	var args []any

	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, string(filter.Label))
	}

	switch filter.Order {
	case "highest":
		query += ` ORDER BY stylistic_index DESC, id`
	case "lowest":
		query += ` ORDER BY stylistic_index ASC, id`
	default:
		query += ` ORDER BY scanned_at DESC, id`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var out []model.ScanRow
	for rows.Next() {
		sr, err := scanScanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate scans")
}

// StaleScans applies the staleness predicate: any score row older than the
// registry's version for that pattern, or any registry pattern with no
// score row at all for the scan.
func (s *SQLiteStore) StaleScans(ctx context.Context, versions map[string]int) ([]model.Identity, error) {
	ids := make([]string, 0, len(versions))
	for id := range versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stale := make(map[string]model.Identity)

	for _, pid := range ids {
		// Outdated version.
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT s.url, s.file_path
			FROM scans s
			JOIN pattern_scores ps ON ps.scan_id = s.id
			WHERE ps.pattern_id = ? AND ps.pattern_version < ?`,
			pid, versions[pid])
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: stale scans for pattern %s", pid)
		}
		if err := collectIdentities(rows, stale); err != nil {
			return nil, err
		}

		// Missing score row.
		rows, err = s.db.QueryContext(ctx, `
			SELECT s.url, s.file_path
			FROM scans s
			WHERE NOT EXISTS (
				SELECT 1 FROM pattern_scores ps
				WHERE ps.scan_id = s.id AND ps.pattern_id = ?
			)`, pid)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scans missing pattern %s", pid)
		}
		if err := collectIdentities(rows, stale); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(stale))
	for k := range stale {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Identity, 0, len(keys))
	for _, k := range keys {
		out = append(out, stale[k])
	}
	return out, nil
}

func collectIdentities(rows *sql.Rows, into map[string]model.Identity) error {
	defer rows.Close()
	for rows.Next() {
		var u, f sql.NullString
		if err := rows.Scan(&u, &f); err != nil {
			return eris.Wrap(err, "sqlite: scan identity")
		}
		id := model.Identity{URL: u.String, FilePath: f.String}
		into[id.String()] = id
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate identities")
}

func (s *SQLiteStore) DomainStats(ctx context.Context, domain string) (*model.DomainStats, error) {
	stats := &model.DomainStats{
		Domain:      domain,
		LabelCounts: make(map[model.Label]int),
	}

	var avg sql.NullFloat64
	var minIdx, maxIdx sql.NullInt64
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(stylistic_index), MIN(stylistic_index), MAX(stylistic_index), MAX(scanned_at)
		FROM scans WHERE domain = ?`, domain).
		Scan(&stats.Scans, &avg, &minIdx, &maxIdx, &latest)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: domain stats %s", domain)
	}
	if stats.Scans == 0 {
		return nil, nil
	}
	stats.AvgIndex = avg.Float64
	stats.MinIndex = int(minIdx.Int64)
	stats.MaxIndex = int(maxIdx.Int64)
	if latest.Valid {
		stats.Latest = parseStoredTime(latest.String)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM scans WHERE domain = ? GROUP BY label`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: domain label counts %s", domain)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label count")
		}
		stats.LabelCounts[model.Label(label)] = n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate label counts")
}

func (s *SQLiteStore) DomainLeaderboard(ctx context.Context, limit int) ([]model.DomainLeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, COUNT(*), AVG(stylistic_index), MAX(stylistic_index), MAX(scanned_at)
		FROM scans WHERE domain <> ''
		GROUP BY domain
		ORDER BY AVG(stylistic_index) DESC, domain ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: domain leaderboard")
	}
	defer rows.Close()

	var entries []model.DomainLeaderboardEntry
	for rows.Next() {
		var e model.DomainLeaderboardEntry
		var latest sql.NullString
		if err := rows.Scan(&e.Domain, &e.Scans, &e.AvgIndex, &e.MaxIndex, &latest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan leaderboard row")
		}
		if latest.Valid {
			e.Latest = parseStoredTime(latest.String)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate leaderboard")
}

func (s *SQLiteStore) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	stats := &model.GlobalStats{LabelCounts: make(map[model.Label]int)}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT CASE WHEN domain <> '' THEN domain END), AVG(stylistic_index)
		FROM scans`).
		Scan(&stats.TotalScans, &stats.TotalDomains, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: global stats")
	}
	stats.AvgIndex = avg.Float64

	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM scans GROUP BY label`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: global label counts")
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label count")
		}
		stats.LabelCounts[model.Label(label)] = n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate label counts")
}

func (s *SQLiteStore) PatternStats(ctx context.Context) ([]model.PatternStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_id, category, AVG(normalized_score), COUNT(*)
		FROM pattern_scores
		GROUP BY pattern_id
		ORDER BY AVG(normalized_score) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pattern stats")
	}
	defer rows.Close()

	var out []model.PatternStat
	for rows.Next() {
		var st model.PatternStat
		var cat string
		if err := rows.Scan(&st.PatternID, &cat, &st.AvgScore, &st.Occurrences); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern stat")
		}
		st.Category = model.Category(cat)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pattern stats")
}

func (s *SQLiteStore) PatternVersionSummary(ctx context.Context) ([]model.PatternVersionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_id, MAX(pattern_version), COUNT(DISTINCT scan_id)
		FROM pattern_scores
		GROUP BY pattern_id
		ORDER BY pattern_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pattern version summary")
	}
	defer rows.Close()

	var out []model.PatternVersionSummary
	for rows.Next() {
		var sum model.PatternVersionSummary
		if err := rows.Scan(&sum.PatternID, &sum.MaxStoredVersion, &sum.ScanCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan version summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate version summary")
}

// helpers

// parseStoredTime handles the formats the driver writes DATETIME values in.
// Aggregate expressions come back as raw text, so we parse by hand.
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339Nano,
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScanRow(row scannable) (*model.ScanRow, error) {
	var sr model.ScanRow
	var u, f, label sql.NullString
	var published sql.NullTime

	err := row.Scan(&sr.ID, &u, &f, &sr.Domain, &sr.Title, &sr.WordCount,
		&sr.Index, &label, &published, &sr.ScannedAt)
	if err != nil {
		return nil, err
	}

	sr.Identity = model.Identity{URL: u.String, FilePath: f.String}
	sr.Label = model.Label(label.String)
	if published.Valid {
		t := published.Time
		sr.PublishedDate = &t
	}
	return &sr, nil
}
