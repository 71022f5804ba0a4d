package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/carteakey/aidar/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock's PgxPoolIface
// satisfies it too, which is how the postgres tests run without a server.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              BIGSERIAL PRIMARY KEY,
	url             TEXT UNIQUE,
	file_path       TEXT UNIQUE,
	domain          TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	word_count      INTEGER NOT NULL DEFAULT 0,
	stylistic_index INTEGER NOT NULL,
	label           TEXT NOT NULL,
	published_date  TIMESTAMPTZ,
	scanned_at      TIMESTAMPTZ NOT NULL,
	CHECK ((url IS NULL) <> (file_path IS NULL))
);

CREATE TABLE IF NOT EXISTS pattern_scores (
	scan_id          BIGINT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	pattern_id       TEXT NOT NULL,
	category         TEXT NOT NULL,
	raw_value        DOUBLE PRECISION NOT NULL,
	normalized_score DOUBLE PRECISION NOT NULL,
	pattern_version  INTEGER NOT NULL DEFAULT 1,
	UNIQUE (scan_id, pattern_id)
);

CREATE INDEX IF NOT EXISTS idx_scans_domain ON scans(domain);
CREATE INDEX IF NOT EXISTS idx_scans_index ON scans(stylistic_index DESC);
CREATE INDEX IF NOT EXISTS idx_pattern_scores_scan ON pattern_scores(scan_id);
CREATE INDEX IF NOT EXISTS idx_pattern_scores_pattern ON pattern_scores(pattern_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgQuerier covers both the pool and an open transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgIdentityClause(id model.Identity) (string, any) {
	if id.URL != "" {
		return "url = $1", id.URL
	}
	return "file_path = $1", id.FilePath
}

func (s *PostgresStore) UpsertScan(ctx context.Context, rec ScanRecord) (int64, error) {
	return pgUpsertScan(ctx, s.pool, rec)
}

func pgUpsertScan(ctx context.Context, q pgQuerier, rec ScanRecord) (int64, error) {
	if !rec.Identity.Valid() {
		return 0, eris.New("postgres: scan identity must be exactly one of url or file_path")
	}

	conflictCol := "url"
	if rec.Identity.FilePath != "" {
		conflictCol = "file_path"
	}

	var published *time.Time
	if rec.PublishedDate != nil {
		t := rec.PublishedDate.UTC()
		published = &t
	}
	scannedAt := rec.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	_, err := q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO scans
			(url, file_path, domain, title, word_count, stylistic_index, label, published_date, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(%s) DO UPDATE SET
			domain          = excluded.domain,
			title           = CASE WHEN excluded.title <> '' THEN excluded.title ELSE scans.title END,
			word_count      = excluded.word_count,
			stylistic_index = excluded.stylistic_index,
			label           = excluded.label,
			published_date  = COALESCE(excluded.published_date, scans.published_date),
			scanned_at      = excluded.scanned_at`, conflictCol),
		pgNullable(rec.Identity.URL), pgNullable(rec.Identity.FilePath), rec.Identity.Domain(),
		rec.Title, rec.WordCount, rec.Index, string(rec.Label), published, scannedAt.UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert scan %s", rec.Identity)
	}

	where, arg := pgIdentityClause(rec.Identity)
	var id int64
	if err := q.QueryRow(ctx, `SELECT id FROM scans WHERE `+where, arg).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "postgres: resolve scan id for %s", rec.Identity)
	}
	return id, nil
}

func pgNullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) ReplacePatternScores(ctx context.Context, scanID int64, rows []model.PatternScoreRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := pgReplaceScores(ctx, tx, scanID, rows); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace")
}

func pgReplaceScores(ctx context.Context, tx pgx.Tx, scanID int64, rows []model.PatternScoreRow) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pattern_scores WHERE scan_id = $1`, scanID); err != nil {
		return eris.Wrapf(err, "postgres: delete pattern scores for scan %d", scanID)
	}
	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO pattern_scores
				(scan_id, pattern_id, category, raw_value, normalized_score, pattern_version)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			scanID, r.PatternID, string(r.Category), r.RawValue, r.Normalized, r.Version)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert pattern score %s for scan %d", r.PatternID, scanID)
		}
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, res *model.Result) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin save")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	scanID, err := pgUpsertScan(ctx, tx, ScanRecord{
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
	if err := pgReplaceScores(ctx, tx, scanID, rows); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit save")
	}
	return scanID, nil
}

func (s *PostgresStore) GetScan(ctx context.Context, id model.Identity) (*model.ScanRow, error) {
	where, arg := pgIdentityClause(id)
	row := s.pool.QueryRow(ctx, `SELECT `+scanColumns+` FROM scans WHERE `+where, arg)
	sr, err := scanPgScanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scan %s", id)
	}
	return sr, nil
}

func (s *PostgresStore) HasScan(ctx context.Context, id model.Identity) (bool, error) {
	where, arg := pgIdentityClause(id)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scans WHERE `+where, arg).Scan(&n); err != nil {
		return false, eris.Wrapf(err, "postgres: has scan %s", id)
	}
	return n > 0, nil
}

func (s *PostgresStore) PatternScores(ctx context.Context, scanID int64) ([]model.PatternScoreRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scan_id, pattern_id, category, raw_value, normalized_score, pattern_version
		FROM pattern_scores WHERE scan_id = $1 ORDER BY pattern_id`, scanID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: pattern scores for scan %d", scanID)
	}
	defer rows.Close()

	var out []model.PatternScoreRow
	for rows.Next() {
		var r model.PatternScoreRow
		var cat string
		if err := rows.Scan(&r.ScanID, &r.PatternID, &cat, &r.RawValue, &r.Normalized, &r.Version); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern score row")
		}
		r.Category = model.Category(cat)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate pattern scores")
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRow, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE 1=1`
	var args []any

	if filter.Domain != "" {
		args = append(args, filter.Domain)
		query += fmt.Sprintf(` AND domain = $%d`, len(args))
	}
	if filter.Label != "" {
		args = append(args, string(filter.Label))
		query += fmt.Sprintf(` AND label = $%d`, len(args))
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
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var out []model.ScanRow
	for rows.Next() {
		sr, err := scanPgScanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate scans")
}

func (s *PostgresStore) StaleScans(ctx context.Context, versions map[string]int) ([]model.Identity, error) {
	ids := make([]string, 0, len(versions))
	for id := range versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stale := make(map[string]model.Identity)

	for _, pid := range ids {
		rows, err := s.pool.Query(ctx, `
			SELECT DISTINCT s.url, s.file_path
			FROM scans s
			JOIN pattern_scores ps ON ps.scan_id = s.id
			WHERE ps.pattern_id = $1 AND ps.pattern_version < $2`,
			pid, versions[pid])
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: stale scans for pattern %s", pid)
		}
		if err := collectPgIdentities(rows, stale); err != nil {
			return nil, err
		}

		rows, err = s.pool.Query(ctx, `
			SELECT s.url, s.file_path
			FROM scans s
			WHERE NOT EXISTS (
				SELECT 1 FROM pattern_scores ps
				WHERE ps.scan_id = s.id AND ps.pattern_id = $1
			)`, pid)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scans missing pattern %s", pid)
		}
		if err := collectPgIdentities(rows, stale); err != nil {
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

func collectPgIdentities(rows pgx.Rows, into map[string]model.Identity) error {
	defer rows.Close()
	for rows.Next() {
		var u, f *string
		if err := rows.Scan(&u, &f); err != nil {
			return eris.Wrap(err, "postgres: scan identity")
		}
		id := model.Identity{URL: deref(u), FilePath: deref(f)}
		into[id.String()] = id
	}
	return eris.Wrap(rows.Err(), "postgres: iterate identities")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *PostgresStore) DomainStats(ctx context.Context, domain string) (*model.DomainStats, error) {
	stats := &model.DomainStats{
		Domain:      domain,
		LabelCounts: make(map[model.Label]int),
	}

	var avg *float64
	var minIdx, maxIdx *int
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(stylistic_index), MIN(stylistic_index), MAX(stylistic_index), MAX(scanned_at)
		FROM scans WHERE domain = $1`, domain).
		Scan(&stats.Scans, &avg, &minIdx, &maxIdx, &latest)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: domain stats %s", domain)
	}
	if stats.Scans == 0 {
		return nil, nil
	}
	if avg != nil {
		stats.AvgIndex = *avg
	}
	if minIdx != nil {
		stats.MinIndex = *minIdx
	}
	if maxIdx != nil {
		stats.MaxIndex = *maxIdx
	}
	if latest != nil {
		stats.Latest = *latest
	}

	rows, err := s.pool.Query(ctx,
		`SELECT label, COUNT(*) FROM scans WHERE domain = $1 GROUP BY label`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: domain label counts %s", domain)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label count")
		}
		stats.LabelCounts[model.Label(label)] = n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate label counts")
}

func (s *PostgresStore) DomainLeaderboard(ctx context.Context, limit int) ([]model.DomainLeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT domain, COUNT(*), AVG(stylistic_index), MAX(stylistic_index), MAX(scanned_at)
		FROM scans WHERE domain <> ''
		GROUP BY domain
		ORDER BY AVG(stylistic_index) DESC, domain ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: domain leaderboard")
	}
	defer rows.Close()

	var entries []model.DomainLeaderboardEntry
	for rows.Next() {
		var e model.DomainLeaderboardEntry
		if err := rows.Scan(&e.Domain, &e.Scans, &e.AvgIndex, &e.MaxIndex, &e.Latest); err != nil {
			return nil, eris.Wrap(err, "postgres: scan leaderboard row")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate leaderboard")
}

func (s *PostgresStore) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	stats := &model.GlobalStats{LabelCounts: make(map[model.Label]int)}

	var avg *float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT CASE WHEN domain <> '' THEN domain END), AVG(stylistic_index)
		FROM scans`).
		Scan(&stats.TotalScans, &stats.TotalDomains, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: global stats")
	}
	if avg != nil {
		stats.AvgIndex = *avg
	}

	rows, err := s.pool.Query(ctx, `SELECT label, COUNT(*) FROM scans GROUP BY label`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: global label counts")
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label count")
		}
		stats.LabelCounts[model.Label(label)] = n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate label counts")
}

func (s *PostgresStore) PatternStats(ctx context.Context) ([]model.PatternStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pattern_id, category, AVG(normalized_score), COUNT(*)
		FROM pattern_scores
		GROUP BY pattern_id, category
		ORDER BY AVG(normalized_score) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pattern stats")
	}
	defer rows.Close()

	var out []model.PatternStat
	for rows.Next() {
		var st model.PatternStat
		var cat string
		if err := rows.Scan(&st.PatternID, &cat, &st.AvgScore, &st.Occurrences); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern stat")
		}
		st.Category = model.Category(cat)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate pattern stats")
}

func (s *PostgresStore) PatternVersionSummary(ctx context.Context) ([]model.PatternVersionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pattern_id, MAX(pattern_version), COUNT(DISTINCT scan_id)
		FROM pattern_scores
		GROUP BY pattern_id
		ORDER BY pattern_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pattern version summary")
	}
	defer rows.Close()

	var out []model.PatternVersionSummary
	for rows.Next() {
		var sum model.PatternVersionSummary
		if err := rows.Scan(&sum.PatternID, &sum.MaxStoredVersion, &sum.ScanCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate version summary")
}

func scanPgScanRow(row pgx.Row) (*model.ScanRow, error) {
	var sr model.ScanRow
	var u, f *string
	var label string
	var published *time.Time

	err := row.Scan(&sr.ID, &u, &f, &sr.Domain, &sr.Title, &sr.WordCount,
		&sr.Index, &label, &published, &sr.ScannedAt)
	if err != nil {
		return nil, err
	}

	sr.Identity = model.Identity{URL: deref(u), FilePath: deref(f)}
	sr.Label = model.Label(label)
	sr.PublishedDate = published
	return &sr, nil
}
