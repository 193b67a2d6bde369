package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/firstrung/internal/model"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS postings (
	job_hash            TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	company             TEXT NOT NULL,
	location            TEXT NOT NULL DEFAULT '',
	job_url             TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	categories          TEXT NOT NULL DEFAULT '',
	experience_required TEXT NOT NULL DEFAULT '',
	work_environment    TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL,
	posted_at           TEXT NOT NULL,
	scraper_run_id      TEXT NOT NULL DEFAULT '',
	company_profile_url TEXT NOT NULL DEFAULT '',
	is_active           INTEGER NOT NULL DEFAULT 1,
	last_seen_at        TEXT NOT NULL,
	freshness_tier      TEXT NOT NULL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_postings_source ON postings (source, last_seen_at);`

// Descriptive fields follow the latest sighting; created_at, posted_at and
// freshness_tier keep their first values and last_seen_at never moves back.
const sqliteUpsert = `INSERT INTO postings (
	job_hash, title, company, location, job_url, description, categories,
	experience_required, work_environment, source, posted_at, scraper_run_id,
	company_profile_url, is_active, last_seen_at, freshness_tier, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
ON CONFLICT (job_hash) DO UPDATE SET
	title               = excluded.title,
	company             = excluded.company,
	location            = excluded.location,
	job_url             = excluded.job_url,
	description         = excluded.description,
	categories          = excluded.categories,
	experience_required = excluded.experience_required,
	work_environment    = excluded.work_environment,
	source              = excluded.source,
	scraper_run_id      = excluded.scraper_run_id,
	company_profile_url = excluded.company_profile_url,
	is_active           = 1,
	last_seen_at        = MAX(postings.last_seen_at, excluded.last_seen_at)`

const postingColumns = `job_hash, title, company, location, job_url, description, categories,
	experience_required, work_environment, source, posted_at, scraper_run_id,
	company_profile_url, is_active, last_seen_at, freshness_tier, created_at`

// SQLiteStore persists postings in a SQLite database keyed by job_hash.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the postings table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite allows one writer; serialize on a single connection.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating postings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// UpsertPosting writes p keyed by its identity hash. inserted is true when no
// row with that hash existed before.
func (s *SQLiteStore) UpsertPosting(ctx context.Context, p model.Posting) (inserted bool, err error) {
	if p.IdentityHash == "" {
		return false, errors.New("posting has no identity hash")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upserting %s: begin: %w", p.IdentityHash, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM postings WHERE job_hash = ?", p.IdentityHash).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		inserted = true
	case err != nil:
		return false, fmt.Errorf("upserting %s: lookup: %w", p.IdentityHash, err)
	}

	_, err = tx.ExecContext(ctx, sqliteUpsert,
		p.IdentityHash, p.Title, p.Company, p.Location, p.CanonicalURL, p.Description,
		p.Categories(), p.ExperienceRequired, p.WorkEnvironment, p.Source,
		formatTime(p.PostedAt), p.SourceRunID, p.CompanyURL,
		formatTime(p.LastSeenAt), string(p.FreshnessTier), formatTime(p.FirstSeenAt),
	)
	if err != nil {
		return false, fmt.Errorf("upserting %s: %w", p.IdentityHash, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upserting %s: commit: %w", p.IdentityHash, err)
	}
	return inserted, nil
}

// GetPosting returns the stored posting for hash, or ok=false when absent.
func (s *SQLiteStore) GetPosting(ctx context.Context, hash string) (p model.Posting, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postingColumns+" FROM postings WHERE job_hash = ?", hash)
	p, err = scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, false, nil
	}
	if err != nil {
		return model.Posting{}, false, fmt.Errorf("getting posting %s: %w", hash, err)
	}
	return p, true, nil
}

// ListPostings returns the most recently seen postings, newest first. An
// empty source lists every source. limit <= 0 means no limit.
func (s *SQLiteStore) ListPostings(ctx context.Context, source string, limit int) ([]model.Posting, error) {
	if limit <= 0 {
		limit = -1
	}
	query := "SELECT " + postingColumns + " FROM postings WHERE (? = '' OR source = ?) ORDER BY last_seen_at DESC, title LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("listing postings: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSources returns the distinct sources that have stored postings.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT source FROM postings ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("listing sources: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// MarkInactive flags every active posting of source that runID did not touch.
func (s *SQLiteStore) MarkInactive(ctx context.Context, source, runID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE postings SET is_active = 0 WHERE source = ? AND scraper_run_id <> ? AND is_active = 1",
		source, runID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking %s postings inactive: %w", source, err)
	}
	return res.RowsAffected()
}

// Cleanup deletes inactive postings last seen before now minus olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx, "DELETE FROM postings WHERE is_active = 0 AND last_seen_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up postings older than %v: %w", olderThan, err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored postings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postings").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting postings: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(sc scanner) (model.Posting, error) {
	var (
		p                             model.Posting
		categories, tier              string
		postedAt, lastSeen, firstSeen string
		active                        int
	)
	err := sc.Scan(
		&p.IdentityHash, &p.Title, &p.Company, &p.Location, &p.CanonicalURL, &p.Description,
		&categories, &p.ExperienceRequired, &p.WorkEnvironment, &p.Source, &postedAt,
		&p.SourceRunID, &p.CompanyURL, &active, &lastSeen, &tier, &firstSeen,
	)
	if err != nil {
		return model.Posting{}, err
	}
	p.Tags = model.ParseCategories(categories)
	p.FreshnessTier = model.FreshnessTier(tier)
	p.IsActive = active != 0
	p.PostedAt = parseTime(postedAt)
	p.LastSeenAt = parseTime(lastSeen)
	p.FirstSeenAt = parseTime(firstSeen)
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
