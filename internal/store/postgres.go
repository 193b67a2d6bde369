package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/firstrung/internal/model"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS postings (
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
	posted_at           TIMESTAMPTZ NOT NULL,
	scraper_run_id      TEXT NOT NULL DEFAULT '',
	company_profile_url TEXT NOT NULL DEFAULT '',
	is_active           BOOLEAN NOT NULL DEFAULT TRUE,
	last_seen_at        TIMESTAMPTZ NOT NULL,
	freshness_tier      TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_postings_source ON postings (source, last_seen_at)`

// xmax is zero only for a row this statement inserted.
const postgresUpsert = `INSERT INTO postings (
	job_hash, title, company, location, job_url, description, categories,
	experience_required, work_environment, source, posted_at, scraper_run_id,
	company_profile_url, is_active, last_seen_at, freshness_tier, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14, $15, $16)
ON CONFLICT (job_hash) DO UPDATE SET
	title               = EXCLUDED.title,
	company             = EXCLUDED.company,
	location            = EXCLUDED.location,
	job_url             = EXCLUDED.job_url,
	description         = EXCLUDED.description,
	categories          = EXCLUDED.categories,
	experience_required = EXCLUDED.experience_required,
	work_environment    = EXCLUDED.work_environment,
	source              = EXCLUDED.source,
	scraper_run_id      = EXCLUDED.scraper_run_id,
	company_profile_url = EXCLUDED.company_profile_url,
	is_active           = TRUE,
	last_seen_at        = GREATEST(postings.last_seen_at, EXCLUDED.last_seen_at)
RETURNING (xmax = 0)`

// PostgresStore persists postings in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the postings table exists.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating postings table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// UpsertPosting writes p keyed by its identity hash in a single statement.
func (s *PostgresStore) UpsertPosting(ctx context.Context, p model.Posting) (inserted bool, err error) {
	if p.IdentityHash == "" {
		return false, errors.New("posting has no identity hash")
	}
	err = s.pool.QueryRow(ctx, postgresUpsert,
		p.IdentityHash, p.Title, p.Company, p.Location, p.CanonicalURL, p.Description,
		p.Categories(), p.ExperienceRequired, p.WorkEnvironment, p.Source,
		p.PostedAt.UTC(), p.SourceRunID, p.CompanyURL,
		p.LastSeenAt.UTC(), string(p.FreshnessTier), p.FirstSeenAt.UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting %s: %w", p.IdentityHash, err)
	}
	return inserted, nil
}

// GetPosting returns the stored posting for hash, or ok=false when absent.
func (s *PostgresStore) GetPosting(ctx context.Context, hash string) (p model.Posting, ok bool, err error) {
	row := s.pool.QueryRow(ctx, "SELECT "+postingColumns+" FROM postings WHERE job_hash = $1", hash)
	p, err = scanPgPosting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Posting{}, false, nil
	}
	if err != nil {
		return model.Posting{}, false, fmt.Errorf("getting posting %s: %w", hash, err)
	}
	return p, true, nil
}

// ListPostings returns the most recently seen postings, newest first. An
// empty source lists every source. limit <= 0 means no limit.
func (s *PostgresStore) ListPostings(ctx context.Context, source string, limit int) ([]model.Posting, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+postingColumns+" FROM postings WHERE ($1 = '' OR source = $1) ORDER BY last_seen_at DESC, title LIMIT $2",
		source, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanPgPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("listing postings: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSources returns the distinct sources that have stored postings.
func (s *PostgresStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT source FROM postings ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return out, nil
}

// MarkInactive flags every active posting of source that runID did not touch.
func (s *PostgresStore) MarkInactive(ctx context.Context, source, runID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE postings SET is_active = FALSE WHERE source = $1 AND scraper_run_id <> $2 AND is_active",
		source, runID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking %s postings inactive: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// Cleanup deletes inactive postings last seen before now minus olderThan.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM postings WHERE NOT is_active AND last_seen_at < $1",
		time.Now().Add(-olderThan).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up postings older than %v: %w", olderThan, err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgPosting(row pgx.Row) (model.Posting, error) {
	var (
		p                model.Posting
		categories, tier string
	)
	err := row.Scan(
		&p.IdentityHash, &p.Title, &p.Company, &p.Location, &p.CanonicalURL, &p.Description,
		&categories, &p.ExperienceRequired, &p.WorkEnvironment, &p.Source, &p.PostedAt,
		&p.SourceRunID, &p.CompanyURL, &p.IsActive, &p.LastSeenAt, &tier, &p.FirstSeenAt,
	)
	if err != nil {
		return model.Posting{}, err
	}
	p.Tags = model.ParseCategories(categories)
	p.FreshnessTier = model.FreshnessTier(tier)
	return p, nil
}
