package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"
)

// schemaLockKey serializes bootstrap DDL across concurrent process starts.
const schemaLockKey = int64(2026052301)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS domains (
	id BIGSERIAL PRIMARY KEY,
	fqdn TEXT NOT NULL UNIQUE,
	dns_data JSONB,
	http_data JSONB,
	fetched_at TIMESTAMPTZ NOT NULL,
	fetch_status TEXT NOT NULL DEFAULT 'success',
	fetch_error TEXT,
	classified BOOLEAN NOT NULL DEFAULT FALSE,
	classified_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classifications (
	id BIGSERIAL PRIMARY KEY,
	domain_id BIGINT NOT NULL REFERENCES domains(id) ON DELETE CASCADE,
	fqdn TEXT NOT NULL,
	method TEXT NOT NULL,
	category TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	reason TEXT,
	content_hash TEXT,
	classified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS content_hash_cache (
	content_hash TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	example_fqdn TEXT NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	hit_count INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_domains_classified ON domains(classified);
CREATE INDEX IF NOT EXISTS idx_classifications_domain_id ON classifications(domain_id);
CREATE INDEX IF NOT EXISTS idx_classifications_fqdn ON classifications(fqdn);
CREATE INDEX IF NOT EXISTS idx_classifications_content_hash ON classifications(content_hash);
`

// PostgresStore implements Store on PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: sql open: %v", utils.ErrDatabase, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: db ping: %v", utils.ErrDatabase, err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing connection (used by tests).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %v", utils.ErrDatabase, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("%w: acquire schema lock: %v", utils.ErrDatabase, err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("%w: execute schema ddl: %v", utils.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit schema tx: %v", utils.ErrDatabase, err)
	}
	return nil
}

// BatchUpsertDomains writes one batch of fetch results in a single
// transaction. Refetching a known fqdn overwrites its data and resets
// the classified flag so the new content gets reclassified.
func (s *PostgresStore) BatchUpsertDomains(ctx context.Context, results []models.FetchResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch tx: %v", utils.ErrDatabase, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO domains (fqdn, dns_data, http_data, fetched_at, fetch_status, fetch_error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (fqdn) DO UPDATE SET
	dns_data = EXCLUDED.dns_data,
	http_data = EXCLUDED.http_data,
	fetched_at = EXCLUDED.fetched_at,
	fetch_status = EXCLUDED.fetch_status,
	fetch_error = EXCLUDED.fetch_error,
	classified = FALSE,
	updated_at = now()
`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %v", utils.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, r := range results {
		dnsData, err := json.Marshal(r.DNS)
		if err != nil {
			return fmt.Errorf("%w: marshal dns data: %v", utils.ErrDatabase, err)
		}
		httpData, err := json.Marshal(r.HTTP)
		if err != nil {
			return fmt.Errorf("%w: marshal http data: %v", utils.ErrDatabase, err)
		}

		var fetchError sql.NullString
		if r.HTTP.Error != "" {
			fetchError = sql.NullString{String: r.HTTP.Error, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, r.FQDN, dnsData, httpData, r.FetchedAt, r.Status().String(), fetchError); err != nil {
			return fmt.Errorf("%w: upsert domain %s: %v", utils.ErrDatabase, r.FQDN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch tx: %v", utils.ErrDatabase, err)
	}
	return nil
}

// LoadExistingDomains returns the set of fqdns already fetched, used to
// skip completed work when a run resumes.
func (s *PostgresStore) LoadExistingDomains(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fqdn FROM domains`)
	if err != nil {
		return nil, fmt.Errorf("%w: load existing domains: %v", utils.ErrDatabase, err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var fqdn string
		if err := rows.Scan(&fqdn); err != nil {
			return nil, fmt.Errorf("%w: scan fqdn: %v", utils.ErrDatabase, err)
		}
		existing[fqdn] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fqdns: %v", utils.ErrDatabase, err)
	}
	return existing, nil
}

// GetDomainsNeedingClassification returns up to limit unclassified
// domains in insertion order. limit <= 0 means no limit.
func (s *PostgresStore) GetDomainsNeedingClassification(ctx context.Context, limit int) ([]DomainRecord, error) {
	query := `
SELECT id, fqdn, dns_data, http_data, fetched_at
FROM domains
WHERE classified = FALSE
ORDER BY id`
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query unclassified: %v", utils.ErrDatabase, err)
	}
	defer rows.Close()

	var records []DomainRecord
	for rows.Next() {
		var (
			rec      DomainRecord
			dnsData  []byte
			httpData []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Result.FQDN, &dnsData, &httpData, &rec.Result.FetchedAt); err != nil {
			return nil, fmt.Errorf("%w: scan domain row: %v", utils.ErrDatabase, err)
		}
		if len(dnsData) > 0 {
			if err := json.Unmarshal(dnsData, &rec.Result.DNS); err != nil {
				return nil, fmt.Errorf("%w: unmarshal dns data for %s: %v", utils.ErrDatabase, rec.Result.FQDN, err)
			}
		}
		if len(httpData) > 0 {
			if err := json.Unmarshal(httpData, &rec.Result.HTTP); err != nil {
				return nil, fmt.Errorf("%w: unmarshal http data for %s: %v", utils.ErrDatabase, rec.Result.FQDN, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate domain rows: %v", utils.ErrDatabase, err)
	}
	return records, nil
}

// BatchInsertClassifications persists one batch of decisions in a
// single transaction: classification rows, the classified flag on each
// domain, and fingerprint cache entries for fresh inference decisions.
func (s *PostgresStore) BatchInsertClassifications(ctx context.Context, items []ClassifiedDomain) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch tx: %v", utils.ErrDatabase, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		r := item.Result

		var contentHash sql.NullString
		if r.ContentHash != "" {
			contentHash = sql.NullString{String: r.ContentHash, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO classifications (domain_id, fqdn, method, category, confidence, reason, content_hash, classified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.DomainID, r.FQDN, r.Method.String(), r.Category, r.Confidence, r.Reason, contentHash, r.ClassifiedAt,
		); err != nil {
			return fmt.Errorf("%w: insert classification %s: %v", utils.ErrDatabase, r.FQDN, err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE domains SET classified = TRUE, classified_at = $2, updated_at = now() WHERE id = $1`,
			item.DomainID, r.ClassifiedAt,
		); err != nil {
			return fmt.Errorf("%w: mark classified %s: %v", utils.ErrDatabase, r.FQDN, err)
		}

		// Only fresh inference decisions extend the dedup cache; cache
		// hits bump the hit counter instead.
		switch r.Method {
		case models.MethodLLM:
			if r.ContentHash != "" {
				if _, err := tx.ExecContext(ctx, `
INSERT INTO content_hash_cache (content_hash, category, confidence, example_fqdn, cached_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (content_hash) DO NOTHING`,
					r.ContentHash, r.Category, r.Confidence, r.FQDN, r.ClassifiedAt,
				); err != nil {
					return fmt.Errorf("%w: upsert hash cache %s: %v", utils.ErrDatabase, r.FQDN, err)
				}
			}
		case models.MethodHashCache:
			if r.ContentHash != "" {
				if _, err := tx.ExecContext(ctx, `
UPDATE content_hash_cache SET hit_count = hit_count + 1 WHERE content_hash = $1`,
					r.ContentHash,
				); err != nil {
					return fmt.Errorf("%w: bump hash cache hit %s: %v", utils.ErrDatabase, r.FQDN, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch tx: %v", utils.ErrDatabase, err)
	}
	return nil
}

// LoadHashCache returns every persisted fingerprint cache entry, used
// to seed the in-memory cache at classification start.
func (s *PostgresStore) LoadHashCache(ctx context.Context) ([]models.HashCacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT content_hash, category, confidence, example_fqdn, cached_at FROM content_hash_cache`)
	if err != nil {
		return nil, fmt.Errorf("%w: load hash cache: %v", utils.ErrDatabase, err)
	}
	defer rows.Close()

	var entries []models.HashCacheEntry
	for rows.Next() {
		var e models.HashCacheEntry
		if err := rows.Scan(&e.ContentHash, &e.Category, &e.Confidence, &e.ExampleFQDN, &e.CachedAt); err != nil {
			return nil, fmt.Errorf("%w: scan hash cache row: %v", utils.ErrDatabase, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate hash cache rows: %v", utils.ErrDatabase, err)
	}
	return entries, nil
}

// Stats gathers the rollup counters for the stats subcommand.
func (s *PostgresStore) Stats(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		FetchStatusCount: make(map[string]int64),
		MethodCount:      make(map[string]int64),
		CategoryCount:    make(map[string]int64),
	}

	row := s.db.QueryRowContext(ctx, `
SELECT count(*), count(*) FILTER (WHERE classified) FROM domains`)
	if err := row.Scan(&summary.TotalDomains, &summary.Classified); err != nil {
		return nil, fmt.Errorf("%w: scan domain counts: %v", utils.ErrDatabase, err)
	}
	summary.Unclassified = summary.TotalDomains - summary.Classified

	if err := s.countInto(ctx, summary.FetchStatusCount,
		`SELECT fetch_status, count(*) FROM domains GROUP BY fetch_status`); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx, summary.MethodCount,
		`SELECT method, count(*) FROM classifications GROUP BY method`); err != nil {
		return nil, err
	}
	if err := s.countInto(ctx, summary.CategoryCount,
		`SELECT category, count(*) FROM classifications GROUP BY category`); err != nil {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `SELECT count(*) FROM content_hash_cache`)
	if err := row.Scan(&summary.HashCacheEntries); err != nil {
		return nil, fmt.Errorf("%w: scan hash cache count: %v", utils.ErrDatabase, err)
	}

	return summary, nil
}

func (s *PostgresStore) countInto(ctx context.Context, dest map[string]int64, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: count query: %v", utils.ErrDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("%w: scan count row: %v", utils.ErrDatabase, err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate count rows: %v", utils.ErrDatabase, err)
	}
	return nil
}

// ExportCSV streams every domain with its most recent classification as
// CSV and returns the number of data rows written.
func (s *PostgresStore) ExportCSV(ctx context.Context, w io.Writer) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT d.fqdn, d.fetch_status, COALESCE(c.method, ''), COALESCE(c.category, ''),
       COALESCE(c.confidence, 0), COALESCE(c.reason, ''), d.fetched_at
FROM domains d
LEFT JOIN LATERAL (
	SELECT method, category, confidence, reason
	FROM classifications
	WHERE domain_id = d.id
	ORDER BY id DESC
	LIMIT 1
) c ON TRUE
ORDER BY d.id`)
	if err != nil {
		return 0, fmt.Errorf("%w: export query: %v", utils.ErrDatabase, err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fqdn", "fetch_status", "method", "category", "confidence", "reason", "fetched_at"}); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	var written int64
	for rows.Next() {
		var (
			fqdn, fetchStatus, method, category, reason string
			confidence                                  float64
			fetchedAt                                   time.Time
		)
		if err := rows.Scan(&fqdn, &fetchStatus, &method, &category, &confidence, &reason, &fetchedAt); err != nil {
			return written, fmt.Errorf("%w: scan export row: %v", utils.ErrDatabase, err)
		}
		record := []string{
			fqdn, fetchStatus, method, category,
			strconv.FormatFloat(confidence, 'f', 4, 64),
			reason,
			fetchedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return written, fmt.Errorf("write csv record: %w", err)
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("%w: iterate export rows: %v", utils.ErrDatabase, err)
	}

	cw.Flush()
	return written, cw.Error()
}
