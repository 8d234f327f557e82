package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PostgresStore{db: db}, mock, func() { _ = db.Close() }
}

func fetchedDomain(fqdn string) models.FetchResult {
	return models.FetchResult{
		FQDN:      fqdn,
		DNS:       models.DNSResult{Rcode: models.RcodeNoError, A: []string{"10.0.0.1"}},
		HTTP:      models.HTTPResult{Status: 200, ContentType: "text/html", Title: "t"},
		FetchedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnsureSchema(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(schemaLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS domains").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchUpsertDomains_SingleTransaction(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO domains")
	prep.ExpectExec().
		WithArgs("a.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "success", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("b.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "success", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := s.BatchUpsertDomains(context.Background(), []models.FetchResult{
		fetchedDomain("a.com"), fetchedDomain("b.com"),
	})
	if err != nil {
		t.Fatalf("BatchUpsertDomains() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchUpsertDomains_RollsBackOnFailure(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO domains")
	prep.ExpectExec().
		WithArgs("a.com", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "success", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.BatchUpsertDomains(context.Background(), []models.FetchResult{fetchedDomain("a.com")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, utils.ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchUpsertDomains_EmptyIsNoop(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	if err := s.BatchUpsertDomains(context.Background(), nil); err != nil {
		t.Fatalf("BatchUpsertDomains(nil) error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadExistingDomains(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"fqdn"}).AddRow("a.com").AddRow("b.com")
	mock.ExpectQuery("SELECT fqdn FROM domains").WillReturnRows(rows)

	existing, err := s.LoadExistingDomains(context.Background())
	if err != nil {
		t.Fatalf("LoadExistingDomains() error = %v", err)
	}
	if len(existing) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(existing))
	}
	if _, ok := existing["a.com"]; !ok {
		t.Error("a.com missing from skip set")
	}
}

func TestGetDomainsNeedingClassification(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	fetchedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "fqdn", "dns_data", "http_data", "fetched_at"}).
		AddRow(int64(7), "a.com", []byte(`{"rcode":"NOERROR","a":["10.0.0.1"]}`), []byte(`{"status":200,"title":"Hello"}`), fetchedAt)
	mock.ExpectQuery("WHERE classified = FALSE").WillReturnRows(rows)

	records, err := s.GetDomainsNeedingClassification(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetDomainsNeedingClassification() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != 7 {
		t.Errorf("ID = %d, want 7", records[0].ID)
	}
	if records[0].Result.DNS.Rcode != models.RcodeNoError {
		t.Errorf("Rcode = %s, want NOERROR", records[0].Result.DNS.Rcode)
	}
	if records[0].Result.HTTP.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", records[0].Result.HTTP.Title)
	}
}

func TestBatchInsertClassifications_LLMSeedsCache(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	item := ClassifiedDomain{
		DomainID: 7,
		Result: models.ClassificationResult{
			FQDN:         "a.com",
			Method:       models.MethodLLM,
			Category:     "Shopping",
			Confidence:   0.9,
			Reason:       "storefront",
			ContentHash:  strings.Repeat("ab", 32),
			ClassifiedAt: now,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO classifications").
		WithArgs(int64(7), "a.com", "llm", "Shopping", 0.9, "storefront", sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE domains SET classified").
		WithArgs(int64(7), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO content_hash_cache").
		WithArgs(item.Result.ContentHash, "Shopping", 0.9, "a.com", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.BatchInsertClassifications(context.Background(), []ClassifiedDomain{item}); err != nil {
		t.Fatalf("BatchInsertClassifications() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchInsertClassifications_CacheHitBumpsCounter(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	item := ClassifiedDomain{
		DomainID: 8,
		Result: models.ClassificationResult{
			FQDN:         "b.com",
			Method:       models.MethodHashCache,
			Category:     "Shopping",
			Confidence:   0.9,
			Reason:       "content hash match (similar to a.com)",
			ContentHash:  strings.Repeat("ab", 32),
			ClassifiedAt: now,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO classifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE domains SET classified").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_hash_cache SET hit_count").
		WithArgs(item.Result.ContentHash).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.BatchInsertClassifications(context.Background(), []ClassifiedDomain{item}); err != nil {
		t.Fatalf("BatchInsertClassifications() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBatchInsertClassifications_RuleSkipsCache(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	item := ClassifiedDomain{
		DomainID: 9,
		Result: models.ClassificationResult{
			FQDN:         "dead.com",
			Method:       models.MethodRule,
			Category:     "Unreachable",
			Confidence:   0.99,
			Reason:       "rule: dns rcode=NXDOMAIN",
			ClassifiedAt: now,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO classifications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE domains SET classified").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.BatchInsertClassifications(context.Background(), []ClassifiedDomain{item}); err != nil {
		t.Fatalf("BatchInsertClassifications() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadHashCache(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	cachedAt := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"content_hash", "category", "confidence", "example_fqdn", "cached_at"}).
		AddRow("aaa", "News", 0.8, "news.com", cachedAt)
	mock.ExpectQuery("FROM content_hash_cache").WillReturnRows(rows)

	entries, err := s.LoadHashCache(context.Background())
	if err != nil {
		t.Fatalf("LoadHashCache() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Category != "News" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestStats(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("FROM domains").
		WillReturnRows(sqlmock.NewRows([]string{"count", "classified"}).AddRow(int64(10), int64(6)))
	mock.ExpectQuery("GROUP BY fetch_status").
		WillReturnRows(sqlmock.NewRows([]string{"fetch_status", "count"}).AddRow("success", int64(8)).AddRow("dns_failed", int64(2)))
	mock.ExpectQuery("GROUP BY method").
		WillReturnRows(sqlmock.NewRows([]string{"method", "count"}).AddRow("rule", int64(4)).AddRow("llm", int64(2)))
	mock.ExpectQuery("GROUP BY category").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow("Shopping", int64(3)))
	mock.ExpectQuery("FROM content_hash_cache").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	summary, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if summary.TotalDomains != 10 || summary.Classified != 6 || summary.Unclassified != 4 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if summary.FetchStatusCount["success"] != 8 {
		t.Errorf("success count = %d, want 8", summary.FetchStatusCount["success"])
	}
	if summary.HashCacheEntries != 5 {
		t.Errorf("cache entries = %d, want 5", summary.HashCacheEntries)
	}
}

func TestExportCSV(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	fetchedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"fqdn", "fetch_status", "method", "category", "confidence", "reason", "fetched_at"}).
		AddRow("a.com", "success", "llm", "Shopping", 0.9, "storefront", fetchedAt).
		AddRow("dead.com", "dns_failed", "rule", "Unreachable", 0.99, "rule: dns rcode=NXDOMAIN", fetchedAt)
	mock.ExpectQuery("LEFT JOIN LATERAL").WillReturnRows(rows)

	var buf bytes.Buffer
	written, err := s.ExportCSV(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "fqdn,fetch_status") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "a.com") || !strings.Contains(lines[1], "Shopping") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
