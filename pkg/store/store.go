package store

import (
	"context"
	"io"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
)

// DomainRecord is a fetched domain as read back from the store, with
// the row id the classification tables reference.
type DomainRecord struct {
	ID     int64
	Result models.FetchResult
}

// ClassifiedDomain pairs a classification decision with the domain row
// it belongs to.
type ClassifiedDomain struct {
	DomainID int64
	Result   models.ClassificationResult
}

// Summary is the stats rollup shown by the stats subcommand.
type Summary struct {
	TotalDomains     int64
	Classified       int64
	Unclassified     int64
	FetchStatusCount map[string]int64
	MethodCount      map[string]int64
	CategoryCount    map[string]int64
	HashCacheEntries int64
}

// Store is the durable home of fetch results, classification decisions
// and the content fingerprint cache. Implementations must make
// BatchUpsertDomains and BatchInsertClassifications transactional: a
// batch is visible entirely or not at all.
type Store interface {
	EnsureSchema(ctx context.Context) error

	// Fetch stage
	BatchUpsertDomains(ctx context.Context, results []models.FetchResult) error
	LoadExistingDomains(ctx context.Context) (map[string]struct{}, error)

	// Classification stage
	GetDomainsNeedingClassification(ctx context.Context, limit int) ([]DomainRecord, error)
	BatchInsertClassifications(ctx context.Context, items []ClassifiedDomain) error
	LoadHashCache(ctx context.Context) ([]models.HashCacheEntry, error)

	// Reporting
	Stats(ctx context.Context) (*Summary, error)
	ExportCSV(ctx context.Context, w io.Writer) (int64, error)

	Close() error
}
