package pipeline

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// FetchMetrics counts outcomes across the fetch stages. All fields are
// updated atomically by the stage workers.
type FetchMetrics struct {
	Ingested   atomic.Int64 // domains accepted from the input list
	Skipped    atomic.Int64 // already present in the store (resume)
	Resolved   atomic.Int64 // DNS lookups that yielded addresses
	DNSFailed  atomic.Int64
	Fetched    atomic.Int64 // HTTP attempts that got any response
	HTTPFailed atomic.Int64
	Blocked    atomic.Int64
	Persisted  atomic.Int64 // rows committed by the writer
	Batches    atomic.Int64 // transactions committed
}

// Fields renders the counters for a logrus summary line.
func (m *FetchMetrics) Fields() logrus.Fields {
	return logrus.Fields{
		"ingested":    m.Ingested.Load(),
		"skipped":     m.Skipped.Load(),
		"resolved":    m.Resolved.Load(),
		"dns_failed":  m.DNSFailed.Load(),
		"fetched":     m.Fetched.Load(),
		"http_failed": m.HTTPFailed.Load(),
		"blocked":     m.Blocked.Load(),
		"persisted":   m.Persisted.Load(),
		"batches":     m.Batches.Load(),
	}
}

// ClassifyMetrics counts decisions per classification layer.
type ClassifyMetrics struct {
	Total     atomic.Int64
	Rule      atomic.Int64
	TLD       atomic.Int64 // subset of Rule decided by suffix alone
	CacheHits atomic.Int64
	LLM       atomic.Int64
	Errors    atomic.Int64
	Persisted atomic.Int64
}

func (m *ClassifyMetrics) Fields() logrus.Fields {
	return logrus.Fields{
		"total":      m.Total.Load(),
		"rule":       m.Rule.Load(),
		"tld":        m.TLD.Load(),
		"cache_hits": m.CacheHits.Load(),
		"llm":        m.LLM.Load(),
		"errors":     m.Errors.Load(),
		"persisted":  m.Persisted.Load(),
	}
}
