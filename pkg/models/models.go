package models

import (
	"strings"
	"time"
)

// NormalizeDomain lowercases a raw domain string and strips any scheme,
// path, port and trailing dot, yielding the canonical FQDN used as the
// identity key throughout the pipeline. Returns "" for unusable input.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	if d == "" || !strings.Contains(d, ".") {
		return ""
	}
	return d
}

// DNSResult holds the outcome of the DNS resolution stage for one domain
type DNSResult struct {
	Rcode Rcode    `json:"rcode"`
	A     []string `json:"a,omitempty"`     // IPv4 addresses
	AAAA  []string `json:"aaaa,omitempty"`  // IPv6 addresses
	CNAME string   `json:"cname,omitempty"` // Canonical name, if aliased
}

// HasAddresses reports whether the lookup yielded any usable address.
// A NOERROR answer with no addresses is treated as a failure upstream.
func (d DNSResult) HasAddresses() bool {
	return len(d.A) > 0 || len(d.AAAA) > 0
}

// HTTPResult holds the outcome of the HTTP fetch stage for one domain
type HTTPResult struct {
	Status          int    `json:"status"` // 0 = no response obtained
	FinalURL        string `json:"final_url,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	Title           string `json:"title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	BodySnippet     string `json:"body_snippet,omitempty"`
	Blocked         bool   `json:"blocked,omitempty"`
	BlockReason     string `json:"block_reason,omitempty"`
	Error           string `json:"error,omitempty"` // Error tag (timeout, connect_error, ...)
}

// FetchResult is the terminal record of one domain's trip through the
// DNS and HTTP stages. Exactly one FetchResult exists per domain per run.
type FetchResult struct {
	FQDN      string     `json:"fqdn"`
	DNS       DNSResult  `json:"dns"`
	HTTP      HTTPResult `json:"http"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Status derives the fetch status from the DNS and HTTP outcomes. It is
// never stored independently, so the derivation cannot drift from the
// underlying signals.
func (r FetchResult) Status() FetchStatus {
	switch {
	case r.DNS.Rcode != RcodeNoError || !r.DNS.HasAddresses():
		return FetchStatusDNSFailed
	case r.HTTP.Blocked:
		return FetchStatusBlocked
	case r.HTTP.Status == 0:
		return FetchStatusHTTPFailed
	default:
		return FetchStatusSuccess
	}
}

// ClassificationResult is the terminal record of one domain's trip
// through the layered classification engine.
type ClassificationResult struct {
	FQDN         string    `json:"fqdn"`
	Method       Method    `json:"method"`
	Category     string    `json:"category"`
	Confidence   float64   `json:"confidence"`
	Reason       string    `json:"reason"`
	ContentHash  string    `json:"content_hash,omitempty"` // Fingerprint hash, when one was computed
	ClassifiedAt time.Time `json:"classified_at"`
}

// HashCacheEntry is one row of the content fingerprint cache. Two domains
// hashing to the same key are deliberately given the same category.
type HashCacheEntry struct {
	ContentHash string    `json:"content_hash"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	ExampleFQDN string    `json:"example_fqdn"` // First domain that produced this fingerprint
	CachedAt    time.Time `json:"cached_at"`
}

// ResolvedDomain is the unit handed from the DNS stage to the HTTP
// stage: a domain that resolved successfully together with its addresses.
type ResolvedDomain struct {
	FQDN string
	DNS  DNSResult
}
