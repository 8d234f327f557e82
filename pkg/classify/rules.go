package classify

import (
	"fmt"
	"strings"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
)

// Keyword fingerprints matched against the normalized title+snippet.
var (
	parkedPatterns = []string{
		"domain for sale", "buy this domain", "this domain is for sale",
		"sedo", "afternic", "dan.com", "bodis", "parkingcrew",
		"is parked", "domain parked", "parked domain",
	}

	blockPatterns = []string{
		"access denied", "request blocked", "unusual traffic", "verify you are human",
		"captcha", "challenge", "checking your browser", "ddos protection",
		"attention required", "cloudflare", "akamai", "imperva", "incapsula",
	}

	notFoundPatterns = []string{
		"not found", "404", "page not found", "doesn't exist", "does not exist",
	}
)

var (
	unreachableStatuses = map[int]bool{0: true, 408: true, 520: true, 521: true, 522: true, 523: true, 524: true}
	blockedStatuses     = map[int]bool{403: true, 429: true}
	notFoundStatuses    = map[int]bool{404: true, 410: true}
)

// RuleEngine is the deterministic first classification layer. Rules are
// evaluated in a fixed order and the first hit wins; a domain that
// matches no rule falls through to fingerprint dedup and inference.
type RuleEngine struct {
	enableTLD bool
}

// NewRuleEngine creates a RuleEngine. enableTLD toggles the suffix
// rules; all other rules are always active.
func NewRuleEngine(enableTLD bool) *RuleEngine {
	return &RuleEngine{enableTLD: enableTLD}
}

// Evaluate runs the ordered rules against a fetched domain.
//
// Order: TLD suffix, DNS unreachable, HTTP unreachable, blocked/WAF,
// not-found, parked, non-HTML content buckets.
func (e *RuleEngine) Evaluate(doc models.FetchResult) (Match, bool) {
	if e.enableTLD {
		if m, ok := ClassifyByTLD(doc.FQDN); ok {
			return m, true
		}
	}

	if doc.DNS.Rcode == models.RcodeNXDomain || doc.DNS.Rcode == models.RcodeServFail {
		return Match{"Unreachable", 0.99, fmt.Sprintf("rule: dns rcode=%s", doc.DNS.Rcode)}, true
	}
	if !doc.DNS.HasAddresses() && doc.DNS.CNAME == "" {
		return Match{"Unreachable", 0.95, "rule: no A/AAAA/CNAME"}, true
	}

	status := doc.HTTP.Status
	if unreachableStatuses[status] {
		return Match{"Unreachable", 0.95, fmt.Sprintf("rule: http status=%d", status)}, true
	}

	if doc.HTTP.Blocked {
		return Match{"Blocked", 0.98, "rule: fetcher blocked=true"}, true
	}

	combo := normText(doc.HTTP.Title) + " " + normText(doc.HTTP.BodySnippet)

	if blockedStatuses[status] && containsAny(combo, blockPatterns) {
		return Match{"Blocked", 0.95, fmt.Sprintf("rule: http %d + block fingerprint", status)}, true
	}

	if notFoundStatuses[status] && containsAny(combo, notFoundPatterns) {
		return Match{"Unreachable", 0.90, fmt.Sprintf("rule: http %d + notfound fingerprint", status)}, true
	}

	if containsAny(combo, parkedPatterns) {
		return Match{"Parked", 0.95, "rule: parked/sale fingerprint"}, true
	}

	if ct := normText(doc.HTTP.ContentType); ct != "" {
		switch {
		case strings.HasPrefix(ct, "image/"):
			return Match{"NonWebContent", 0.90, fmt.Sprintf("rule: content-type=%s", ct)}, true
		case strings.HasPrefix(ct, "application/pdf"):
			return Match{"NonWebContent", 0.90, "rule: content-type=application/pdf"}, true
		case strings.HasPrefix(ct, "application/zip"), strings.HasPrefix(ct, "application/octet-stream"):
			return Match{"NonWebContent", 0.85, fmt.Sprintf("rule: content-type=%s", ct)}, true
		}
	}

	return Match{}, false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// normText lowercases and folds whitespace so keyword matching and
// fingerprinting see identical text for visually identical pages.
func normText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
