package classify

import (
	"fmt"
	"strings"
)

// Match is a classification decision produced by a deterministic layer.
type Match struct {
	Category   string
	Confidence float64
	Reason     string
}

type tldEntry struct {
	category    string
	confidence  float64
	description string
}

// multiLabelTLDs are checked before the single-label fallback so that
// e.g. "example.gov.uk" matches ".gov.uk" rather than ".uk".
var multiLabelTLDs = []string{".gov.uk", ".gov.au", ".gov.ca", ".ac.uk", ".edu.au", ".edu.cn"}

var tldCategories = map[string]tldEntry{
	".gov":        {"Government", 0.99, "Government TLD"},
	".gov.uk":     {"Government", 0.99, "UK Government TLD"},
	".gov.au":     {"Government", 0.99, "Australian Government TLD"},
	".gov.ca":     {"Government", 0.99, "Canadian Government TLD"},
	".mil":        {"Government", 0.99, "Military TLD"},
	".edu":        {"Education", 0.98, "Educational institution TLD"},
	".ac.uk":      {"Education", 0.98, "UK Academic TLD"},
	".edu.au":     {"Education", 0.98, "Australian Education TLD"},
	".edu.cn":     {"Education", 0.98, "Chinese Education TLD"},
	".xxx":        {"Adult", 0.99, "Adult content TLD"},
	".adult":      {"Adult", 0.99, "Adult content TLD"},
	".porn":       {"Adult", 0.98, "Adult content TLD"},
	".sex":        {"Adult", 0.98, "Adult content TLD"},
	".bank":       {"Finance", 0.90, "Banking TLD"},
	".insurance":  {"Finance", 0.90, "Insurance TLD"},
	".crypto":     {"Technology", 0.85, "Cryptocurrency TLD"},
	".nft":        {"Technology", 0.85, "NFT TLD"},
	".blockchain": {"Technology", 0.85, "Blockchain TLD"},
	".museum":     {"Arts_Entertainment", 0.90, "Museum TLD"},
	".church":     {"Religion", 0.90, "Religious organization TLD"},
	".test":       {"Development", 0.99, "Testing TLD"},
	".localhost":  {"Development", 0.99, "Localhost TLD"},
	".local":      {"Development", 0.99, "Local network TLD"},
	".example":    {"Development", 0.99, "Example TLD"},
}

// ExtractTLD returns the classification-relevant suffix of fqdn:
// a known multi-label suffix when one matches, else the last label.
// Returns "" for empty or single-label names.
func ExtractTLD(fqdn string) string {
	if fqdn == "" {
		return ""
	}
	lower := strings.ToLower(fqdn)

	for _, tld := range multiLabelTLDs {
		if strings.HasSuffix(lower, tld) {
			return tld
		}
	}

	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		return lower[idx:]
	}
	return ""
}

// ClassifyByTLD returns a high-confidence category for names whose
// suffix alone determines it (.gov, .edu, .xxx, ...).
func ClassifyByTLD(fqdn string) (Match, bool) {
	tld := ExtractTLD(fqdn)
	entry, ok := tldCategories[tld]
	if !ok {
		return Match{}, false
	}
	return Match{
		Category:   entry.category,
		Confidence: entry.confidence,
		Reason:     fmt.Sprintf("rule: TLD %s → %s", tld, entry.description),
	}, true
}
