package models

// Rcode represents the classified outcome of a DNS lookup
type Rcode string

const (
	RcodeNoError  Rcode = "NOERROR"  // Lookup answered with records
	RcodeNXDomain Rcode = "NXDOMAIN" // Name does not exist
	RcodeServFail Rcode = "SERVFAIL" // Upstream resolver failure
	RcodeTimeout  Rcode = "TIMEOUT"  // Lookup exceeded its deadline
	RcodeError    Rcode = "ERROR"    // Any other resolution error
)

// String implements fmt.Stringer for logging
func (r Rcode) String() string {
	if r == "" {
		return "unset"
	}
	return string(r)
}

// FetchStatus represents the terminal outcome of fetching a domain
type FetchStatus string

const (
	FetchStatusSuccess    FetchStatus = "success"     // DNS resolved and content retrieved
	FetchStatusDNSFailed  FetchStatus = "dns_failed"  // Domain never reached the HTTP stage
	FetchStatusHTTPFailed FetchStatus = "http_failed" // DNS ok, HTTP attempts exhausted
	FetchStatusBlocked    FetchStatus = "blocked"     // WAF/CAPTCHA interception detected
)

// String implements fmt.Stringer for logging
func (s FetchStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known value
func (s FetchStatus) IsValid() bool {
	switch s {
	case FetchStatusSuccess, FetchStatusDNSFailed, FetchStatusHTTPFailed, FetchStatusBlocked:
		return true
	}
	return false
}

// Method identifies which classification layer produced a result
type Method string

const (
	MethodRule      Method = "rule"       // Deterministic rule engine match
	MethodHashCache Method = "hash_cache" // Content fingerprint cache hit
	MethodLLM       Method = "llm"        // Inference fallback call
	MethodError     Method = "error"      // Inference failed; defaulted category
)

// String implements fmt.Stringer for logging
func (m Method) String() string {
	if m == "" {
		return "unset"
	}
	return string(m)
}
