package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrDNSLookup        = errors.New("dns lookup failed")        // Wraps the resolver error
	ErrHTTPFetch        = errors.New("http fetch failed")        // Wraps the transport error after fallback
	ErrBlocked          = errors.New("request blocked upstream") // WAF/CAPTCHA interception
	ErrLLMTransport     = errors.New("inference request failed") // Wraps the transport/endpoint error
	ErrLLMParse         = errors.New("inference reply not parseable")
	ErrDatabase         = errors.New("database error") // Wraps sql/pgx errors
	ErrQueueClosed      = errors.New("queue closed")
	ErrConfigValidation = errors.New("configuration validation error")
	ErrIngest           = errors.New("domain list ingest error")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrDNSLookup):
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			if dnsErr.IsNotFound {
				return "DNS_NXDomain"
			}
			if dnsErr.IsTimeout {
				return "DNS_Timeout"
			}
		}
		return "DNS_Other"
	case errors.Is(err, ErrHTTPFetch):
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
			return "HTTP_Timeout"
		}
		if strings.Contains(lower, "connection refused") {
			return "HTTP_ConnectionRefused"
		}
		if strings.Contains(lower, "redirects") {
			return "HTTP_TooManyRedirects"
		}
		if strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") {
			return "HTTP_TLS"
		}
		return "HTTP_Other"
	case errors.Is(err, ErrBlocked):
		return "Fetch_Blocked"
	case errors.Is(err, ErrLLMTransport):
		return "LLM_Transport"
	case errors.Is(err, ErrLLMParse):
		return "LLM_Parse"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrQueueClosed):
		return "Queue_Closed"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrIngest):
		return "Ingest_Parse"
	}

	// --- Fallback checks for common underlying error types ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lower, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lower, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lower, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

// ErrorTag returns the short transport-error tag recorded on an HTTPResult
// (timeout, connect_error, too_many_redirects, ...). Tags are stable strings
// consumed by the rule engine's reason lines and the stats rollups.
func ErrorTag(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "redirects"):
		return "too_many_redirects"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no route to host"):
		return "connect_error"
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate"):
		return "tls_error"
	case strings.Contains(lower, "reset by peer") || strings.Contains(lower, "broken pipe"):
		return "connection_reset"
	default:
		return "transport_error"
	}
}
