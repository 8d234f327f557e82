package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "None"},
		{"nxdomain", fmt.Errorf("%w: %w", ErrDNSLookup, &net.DNSError{IsNotFound: true}), "DNS_NXDomain"},
		{"dns timeout", fmt.Errorf("%w: %w", ErrDNSLookup, &net.DNSError{IsTimeout: true}), "DNS_Timeout"},
		{"http timeout", fmt.Errorf("%w: context deadline exceeded", ErrHTTPFetch), "HTTP_Timeout"},
		{"http refused", fmt.Errorf("%w: dial tcp: connection refused", ErrHTTPFetch), "HTTP_ConnectionRefused"},
		{"blocked", ErrBlocked, "Fetch_Blocked"},
		{"llm transport", fmt.Errorf("%w: 502 bad gateway", ErrLLMTransport), "LLM_Transport"},
		{"llm parse", ErrLLMParse, "LLM_Parse"},
		{"database", fmt.Errorf("%w: tx aborted", ErrDatabase), "Database_Other"},
		{"context canceled", context.Canceled, "System_ContextCanceled"},
		{"unknown", errors.New("mystery"), "Unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategorizeError(tc.err); got != tc.want {
				t.Errorf("CategorizeError() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorTag(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("stopped after 10 redirects"), "too_many_redirects"},
		{errors.New("dial tcp 192.0.2.1:443: connection refused"), "connect_error"},
		{errors.New("tls: handshake failure"), "tls_error"},
		{errors.New("read: connection reset by peer"), "connection_reset"},
		{errors.New("something odd"), "transport_error"},
	}
	for _, tc := range cases {
		if got := ErrorTag(tc.err); got != tc.want {
			t.Errorf("ErrorTag(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestCalculateStringSHA256(t *testing.T) {
	h1 := CalculateStringSHA256("hello")
	h2 := CalculateStringSHA256("hello")
	h3 := CalculateStringSHA256("hello!")
	if h1 != h2 {
		t.Error("same input must hash identically")
	}
	if h1 == h3 {
		t.Error("different input must hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}
