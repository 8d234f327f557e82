package config

import (
	"fmt"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DatabaseDSN == "" {
		return warnings, fmt.Errorf("%w: database_dsn is required", utils.ErrConfigValidation)
	}

	// --- Fetch stage ---
	if c.Fetch.DNSWorkers <= 0 {
		warnings = append(warnings, "fetch.dns_workers should be > 0, defaulting to 20")
		c.Fetch.DNSWorkers = 20
	}
	if c.Fetch.HTTPWorkers <= 0 {
		warnings = append(warnings, "fetch.http_workers should be > 0, defaulting to 50")
		c.Fetch.HTTPWorkers = 50
	}
	if c.Fetch.ClientShards <= 0 {
		warnings = append(warnings, "fetch.client_shards should be > 0, defaulting to 4")
		c.Fetch.ClientShards = 4
	}
	if c.Fetch.DNSTimeout <= 0 {
		c.Fetch.DNSTimeout = 5 * time.Second
	}
	if c.Fetch.HTTPTimeout <= 0 {
		c.Fetch.HTTPTimeout = 15 * time.Second
	}
	if c.Fetch.RateLimit < 0 {
		warnings = append(warnings, "fetch.rate_limit cannot be negative, disabling rate limiting")
		c.Fetch.RateLimit = 0
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = 64 * 1024
	}
	if c.Fetch.InputQueueSize <= 0 {
		c.Fetch.InputQueueSize = 1000
	}
	if c.Fetch.HandoffQueueSize <= 0 {
		c.Fetch.HandoffQueueSize = 500
	}
	if c.Fetch.PersistQueueSize <= 0 {
		c.Fetch.PersistQueueSize = 500
	}
	if c.Fetch.BatchSize <= 0 {
		warnings = append(warnings, "fetch.batch_size should be > 0, defaulting to 100")
		c.Fetch.BatchSize = 100
	}
	if c.Fetch.FlushInterval <= 0 {
		c.Fetch.FlushInterval = 5 * time.Second
	}

	// --- Classification ---
	if c.Classify.Workers <= 0 {
		c.Classify.Workers = 32
	}
	if c.Classify.QueueSize <= 0 {
		c.Classify.QueueSize = 200
	}
	if c.Classify.BatchSize <= 0 {
		c.Classify.BatchSize = 100
	}
	if c.Classify.MinFingerprintLength <= 0 {
		c.Classify.MinFingerprintLength = 50
	}
	if c.Classify.ErrorLog == "" {
		c.Classify.ErrorLog = "./logs/classify_errors.jsonl"
	}
	if c.Classify.LLMBaseURL == "" {
		c.Classify.LLMBaseURL = "http://127.0.0.1:8000/v1"
	}
	if c.Classify.LLMModel == "" {
		return warnings, fmt.Errorf("%w: classify.llm_model is required", utils.ErrConfigValidation)
	}
	if c.Classify.LLMConcurrency <= 0 {
		warnings = append(warnings, "classify.llm_concurrency should be > 0, defaulting to 8")
		c.Classify.LLMConcurrency = 8
	}
	if c.Classify.LLMTimeout <= 0 {
		c.Classify.LLMTimeout = 60 * time.Second
	}
	if c.Classify.MaxTitleLen <= 0 {
		c.Classify.MaxTitleLen = 300
	}
	if c.Classify.MaxMetaLen <= 0 {
		c.Classify.MaxMetaLen = 500
	}
	if c.Classify.MaxSnippetLen <= 0 {
		c.Classify.MaxSnippetLen = 1000
	}

	// --- HTTP client shards ---
	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = c.Fetch.HTTPTimeout
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 2
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 30 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.ExpectContinueTimeout <= 0 {
		c.HTTPClientSettings.ExpectContinueTimeout = 1 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	return warnings, nil
}
