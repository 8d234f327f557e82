package config

import "time"

// FetchConfig holds settings for the DNS and HTTP fetch stages
type FetchConfig struct {
	DNSWorkers       int           `yaml:"dns_workers"`                  // Workers in the DNS resolution stage
	HTTPWorkers      int           `yaml:"http_workers"`                 // Workers in the HTTP fetch stage
	ClientShards     int           `yaml:"client_shards,omitempty"`      // Independently-limited HTTP client instances
	DNSTimeout       time.Duration `yaml:"dns_timeout,omitempty"`        // Per-lookup deadline
	HTTPTimeout      time.Duration `yaml:"http_timeout,omitempty"`       // Per-request deadline (per scheme attempt)
	RateLimit        float64       `yaml:"rate_limit,omitempty"`         // Outbound HTTP requests per second (0 = unlimited)
	UserAgent        string        `yaml:"user_agent,omitempty"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes,omitempty"`     // Response body read cap
	InputQueueSize   int           `yaml:"input_queue_size,omitempty"`   // Domain input queue capacity
	HandoffQueueSize int           `yaml:"handoff_queue_size,omitempty"` // DNS-to-HTTP handoff queue capacity
	PersistQueueSize int           `yaml:"persist_queue_size,omitempty"` // Queue feeding the persistence writer
	BatchSize        int           `yaml:"batch_size,omitempty"`         // Rows per store transaction
	FlushInterval    time.Duration `yaml:"flush_interval,omitempty"`     // Max age of a partial batch before commit
}

// ClassifyConfig holds settings for the layered classification engine
type ClassifyConfig struct {
	Workers              int           `yaml:"workers,omitempty"`            // Classification worker pool size
	QueueSize            int           `yaml:"queue_size,omitempty"`         // Record queue capacity
	BatchSize            int           `yaml:"batch_size,omitempty"`         // Classifications per store transaction
	EnableTLDRules       *bool         `yaml:"enable_tld_rules,omitempty"`   // Defaults to true
	EnableHashDedup      *bool         `yaml:"enable_hash_dedup,omitempty"`  // Defaults to true
	MinFingerprintLength int           `yaml:"min_fingerprint_length,omitempty"`
	ErrorLog             string        `yaml:"error_log,omitempty"`          // Append-only JSONL diagnostics path
	LLMBaseURL           string        `yaml:"llm_base_url,omitempty"`       // OpenAI-compatible endpoint
	LLMModel             string        `yaml:"llm_model,omitempty"`
	LLMAPIKey            string        `yaml:"llm_api_key,omitempty"`
	LLMConcurrency       int           `yaml:"llm_concurrency,omitempty"`    // Inference semaphore size
	LLMTimeout           time.Duration `yaml:"llm_timeout,omitempty"`
	MaxTitleLen          int           `yaml:"max_title_len,omitempty"`      // Payload truncation bounds
	MaxMetaLen           int           `yaml:"max_meta_len,omitempty"`
	MaxSnippetLen        int           `yaml:"max_snippet_len,omitempty"`
	EnableTokenCounting  bool          `yaml:"enable_token_counting,omitempty"`
	TokenizerEncoding    string        `yaml:"tokenizer_encoding,omitempty"` // cl100k_base, o200k_base, ...
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DatabaseDSN        string           `yaml:"database_dsn"`
	Fetch              FetchConfig      `yaml:"fetch"`
	Classify           ClassifyConfig   `yaml:"classify"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for each HTTP client shard
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Explicitly enable/disable HTTP/2 attempt (use pointer for tri-state: nil=default, true=force, false=disable)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// TLDRulesEnabled resolves the tri-state enable flag (nil = enabled).
func (c ClassifyConfig) TLDRulesEnabled() bool {
	if c.EnableTLDRules != nil {
		return *c.EnableTLDRules
	}
	return true
}

// HashDedupEnabled resolves the tri-state enable flag (nil = enabled).
func (c ClassifyConfig) HashDedupEnabled() bool {
	if c.EnableHashDedup != nil {
		return *c.EnableHashDedup
	}
	return true
}
