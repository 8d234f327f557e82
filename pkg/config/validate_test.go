package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{
		DatabaseDSN: "postgres://localhost/webcat",
		Classify:    ClassifyConfig{LLMModel: "Qwen/Qwen2.5-7B-Instruct"},
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	// Check defaults applied
	assert.Equal(t, 20, cfg.Fetch.DNSWorkers)
	assert.Equal(t, 50, cfg.Fetch.HTTPWorkers)
	assert.Equal(t, 4, cfg.Fetch.ClientShards)
	assert.Equal(t, 5*time.Second, cfg.Fetch.DNSTimeout)
	assert.Equal(t, 15*time.Second, cfg.Fetch.HTTPTimeout)
	assert.Equal(t, int64(64*1024), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 100, cfg.Fetch.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Fetch.FlushInterval)

	assert.Equal(t, 32, cfg.Classify.Workers)
	assert.Equal(t, 50, cfg.Classify.MinFingerprintLength)
	assert.Equal(t, 8, cfg.Classify.LLMConcurrency)
	assert.Equal(t, 60*time.Second, cfg.Classify.LLMTimeout)
	assert.Equal(t, "http://127.0.0.1:8000/v1", cfg.Classify.LLMBaseURL)

	// Check HTTP client defaults
	assert.Equal(t, cfg.Fetch.HTTPTimeout, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)

	// Check warnings generated
	assert.True(t, containsWarning(warnings, "fetch.dns_workers should be > 0"))
	assert.True(t, containsWarning(warnings, "fetch.http_workers should be > 0"))
	assert.True(t, containsWarning(warnings, "fetch.client_shards should be > 0"))
	assert.True(t, containsWarning(warnings, "fetch.batch_size should be > 0"))
	assert.True(t, containsWarning(warnings, "classify.llm_concurrency should be > 0"))
}

func TestAppConfig_Validate_MissingDSN(t *testing.T) {
	cfg := AppConfig{Classify: ClassifyConfig{LLMModel: "m"}}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
	assert.Contains(t, err.Error(), "database_dsn")
}

func TestAppConfig_Validate_MissingModel(t *testing.T) {
	cfg := AppConfig{DatabaseDSN: "postgres://localhost/webcat"}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
	assert.Contains(t, err.Error(), "llm_model")
}

func TestAppConfig_Validate_NegativeRateLimit(t *testing.T) {
	cfg := AppConfig{
		DatabaseDSN: "postgres://localhost/webcat",
		Fetch:       FetchConfig{RateLimit: -5},
		Classify:    ClassifyConfig{LLMModel: "m"},
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, float64(0), cfg.Fetch.RateLimit)
	assert.True(t, containsWarning(warnings, "rate_limit cannot be negative"))
}

func TestAppConfig_Validate_ValidConfigNoWarnings(t *testing.T) {
	cfg := AppConfig{
		DatabaseDSN: "postgres://localhost/webcat",
		Fetch: FetchConfig{
			DNSWorkers:   10,
			HTTPWorkers:  40,
			ClientShards: 2,
			RateLimit:    100,
			BatchSize:    50,
		},
		Classify: ClassifyConfig{
			LLMModel:       "Qwen/Qwen2.5-7B-Instruct",
			LLMConcurrency: 16,
		},
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 10, cfg.Fetch.DNSWorkers)
	assert.Equal(t, float64(100), cfg.Fetch.RateLimit)
}
