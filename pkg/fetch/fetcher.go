package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/extract"
	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/sirupsen/logrus"
)

// blockSignatures mark a 403/429 body as a WAF or bot challenge rather
// than an ordinary client error.
var blockSignatures = []string{"cloudflare", "access denied", "captcha"}

// Fetcher retrieves a domain's landing page. It attempts HTTPS first
// and falls back to plain HTTP exactly once when the HTTPS attempt
// fails at the transport level; any HTTP response, success or error
// status, ends the attempt sequence.
type Fetcher struct {
	shards    *ClientShards
	extractor *extract.Extractor
	userAgent string
	maxBody   int64
	timeout   time.Duration
	log       *logrus.Logger
}

// NewFetcher creates a Fetcher backed by the given client shards.
func NewFetcher(shards *ClientShards, extractor *extract.Extractor, cfg config.FetchConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		shards:    shards,
		extractor: extractor,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		timeout:   cfg.HTTPTimeout,
		log:       log,
	}
}

// FetchDomain fetches https://fqdn, falling back to http://fqdn. The
// returned result always describes the final attempt: a zero status
// with an error tag means no scheme produced an HTTP response.
func (f *Fetcher) FetchDomain(ctx context.Context, fqdn string) models.HTTPResult {
	var result models.HTTPResult

	for _, scheme := range []string{"https", "http"} {
		if ctx.Err() != nil {
			result.Error = "cancelled"
			return result
		}

		done, err := f.attempt(ctx, scheme+"://"+fqdn, &result)
		if done {
			return result
		}
		f.log.WithFields(logrus.Fields{"fqdn": fqdn, "scheme": scheme}).Debugf("Fetch attempt failed: %v", err)
	}

	return result
}

// attempt performs one scheme attempt, filling result in place. It
// reports done=true once any HTTP response was received.
func (f *Fetcher) attempt(ctx context.Context, url string, result *models.HTTPResult) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		result.Status = 0
		result.Error = "bad_url"
		return false, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := f.shards.Next().Do(req)
	if err != nil {
		tag := utils.ErrorTag(err)
		result.Error = tag
		if tag == "timeout" {
			// Mirror a request timeout as 408 so downstream rules can
			// treat it uniformly with server-reported timeouts.
			result.Status = http.StatusRequestTimeout
		} else {
			result.Status = 0
		}
		return false, err
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.ContentType = resp.Header.Get("Content-Type")
	result.Error = ""
	result.Blocked = false
	result.BlockReason = ""

	// The body read is capped; classification never needs a full page.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if readErr != nil && len(body) == 0 {
		result.Error = "body_read_error"
		return true, nil
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		lower := strings.ToLower(string(body))
		for _, sig := range blockSignatures {
			if strings.Contains(lower, sig) {
				result.Blocked = true
				result.BlockReason = "waf_or_captcha"
				break
			}
		}
	}

	if strings.Contains(strings.ToLower(result.ContentType), "text/html") {
		content := f.extractor.Extract(string(body))
		result.Title = content.Title
		result.MetaDescription = content.MetaDescription
		result.BodySnippet = content.Snippet
	}

	return true, nil
}
