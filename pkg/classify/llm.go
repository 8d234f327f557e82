package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/semaphore"
)

const systemPrompt = "You are a web categorization engine. " +
	"You must classify the site into a high-level category suitable for URL/domain categorization. " +
	"Return ONLY valid JSON, no markdown, no extra text."

const userPromptHeader = "Classify the following web fetch features. " +
	"Return JSON with keys: category (string), confidence (0..1), labels (array of strings), rationale (short string). " +
	"Categories should be broad (e.g., Business, Technology, Shopping, Finance, Education, News, Social, Adult, Gambling, " +
	"Malware/Phishing, Parked, CDN/Edge, Unreachable, Other).\n\nFEATURES:\n"

// Inferencer is the last classification layer: a model that decides a
// category when neither rules nor the fingerprint cache could.
type Inferencer interface {
	Infer(ctx context.Context, doc models.FetchResult) (Match, error)
}

// llmFeatures is the JSON document embedded in the user prompt.
type llmFeatures struct {
	FQDN            string      `json:"fqdn"`
	FinalURL        string      `json:"final_url,omitempty"`
	Status          int         `json:"status"`
	ContentType     string      `json:"content_type,omitempty"`
	Title           string      `json:"title,omitempty"`
	MetaDescription string      `json:"meta_description,omitempty"`
	Snippet         string      `json:"snippet,omitempty"`
	DNS             dnsFeatures `json:"dns"`
	Blocked         bool        `json:"blocked,omitempty"`
	BlockReason     string      `json:"block_reason,omitempty"`
}

type dnsFeatures struct {
	Rcode string   `json:"rcode"`
	A     []string `json:"a,omitempty"`
	AAAA  []string `json:"aaaa,omitempty"`
	CNAME string   `json:"cname,omitempty"`
}

// llmReply is the JSON the model is instructed to return.
type llmReply struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Labels     []string `json:"labels"`
	Rationale  string   `json:"rationale"`
}

// LLMClassifier calls an OpenAI-compatible chat completion endpoint
// (vLLM in production). Concurrency toward the endpoint is bounded by
// a weighted semaphore shared across all classification workers.
type LLMClassifier struct {
	llm         llms.Model
	sem         *semaphore.Weighted
	timeout     time.Duration
	maxTitle    int
	maxMeta     int
	maxSnippet  int
	countTokens bool
	log         *logrus.Logger
}

// NewLLMClassifier creates the inference layer from configuration.
func NewLLMClassifier(cfg config.ClassifyConfig, log *logrus.Logger) (*LLMClassifier, error) {
	apiKey := cfg.LLMAPIKey
	if apiKey == "" {
		// The client requires a token even for endpoints that ignore it.
		apiKey = "unused"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.LLMBaseURL),
		openai.WithModel(cfg.LLMModel),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrLLMTransport, err)
	}

	if cfg.EnableTokenCounting {
		if err := InitTokenizer(cfg.TokenizerEncoding); err != nil {
			log.Warnf("Tokenizer init failed, disabling token counting: %v", err)
			cfg.EnableTokenCounting = false
		}
	}

	return &LLMClassifier{
		llm:         llm,
		sem:         semaphore.NewWeighted(int64(cfg.LLMConcurrency)),
		timeout:     cfg.LLMTimeout,
		maxTitle:    cfg.MaxTitleLen,
		maxMeta:     cfg.MaxMetaLen,
		maxSnippet:  cfg.MaxSnippetLen,
		countTokens: cfg.EnableTokenCounting,
		log:         log,
	}, nil
}

// Infer asks the model for a category. The returned error wraps
// ErrLLMTransport for endpoint failures and ErrLLMParse when the model
// replied with something that is not the requested JSON.
func (c *LLMClassifier) Infer(ctx context.Context, doc models.FetchResult) (Match, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Match{}, fmt.Errorf("%w: %v", utils.ErrLLMTransport, err)
	}
	defer c.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := c.buildPrompt(doc)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", utils.ErrLLMTransport, err)
	}

	if c.countTokens {
		if n := CountTokens(prompt); n >= 0 {
			c.log.WithFields(logrus.Fields{"fqdn": doc.FQDN, "prompt_tokens": n}).Debug("Inference prompt built")
		}
	}

	resp, err := c.llm.GenerateContent(callCtx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(220),
	)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", utils.ErrLLMTransport, err)
	}
	if len(resp.Choices) == 0 {
		return Match{}, fmt.Errorf("%w: empty choices", utils.ErrLLMParse)
	}

	return parseReply(resp.Choices[0].Content)
}

func (c *LLMClassifier) buildPrompt(doc models.FetchResult) (string, error) {
	features := llmFeatures{
		FQDN:            doc.FQDN,
		FinalURL:        doc.HTTP.FinalURL,
		Status:          doc.HTTP.Status,
		ContentType:     doc.HTTP.ContentType,
		Title:           truncate(doc.HTTP.Title, c.maxTitle),
		MetaDescription: truncate(doc.HTTP.MetaDescription, c.maxMeta),
		Snippet:         truncate(doc.HTTP.BodySnippet, c.maxSnippet),
		DNS: dnsFeatures{
			Rcode: doc.DNS.Rcode.String(),
			A:     doc.DNS.A,
			AAAA:  doc.DNS.AAAA,
			CNAME: doc.DNS.CNAME,
		},
		Blocked:     doc.HTTP.Blocked,
		BlockReason: doc.HTTP.BlockReason,
	}

	encoded, err := json.Marshal(features)
	if err != nil {
		return "", err
	}
	return userPromptHeader + string(encoded), nil
}

// parseReply decodes the model output. Strict JSON is tried first; if
// the model wrapped its JSON in prose or a markdown fence, the outermost
// brace-delimited object is extracted and retried.
func parseReply(content string) (Match, error) {
	var reply llmReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		extracted, ok := extractJSONObject(content)
		if !ok {
			return Match{}, fmt.Errorf("%w: no JSON object in reply", utils.ErrLLMParse)
		}
		if err := json.Unmarshal([]byte(extracted), &reply); err != nil {
			return Match{}, fmt.Errorf("%w: %v", utils.ErrLLMParse, err)
		}
	}

	if strings.TrimSpace(reply.Category) == "" {
		return Match{}, fmt.Errorf("%w: missing category", utils.ErrLLMParse)
	}

	confidence := reply.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	if confidence > 1 {
		confidence = 1
	}

	reason := strings.TrimSpace(reply.Rationale)
	if reason == "" {
		reason = "llm classification"
	}

	return Match{
		Category:   strings.TrimSpace(reply.Category),
		Confidence: confidence,
		Reason:     reason,
	}, nil
}

// extractJSONObject returns the first balanced top-level {...} in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
