package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Classifier runs the layered decision for one domain: deterministic
// rules, then the content-fingerprint cache, then model inference. Each
// layer only runs when every cheaper layer declined to decide.
type Classifier struct {
	rules          *RuleEngine
	cache          *HashCache
	inferencer     Inferencer
	dedupe         bool
	minFingerprint int
	log            *logrus.Logger
}

// NewClassifier wires the three layers together.
func NewClassifier(cfg config.ClassifyConfig, cache *HashCache, inferencer Inferencer, log *logrus.Logger) *Classifier {
	return &Classifier{
		rules:          NewRuleEngine(cfg.TLDRulesEnabled()),
		cache:          cache,
		inferencer:     inferencer,
		dedupe:         cfg.HashDedupEnabled(),
		minFingerprint: cfg.MinFingerprintLength,
		log:            log,
	}
}

// Classify decides a category for doc. It always returns a result; an
// inference failure is reported as a result with MethodError plus the
// underlying error for diagnostics.
func (c *Classifier) Classify(ctx context.Context, doc models.FetchResult) (models.ClassificationResult, error) {
	now := time.Now().UTC()

	if match, ok := c.rules.Evaluate(doc); ok {
		return models.ClassificationResult{
			FQDN:         doc.FQDN,
			Method:       models.MethodRule,
			Category:     match.Category,
			Confidence:   match.Confidence,
			Reason:       match.Reason,
			ClassifiedAt: now,
		}, nil
	}

	var hash string
	if c.dedupe {
		if h, ok := BuildFingerprint(doc.HTTP, c.minFingerprint); ok {
			hash = h
			if entry, hit := c.cache.Get(hash); hit {
				return models.ClassificationResult{
					FQDN:         doc.FQDN,
					Method:       models.MethodHashCache,
					Category:     entry.Category,
					Confidence:   entry.Confidence,
					Reason:       fmt.Sprintf("content hash match (similar to %s)", entry.ExampleFQDN),
					ContentHash:  hash,
					ClassifiedAt: now,
				}, nil
			}
		}
	}

	match, err := c.inferencer.Infer(ctx, doc)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"fqdn":     doc.FQDN,
			"category": utils.CategorizeError(err),
		}).Warnf("Inference failed: %v", err)
		return models.ClassificationResult{
			FQDN:         doc.FQDN,
			Method:       models.MethodError,
			Category:     "Other",
			Confidence:   0,
			Reason:       fmt.Sprintf("error: %s", utils.CategorizeError(err)),
			ContentHash:  hash,
			ClassifiedAt: now,
		}, err
	}

	// Only genuine inference decisions seed the cache; rule decisions
	// never depend on page content and error results must stay retryable.
	if hash != "" {
		c.cache.Put(hash, match.Category, match.Confidence, doc.FQDN)
	}

	return models.ClassificationResult{
		FQDN:         doc.FQDN,
		Method:       models.MethodLLM,
		Category:     match.Category,
		Confidence:   match.Confidence,
		Reason:       match.Reason,
		ContentHash:  hash,
		ClassifiedAt: now,
	}, nil
}
