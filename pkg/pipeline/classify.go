package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/whois-api-llc/web-categorization-v2/pkg/classify"
	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/queue"
	"github.com/whois-api-llc/web-categorization-v2/pkg/store"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClassifyPipeline drives the layered classifier over every
// unclassified domain in the store: a worker pool decides, a single
// writer commits decisions in batches.
type ClassifyPipeline struct {
	cfg        config.ClassifyConfig
	store      store.Store
	inferencer classify.Inferencer
	errlog     *ErrorLog
	metrics    *ClassifyMetrics
	log        *logrus.Logger
}

// NewClassifyPipeline wires the classification run. errlog may be nil
// to disable the JSONL diagnostics file.
func NewClassifyPipeline(cfg config.ClassifyConfig, st store.Store, inferencer classify.Inferencer, errlog *ErrorLog, log *logrus.Logger) *ClassifyPipeline {
	return &ClassifyPipeline{
		cfg:        cfg,
		store:      st,
		inferencer: inferencer,
		errlog:     errlog,
		metrics:    &ClassifyMetrics{},
		log:        log,
	}
}

// Metrics exposes the live counters.
func (p *ClassifyPipeline) Metrics() *ClassifyMetrics {
	return p.metrics
}

// Run classifies every domain currently needing classification and
// returns once all decisions are committed. The fingerprint cache is
// seeded from the store, so identical content classified in an earlier
// run never costs a second inference call.
func (p *ClassifyPipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	runLog := p.log.WithField("run_id", runID)

	seed, err := p.store.LoadHashCache(ctx)
	if err != nil {
		return err
	}
	cache := classify.NewHashCache(seed)
	classifier := classify.NewClassifier(p.cfg, cache, p.inferencer, p.log)
	runLog.WithField("cached_fingerprints", len(seed)).Info("Starting classification run")

	records, err := p.store.GetDomainsNeedingClassification(ctx, 0)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		runLog.Info("Nothing to classify")
		return nil
	}
	p.metrics.Total.Store(int64(len(records)))

	recordQ := queue.NewBounded[store.DomainRecord](p.cfg.QueueSize)
	resultQ := queue.NewBounded[store.ClassifiedDomain](p.cfg.QueueSize)

	go func() {
		defer recordQ.Close()
		for _, rec := range records {
			if ctx.Err() != nil {
				return
			}
			if !recordQ.Push(rec) {
				return
			}
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			p.worker(ctx, classifier, recordQ, resultQ)
		}()
	}

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- p.writer(resultQ)
	}()

	workerWG.Wait()
	resultQ.Close()
	writeErr := <-writerDone

	hits, misses, rate := cache.Stats()
	runLog.WithFields(p.metrics.Fields()).WithFields(logrus.Fields{
		"cache_hit_rate": rate,
		"cache_lookups":  hits + misses,
	}).Info("Classification run complete")

	return writeErr
}

func (p *ClassifyPipeline) worker(ctx context.Context, classifier *classify.Classifier, in *queue.Bounded[store.DomainRecord], out *queue.Bounded[store.ClassifiedDomain]) {
	for {
		rec, ok := in.Pop()
		if !ok {
			return
		}

		result, err := classifier.Classify(ctx, rec.Result)
		if err != nil {
			p.metrics.Errors.Add(1)
			if p.errlog != nil {
				if logErr := p.errlog.Append(ErrorEntry{
					FQDN:     rec.Result.FQDN,
					Stage:    "classify",
					Category: utils.CategorizeError(err),
					Error:    err.Error(),
				}); logErr != nil {
					p.log.Warnf("Error log append failed: %v", logErr)
				}
			}
		}

		switch result.Method {
		case models.MethodRule:
			p.metrics.Rule.Add(1)
			if strings.Contains(result.Reason, "rule: TLD") {
				p.metrics.TLD.Add(1)
			}
		case models.MethodHashCache:
			p.metrics.CacheHits.Add(1)
		case models.MethodLLM:
			p.metrics.LLM.Add(1)
		}

		if !out.Push(store.ClassifiedDomain{DomainID: rec.ID, Result: result}) {
			return
		}
	}
}

// writer commits decisions in BatchSize transactions; error decisions
// are persisted too, so reruns do not hammer a broken endpoint with the
// same domains until the operator clears them.
func (p *ClassifyPipeline) writer(in *queue.Bounded[store.ClassifiedDomain]) error {
	batch := make([]store.ClassifiedDomain, 0, p.cfg.BatchSize)

	// Keep draining after a commit failure so the worker pool is never
	// wedged behind a full result queue.
	var firstErr error

	flush := func() {
		if len(batch) == 0 || firstErr != nil {
			return
		}
		if err := p.store.BatchInsertClassifications(context.Background(), batch); err != nil {
			firstErr = err
			p.log.Errorf("Classification commit failed: %v", err)
			return
		}
		p.metrics.Persisted.Add(int64(len(batch)))
		batch = batch[:0]
	}

	for {
		item, ok := in.Pop()
		if !ok {
			flush()
			return firstErr
		}
		if firstErr == nil {
			batch = append(batch, item)
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}
		}
	}
}
