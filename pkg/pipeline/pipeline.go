package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/config"
	"github.com/whois-api-llc/web-categorization-v2/pkg/fetch"
	"github.com/whois-api-llc/web-categorization-v2/pkg/ingest"
	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/queue"
	"github.com/whois-api-llc/web-categorization-v2/pkg/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Resolver is the DNS stage dependency.
type Resolver interface {
	Resolve(ctx context.Context, fqdn string) models.DNSResult
}

// Fetcher is the HTTP stage dependency.
type Fetcher interface {
	FetchDomain(ctx context.Context, fqdn string) models.HTTPResult
}

// FetchPipeline runs the staged fetch: input list -> DNS workers ->
// HTTP workers -> single persistence writer. Every queue between stages
// is bounded, so a slow store throttles the fetchers instead of letting
// results pile up in memory.
type FetchPipeline struct {
	cfg      config.FetchConfig
	store    store.Store
	resolver Resolver
	fetcher  Fetcher
	limiter  *fetch.RateLimiter
	metrics  *FetchMetrics
	log      *logrus.Logger
}

// NewFetchPipeline wires the fetch stages.
func NewFetchPipeline(cfg config.FetchConfig, st store.Store, resolver Resolver, fetcher Fetcher, limiter *fetch.RateLimiter, log *logrus.Logger) *FetchPipeline {
	return &FetchPipeline{
		cfg:      cfg,
		store:    st,
		resolver: resolver,
		fetcher:  fetcher,
		limiter:  limiter,
		metrics:  &FetchMetrics{},
		log:      log,
	}
}

// Metrics exposes the live counters (progress reporting, tests).
func (p *FetchPipeline) Metrics() *FetchMetrics {
	return p.metrics
}

// Run processes the domain list at inputPath until it is exhausted or
// ctx is cancelled. Either way the stages drain in order: the input
// queue closes first, DNS workers finish their remaining items, then
// the handoff queue closes, HTTP workers finish, and the writer commits
// its final partial batch before Run returns.
func (p *FetchPipeline) Run(ctx context.Context, inputPath string) error {
	runID := uuid.NewString()
	runLog := p.log.WithField("run_id", runID)
	runLog.WithFields(logrus.Fields{
		"input":        inputPath,
		"dns_workers":  p.cfg.DNSWorkers,
		"http_workers": p.cfg.HTTPWorkers,
		"rate_limit":   p.cfg.RateLimit,
	}).Info("Starting fetch run")

	skip, err := p.store.LoadExistingDomains(ctx)
	if err != nil {
		return err
	}
	runLog.WithField("known_domains", len(skip)).Info("Loaded resume skip set")

	inputQ := queue.NewBounded[string](p.cfg.InputQueueSize)
	handoffQ := queue.NewBounded[models.ResolvedDomain](p.cfg.HandoffQueueSize)
	persistQ := queue.NewBounded[models.FetchResult](p.cfg.PersistQueueSize)

	// Producer: stream the list, dropping already-fetched names.
	producerErr := make(chan error, 1)
	go func() {
		defer inputQ.Close()
		_, err := ingest.StreamDomains(inputPath, p.log, func(fqdn string) bool {
			if ctx.Err() != nil {
				return false
			}
			if _, seen := skip[fqdn]; seen {
				p.metrics.Skipped.Add(1)
				return true
			}
			skip[fqdn] = struct{}{} // dedupe within the list itself
			if !inputQ.Push(fqdn) {
				return false
			}
			p.metrics.Ingested.Add(1)
			return true
		})
		producerErr <- err
	}()

	// DNS stage.
	var dnsWG sync.WaitGroup
	for i := 0; i < p.cfg.DNSWorkers; i++ {
		dnsWG.Add(1)
		go func() {
			defer dnsWG.Done()
			p.dnsWorker(ctx, inputQ, handoffQ, persistQ)
		}()
	}

	// HTTP stage.
	var httpWG sync.WaitGroup
	for i := 0; i < p.cfg.HTTPWorkers; i++ {
		httpWG.Add(1)
		go func() {
			defer httpWG.Done()
			p.httpWorker(ctx, handoffQ, persistQ)
		}()
	}

	// Single writer owns all store writes for the run.
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- p.writer(persistQ)
	}()

	progressTicker := time.NewTicker(30 * time.Second)
	defer progressTicker.Stop()
	progressStop := make(chan struct{})
	go func() {
		for {
			select {
			case <-progressTicker.C:
				runLog.WithFields(p.metrics.Fields()).Info("Fetch progress")
			case <-progressStop:
				return
			}
		}
	}()

	// Stage-ordered drain.
	dnsWG.Wait()
	handoffQ.Close()
	httpWG.Wait()
	persistQ.Close()
	writeErr := <-writerDone
	close(progressStop)

	ingestErr := <-producerErr

	runLog.WithFields(p.metrics.Fields()).Info("Fetch run complete")

	if writeErr != nil {
		return writeErr
	}
	return ingestErr
}

func (p *FetchPipeline) dnsWorker(ctx context.Context, in *queue.Bounded[string], handoff *queue.Bounded[models.ResolvedDomain], persist *queue.Bounded[models.FetchResult]) {
	for {
		fqdn, ok := in.Pop()
		if !ok {
			return
		}

		dns := p.resolver.Resolve(ctx, fqdn)
		if dns.Rcode == models.RcodeNoError && dns.HasAddresses() {
			p.metrics.Resolved.Add(1)
			if !handoff.Push(models.ResolvedDomain{FQDN: fqdn, DNS: dns}) {
				return
			}
			continue
		}

		// Unresolvable names terminate here; they never occupy a handoff
		// slot, an HTTP worker or a rate token.
		p.metrics.DNSFailed.Add(1)
		if !persist.Push(models.FetchResult{FQDN: fqdn, DNS: dns, FetchedAt: time.Now().UTC()}) {
			return
		}
	}
}

func (p *FetchPipeline) httpWorker(ctx context.Context, in *queue.Bounded[models.ResolvedDomain], out *queue.Bounded[models.FetchResult]) {
	for {
		rd, ok := in.Pop()
		if !ok {
			return
		}

		result := models.FetchResult{
			FQDN:      rd.FQDN,
			DNS:       rd.DNS,
			FetchedAt: time.Now().UTC(),
		}

		if err := p.limiter.Acquire(ctx); err == nil {
			result.HTTP = p.fetcher.FetchDomain(ctx, rd.FQDN)
		} else {
			result.HTTP.Error = "cancelled"
		}

		switch result.Status() {
		case models.FetchStatusSuccess:
			p.metrics.Fetched.Add(1)
		case models.FetchStatusBlocked:
			p.metrics.Blocked.Add(1)
		case models.FetchStatusHTTPFailed:
			p.metrics.HTTPFailed.Add(1)
		}

		if !out.Push(result) {
			return
		}
	}
}

// writer is the only goroutine that touches the store during a run. It
// commits every BatchSize results, or sooner when a partial batch has
// been waiting FlushInterval.
func (p *FetchPipeline) writer(in *queue.Bounded[models.FetchResult]) error {
	batch := make([]models.FetchResult, 0, p.cfg.BatchSize)

	// After a commit failure the writer keeps consuming and discarding,
	// otherwise a full persist queue would wedge the upstream stages and
	// the drain would never finish.
	var firstErr error

	flush := func() {
		if len(batch) == 0 || firstErr != nil {
			return
		}
		// Commits use the background context: a cancelled run still
		// persists everything its workers completed.
		if err := p.store.BatchUpsertDomains(context.Background(), batch); err != nil {
			firstErr = err
			p.log.Errorf("Batch commit failed: %v", err)
			return
		}
		p.metrics.Persisted.Add(int64(len(batch)))
		p.metrics.Batches.Add(1)
		batch = batch[:0]
	}

	results := make(chan models.FetchResult)
	go func() {
		defer close(results)
		for {
			r, ok := in.Pop()
			if !ok {
				return
			}
			results <- r
		}
	}()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				flush()
				return firstErr
			}
			if firstErr == nil {
				batch = append(batch, r)
				if len(batch) >= p.cfg.BatchSize {
					flush()
				}
			}
		case <-ticker.C:
			flush()
		}
	}
}
