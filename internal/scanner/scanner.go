// Package scanner provides end-to-end scan orchestration.
// It coordinates: search → normalization → valuation → scoring → persistence
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/ebay"
	"card-deal-scanner/internal/normalize"
	"card-deal-scanner/internal/observability"
	"card-deal-scanner/internal/storage"
	"card-deal-scanner/internal/valuation"
)

// Searcher is the slice of the search client the scanner needs.
type Searcher interface {
	Search(ctx context.Context, p ebay.SearchParams) ([]domain.ListingSummary, error)
}

// BudgetReporter exposes call accounting for the run summary. The executor
// implements it; tests substitute a stub.
type BudgetReporter interface {
	CallsUsed() int
	Remaining() int
}

// Scanner coordinates one full scan run.
// Flow per run: mark all deals inactive → for each configured query, search
// ending-soonest auctions, normalize, estimate market value, score and upsert
// qualifying candidates → prune deals not re-observed.
type Scanner struct {
	search     Searcher
	normalizer *normalize.Normalizer
	estimator  *valuation.Estimator
	scorer     *valuation.Scorer

	deals       storage.DealStore
	compSamples storage.CompSampleStore // optional

	queries       []string
	perQueryLimit int

	budget  BudgetReporter         // optional
	metrics *observability.Metrics // optional
	logger  *log.Logger
	now     func() time.Time
}

// Options for creating Scanner.
type Options struct {
	// Required pipeline stages
	Search     Searcher
	Normalizer *normalize.Normalizer
	Estimator  *valuation.Estimator
	Scorer     *valuation.Scorer
	DealStore  storage.DealStore

	// Optional comp sample sink; nil disables sample recording.
	CompSampleStore storage.CompSampleStore

	// Search configuration
	Queries       []string
	PerQueryLimit int

	// Optional call accounting, typically the executor.
	Budget BudgetReporter

	// Optional instrumentation
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// New creates a new Scanner.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	perQueryLimit := opts.PerQueryLimit
	if perQueryLimit <= 0 {
		perQueryLimit = 50
	}
	return &Scanner{
		search:        opts.Search,
		normalizer:    opts.Normalizer,
		estimator:     opts.Estimator,
		scorer:        opts.Scorer,
		deals:         opts.DealStore,
		compSamples:   opts.CompSampleStore,
		queries:       opts.Queries,
		perQueryLimit: perQueryLimit,
		budget:        opts.Budget,
		metrics:       opts.Metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock sets the time source, used by tests.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// RunResult contains counters from one scan run.
type RunResult struct {
	RunID string

	Seen      int   // raw listings returned by searches
	Rejected  int   // listings dropped by normalization
	Evaluated int   // candidates that went through valuation
	Kept      int   // qualifying deals upserted
	Inactive  int64 // deals marked inactive at run start
	Pruned    int64 // stale deals removed at run end

	CallsUsed int
	Duration  time.Duration
	Errors    []string
}

// Run executes one full scan.
//
// Error policy: authentication failures abort the run before pruning, so a
// transient credential problem never wipes the deals table. Budget exhaustion
// stops further searching but the run still finishes cleanly with what was
// collected. Any other upstream or per-listing failure is recorded and
// skipped.
func (s *Scanner) Run(ctx context.Context) (result *RunResult, err error) {
	// A panic anywhere in the pipeline must not take down a scheduled run
	// host; surface it as a run error instead.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("scan panicked: %v", r)
			s.logger.Printf("[scanner] %v", err)
		}
	}()

	started := s.now()
	result = &RunResult{
		RunID: started.UTC().Format("20060102T150405Z"),
	}

	s.logger.Printf("[scanner] run %s starting (%d queries)", result.RunID, len(s.queries))

	inactive, err := s.deals.MarkAllInactive(ctx)
	if err != nil {
		return nil, fmt.Errorf("mark deals inactive: %w", err)
	}
	result.Inactive = inactive

	budgetExhausted := false
	for _, query := range s.queries {
		if budgetExhausted {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stop, err := s.scanQuery(ctx, query, result)
		if err != nil {
			return nil, err
		}
		budgetExhausted = stop
	}

	pruned, err := s.deals.PruneInactive(ctx)
	if err != nil {
		return nil, fmt.Errorf("prune inactive deals: %w", err)
	}
	result.Pruned = pruned

	if s.budget != nil {
		result.CallsUsed = s.budget.CallsUsed()
	}
	result.Duration = s.now().Sub(started)

	s.observe(result)
	s.logger.Printf("[scanner] run %s done: seen=%d kept=%d pruned=%d calls=%d errors=%d in %s",
		result.RunID, result.Seen, result.Kept, result.Pruned, result.CallsUsed, len(result.Errors), result.Duration.Round(time.Millisecond))

	return result, nil
}

// scanQuery searches one configured query and pushes every listing through the
// pipeline. The bool return reports budget exhaustion; errors returned here
// abort the whole run.
func (s *Scanner) scanQuery(ctx context.Context, query string, result *RunResult) (bool, error) {
	listings, err := s.search.Search(ctx, ebay.SearchParams{
		Query:      query,
		BuyingMode: domain.BuyingModeAuction,
		Limit:      s.perQueryLimit,
		Sort:       ebay.SortEndingSoonest,
	})

	budgetExhausted := false
	switch {
	case err == nil:
	case errors.Is(err, ebay.ErrAuth):
		return false, fmt.Errorf("search %q: %w", query, err)
	case errors.Is(err, ebay.ErrBudgetExhausted):
		s.logger.Printf("[scanner] call budget exhausted during %q, finishing with partial results", query)
		budgetExhausted = true
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("search %q: %v", query, err))
		s.countError("search")
	}

	result.Seen += len(listings)
	if s.metrics != nil {
		s.metrics.ListingsSeen.Add(float64(len(listings)))
	}

	for _, listing := range listings {
		candidate, ok := s.normalizer.Normalize(listing, query)
		if !ok {
			result.Rejected++
			if s.metrics != nil {
				s.metrics.ListingsRejected.Inc()
			}
			continue
		}

		if budgetExhausted {
			// No budget left for comp searches; remaining candidates
			// cannot be valued this run.
			continue
		}

		stop, err := s.evaluate(ctx, candidate, result)
		if err != nil {
			return false, err
		}
		if stop {
			budgetExhausted = true
		}
	}

	return budgetExhausted, nil
}

// evaluate values, scores and persists one candidate. The bool return reports
// budget exhaustion; errors abort the run.
func (s *Scanner) evaluate(ctx context.Context, c *domain.CandidateDeal, result *RunResult) (bool, error) {
	est, err := s.estimator.Estimate(ctx, c.Title)
	switch {
	case err == nil:
	case errors.Is(err, ebay.ErrAuth):
		return false, fmt.Errorf("estimate %s: %w", c.ItemID, err)
	case errors.Is(err, ebay.ErrBudgetExhausted):
		return true, nil
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("estimate %s: %v", c.ItemID, err))
		s.countError("estimate")
		return false, nil
	}

	result.Evaluated++
	if s.metrics != nil {
		s.metrics.EstimatesComputed.Inc()
	}

	if !est.Sufficient() {
		if s.metrics != nil {
			s.metrics.EstimatesInsufficient.Inc()
		}
		return false, nil
	}

	c.MarketValue = est.MarketValue
	c.CompSampleSize = est.SampleSize
	s.scorer.Score(c)

	if !s.scorer.Qualifies(c) {
		return false, nil
	}

	if err := s.deals.Upsert(ctx, domain.DealFromCandidate(c)); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("upsert %s: %v", c.ItemID, err))
		s.countError("upsert")
		return false, nil
	}
	result.Kept++
	if s.metrics != nil {
		s.metrics.DealsKept.Inc()
	}

	s.recordCompSamples(ctx, result, c.ItemID, est)

	s.logger.Printf("[scanner] kept %s profit=%.2f roi=%.2f score=%.1f (%d comps)",
		c.ItemID, c.EstimatedProfit, c.ROI, c.Score, c.CompSampleSize)

	return false, nil
}

// recordCompSamples writes the comp observations behind a kept deal. Sample
// recording is best-effort analytics and never fails the run.
func (s *Scanner) recordCompSamples(ctx context.Context, result *RunResult, itemID string, est valuation.Estimate) {
	if s.compSamples == nil || len(est.Samples) == 0 {
		return
	}

	observedAt := s.now().UTC()
	samples := make([]*domain.CompSample, 0, len(est.Samples))
	for _, price := range est.Samples {
		samples = append(samples, &domain.CompSample{
			RunID:      result.RunID,
			ItemID:     itemID,
			CompQuery:  est.CompQuery,
			Price:      price,
			ObservedAt: observedAt,
		})
	}

	if err := s.compSamples.InsertBulk(ctx, samples); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("comp samples %s: %v", itemID, err))
		s.countError("comp_samples")
		return
	}
	if s.metrics != nil {
		s.metrics.CompSamplesRecorded.Add(float64(len(samples)))
	}
}

// observe publishes end-of-run gauges and counters.
func (s *Scanner) observe(result *RunResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.ScanRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.ScanDuration.Observe(result.Duration.Seconds())
	s.metrics.DealsPruned.Add(float64(result.Pruned))
	s.metrics.APICallsTotal.Add(float64(result.CallsUsed))
	s.metrics.ActiveDeals.Set(float64(result.Kept))
	s.metrics.LastSuccessfulScan.Set(float64(s.now().Unix()))
	if s.budget != nil {
		s.metrics.BudgetRemaining.Set(float64(s.budget.Remaining()))
	}
}

func (s *Scanner) countError(kind string) {
	if s.metrics != nil {
		s.metrics.APICallErrors.WithLabelValues(kind).Inc()
	}
}
