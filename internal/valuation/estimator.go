// Package valuation estimates resale value from comparable listings and
// derives profit, ROI and a ranking score for candidate deals.
package valuation

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/ebay"
)

// Default estimator configuration.
const (
	DefaultCompSearchLimit  = 50
	DefaultCompMinSamples   = 5
	DefaultCompTrimFraction = 0.20
	DefaultCompPercentile   = 0.50
	maxCompQueryTokens      = 10
)

// compNoiseTokens are grading/condition/hype words stripped from titles when
// building the comparable-items query. They narrow matches without adding
// information about which card is being sold.
var compNoiseTokens = map[string]bool{
	"gem":      true,
	"mint":     true,
	"nm":       true,
	"graded":   true,
	"grade":    true,
	"pop":      true,
	"hot":      true,
	"rare":     true,
	"look":     true,
	"wow":      true,
	"nice":     true,
	"sharp":    true,
	"beauty":   true,
	"invest":   true,
	"grail":    true,
	"fire":     true,
	"sealed":   true,
	"fresh":    true,
	"centered": true,
}

// CompSearcher is the slice of the search client the estimator needs.
type CompSearcher interface {
	Search(ctx context.Context, p ebay.SearchParams) ([]domain.ListingSummary, error)
}

// EstimatorConfig holds estimator tunables.
type EstimatorConfig struct {
	SearchLimit  int     // comps fetched per estimate
	MinSamples   int     // below this the estimate is "insufficient data"
	TrimFraction float64 // fraction trimmed from each tail
	Percentile   float64 // percentile of the trimmed core (0.5 = median)
	Currency     string  // comps in other currencies are discarded
}

// Estimate is the result of one market-value estimation.
type Estimate struct {
	MarketValue float64 // 0 when there is insufficient data
	SampleSize  int     // comps actually collected
	CompQuery   string
	Samples     []float64 // collected totals, unsorted
}

// Sufficient reports whether the estimate is backed by enough comps to act on.
func (e Estimate) Sufficient() bool {
	return e.MarketValue > 0
}

// Estimator computes a robust market-value estimate for a listing title by
// sampling fixed-price comparable listings. A plain mean over marketplace
// results is dominated by outliers (bundles that slipped the normalizer,
// wrong-variant matches); the trimmed median resists them while still
// working with samples as small as the configured minimum.
type Estimator struct {
	search CompSearcher
	cfg    EstimatorConfig
	logger *log.Logger
}

// NewEstimator creates an Estimator. Zero config fields take defaults.
func NewEstimator(search CompSearcher, cfg EstimatorConfig, logger *log.Logger) *Estimator {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultCompSearchLimit
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultCompMinSamples
	}
	if cfg.TrimFraction <= 0 {
		cfg.TrimFraction = DefaultCompTrimFraction
	}
	if cfg.Percentile <= 0 {
		cfg.Percentile = DefaultCompPercentile
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Estimator{search: search, cfg: cfg, logger: logger}
}

// Estimate fetches fixed-price comps for the title and returns the trimmed
// central estimate. Auth failures and budget exhaustion propagate; any other
// upstream failure degrades to an insufficient-data estimate.
func (e *Estimator) Estimate(ctx context.Context, title string) (Estimate, error) {
	query := BuildCompQuery(title)
	est := Estimate{CompQuery: query}
	if query == "" {
		return est, nil
	}

	comps, err := e.search.Search(ctx, ebay.SearchParams{
		Query:      query,
		BuyingMode: domain.BuyingModeFixedPrice,
		Limit:      e.cfg.SearchLimit,
	})
	if err != nil {
		return est, err
	}

	for _, c := range comps {
		if e.cfg.Currency != "" && c.Currency != e.cfg.Currency {
			continue
		}
		total := c.Price + c.ShippingCost
		if total > 0 {
			est.Samples = append(est.Samples, total)
		}
	}
	est.SampleSize = len(est.Samples)

	if est.SampleSize < e.cfg.MinSamples {
		e.logger.Printf("insufficient comps for %q: %d < %d", query, est.SampleSize, e.cfg.MinSamples)
		return est, nil
	}

	est.MarketValue = TrimmedPercentile(est.Samples, e.cfg.TrimFraction, e.cfg.Percentile)
	return est, nil
}

// BuildCompQuery reduces a listing title to a comparable-items query:
// noise tokens are stripped, whitespace collapsed, and the token count
// capped to keep the query specific without being overfit to one listing.
func BuildCompQuery(title string) string {
	fields := strings.Fields(title)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if compNoiseTokens[strings.ToLower(strings.Trim(f, "!*()[]"))] {
			continue
		}
		kept = append(kept, f)
		if len(kept) == maxCompQueryTokens {
			break
		}
	}
	return strings.Join(kept, " ")
}

// TrimmedPercentile sorts the sample, discards the trim fraction from each
// tail and returns the given percentile of the remaining core using linear
// interpolation.
func TrimmedPercentile(samples []float64, trimFraction, p float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	trim := int(float64(n) * trimFraction)
	// Never trim the whole sample away.
	if 2*trim >= n {
		trim = (n - 1) / 2
	}
	core := sorted[trim : n-trim]

	return percentile(core, p)
}

// percentile uses linear interpolation over a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
