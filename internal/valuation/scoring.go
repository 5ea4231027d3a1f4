package valuation

import (
	"strings"
	"time"

	"card-deal-scanner/internal/domain"
)

// Default scoring weights and fee model.
const (
	DefaultFeeRate  = 0.15
	DefaultFixedFee = 0.30

	// Ranking weights. The score orders deals on the dashboard and never
	// participates in the qualify/reject decision.
	weightProfit       = 1.0
	weightROI          = 20.0
	urgencyBonusMax    = 15.0
	urgencyWindow      = 6 * time.Hour
	noCompetitionBonus = 5.0
	rarityBonus        = 10.0
)

// rarityKeywords are low-print-run signals that make a listing easier to
// resell at the estimated value.
var rarityKeywords = []string{"1/1", "auto", "rookie", "rc", "ssp", "refractor"}

// ScoringConfig holds the fee model and qualification thresholds.
type ScoringConfig struct {
	FeeRate  float64 // marketplace fee fraction of sale price
	FixedFee float64 // flat per-sale fee

	MinProfit float64 // qualification floor for estimated profit

	// Cheap-item sub-policy: listings with total cost at or below
	// CheapPriceCeiling qualify at the lower CheapMinProfit floor, keeping
	// low-capital opportunities visible without raising noise on expensive
	// items. Setting CheapMinProfit == MinProfit disables the policy.
	CheapPriceCeiling float64
	CheapMinProfit    float64
}

// Scorer computes profit, ROI, the qualification gate and the ranking score.
type Scorer struct {
	cfg ScoringConfig
	now func() time.Time
}

// NewScorer creates a Scorer. Zero fee fields take defaults.
func NewScorer(cfg ScoringConfig) *Scorer {
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = DefaultFeeRate
	}
	if cfg.FixedFee <= 0 {
		cfg.FixedFee = DefaultFixedFee
	}
	if cfg.CheapMinProfit <= 0 {
		cfg.CheapMinProfit = cfg.MinProfit
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// WithClock sets the time source, used by tests.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score fills EstimatedProfit, ROI and Score on the candidate.
// The candidate must carry a market value estimate and a positive total cost.
func (s *Scorer) Score(c *domain.CandidateDeal) {
	c.EstimatedProfit = c.MarketValue*(1-s.cfg.FeeRate) - s.cfg.FixedFee - c.TotalCost
	if c.TotalCost > 0 {
		c.ROI = c.EstimatedProfit / c.TotalCost
	}
	c.Score = s.rank(c)
}

// Qualifies reports whether the candidate clears the profit gate.
// This is the single decision that turns a candidate into a persisted deal.
func (s *Scorer) Qualifies(c *domain.CandidateDeal) bool {
	if c.TotalCost <= 0 {
		return false
	}
	return c.EstimatedProfit >= s.Threshold(c.TotalCost)
}

// Threshold returns the profit floor for a given total cost.
func (s *Scorer) Threshold(totalCost float64) float64 {
	if s.cfg.CheapPriceCeiling > 0 && totalCost <= s.cfg.CheapPriceCeiling {
		return s.cfg.CheapMinProfit
	}
	return s.cfg.MinProfit
}

// rank computes the composite ranking score: profit and ROI carry the
// weight, with secondary bonuses for urgency, absent competition and rarity
// signals.
func (s *Scorer) rank(c *domain.CandidateDeal) float64 {
	score := weightProfit*c.EstimatedProfit + weightROI*c.ROI

	if c.EndTime != nil {
		remaining := c.EndTime.Sub(s.now())
		if remaining > 0 && remaining < urgencyWindow {
			// Linear ramp: the closer to ending, the bigger the bonus.
			score += urgencyBonusMax * (1 - remaining.Seconds()/urgencyWindow.Seconds())
		}
	}

	if c.BuyingMode == domain.BuyingModeAuction && c.BidCount == 0 {
		score += noCompetitionBonus
	}

	title := strings.ToLower(c.Title)
	for _, kw := range rarityKeywords {
		if containsWord(title, kw) {
			score += rarityBonus
		}
	}

	return score
}

// containsWord reports whether the lowercase title contains kw bounded by
// non-alphanumeric characters.
func containsWord(title, kw string) bool {
	idx := 0
	for {
		i := strings.Index(title[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isAlnum(title[start-1])
		afterOK := end == len(title) || !isAlnum(title[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
