// Package normalize turns raw listing summaries into candidate deals,
// rejecting malformed and out-of-policy listings. It is the single gate
// that keeps lots, bundles and wrong-currency listings out of the pipeline:
// every downstream component assumes a normalized, single-item listing.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"card-deal-scanner/internal/domain"
)

// quantityPattern matches "N cards" style multi-item titles.
var quantityPattern = regexp.MustCompile(`(?i)\b(\d+)\s+cards?\b`)

// Config holds the listing acceptance policy.
type Config struct {
	// BlockedTitleWords are rejected on an exact word-boundary match.
	BlockedTitleWords []string

	// TargetCurrency is the only accepted listing currency.
	TargetCurrency string

	// MaxTotalCost rejects listings costing more than this; 0 disables.
	MaxTotalCost float64
}

// Normalizer applies the acceptance policy to listings.
type Normalizer struct {
	blocked        map[string]bool
	targetCurrency string
	maxTotalCost   float64
}

// New creates a Normalizer from the given policy.
func New(cfg Config) *Normalizer {
	blocked := make(map[string]bool, len(cfg.BlockedTitleWords))
	for _, w := range cfg.BlockedTitleWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			blocked[w] = true
		}
	}
	return &Normalizer{
		blocked:        blocked,
		targetCurrency: cfg.TargetCurrency,
		maxTotalCost:   cfg.MaxTotalCost,
	}
}

// Normalize validates a listing and converts it into a candidate deal.
// Returns (nil, false) when the listing is rejected; a rejected listing is
// dropped, never an error.
func (n *Normalizer) Normalize(l domain.ListingSummary, sourceQuery string) (*domain.CandidateDeal, bool) {
	if l.ItemID == "" || l.Title == "" || l.ItemURL == "" {
		return nil, false
	}

	if n.titleBlocked(l.Title) {
		return nil, false
	}

	if n.targetCurrency != "" && l.Currency != n.targetCurrency {
		return nil, false
	}

	total := l.Price + l.ShippingCost
	if total <= 0 {
		return nil, false
	}
	if n.maxTotalCost > 0 && total > n.maxTotalCost {
		return nil, false
	}

	// Auctions without an end time cannot be ranked by urgency and are
	// likely malformed.
	if l.BuyingMode == domain.BuyingModeAuction && l.EndTime == nil {
		return nil, false
	}

	return domain.NewCandidateDeal(l, sourceQuery), true
}

// titleBlocked reports whether the title matches the lot/bundle heuristics.
func (n *Normalizer) titleBlocked(title string) bool {
	for _, word := range tokenizeWords(title) {
		if n.blocked[word] {
			return true
		}
	}

	if m := quantityPattern.FindStringSubmatch(title); m != nil {
		if qty, err := strconv.Atoi(m[1]); err == nil && qty >= 2 {
			return true
		}
	}

	return false
}

// tokenizeWords splits a title into lowercase words on non-alphanumeric
// boundaries.
func tokenizeWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// String describes the policy, for startup logging.
func (n *Normalizer) String() string {
	return fmt.Sprintf("normalizer{currency=%s maxCost=%.2f blocked=%d}", n.targetCurrency, n.maxTotalCost, len(n.blocked))
}
