package domain

import "time"

// DealStatus is operator-managed workflow state for a persisted deal.
// The scanner never changes it; the dashboard action buttons do.
type DealStatus string

const (
	StatusNew      DealStatus = "new"
	StatusWatching DealStatus = "watching"
	StatusBought   DealStatus = "bought"
	StatusPassed   DealStatus = "passed"
	StatusSold     DealStatus = "sold"
)

// ValidStatus reports whether s is one of the known workflow statuses.
func ValidStatus(s DealStatus) bool {
	switch s {
	case StatusNew, StatusWatching, StatusBought, StatusPassed, StatusSold:
		return true
	}
	return false
}

// Deal is a persisted opportunity, keyed by the upstream item ID.
// Corresponds to the deals table in PostgreSQL.
//
// Lifecycle per scan run: every deal is marked inactive at the start of a
// run and reactivated only by an upsert when the listing is re-observed and
// still qualifies. Deals left inactive after the run are pruned.
type Deal struct {
	ItemID       string // PRIMARY KEY, upstream listing identifier
	Title        string
	ItemURL      string
	ImageURL     string
	Price        float64
	ShippingCost float64
	Currency     string
	BuyingMode   BuyingMode
	BidCount     int
	EndTime      *time.Time

	TotalCost       float64
	MarketValue     float64
	CompSampleSize  int
	EstimatedProfit float64
	ROI             float64
	Score           float64
	SourceQuery     string

	Status      DealStatus
	Active      bool
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DealFromCandidate converts a qualifying candidate into the persistable form.
// Timestamps and Status are owned by the store.
func DealFromCandidate(c *CandidateDeal) *Deal {
	return &Deal{
		ItemID:          c.ItemID,
		Title:           c.Title,
		ItemURL:         c.ItemURL,
		ImageURL:        c.ImageURL,
		Price:           c.Price,
		ShippingCost:    c.ShippingCost,
		Currency:        c.Currency,
		BuyingMode:      c.BuyingMode,
		BidCount:        c.BidCount,
		EndTime:         c.EndTime,
		TotalCost:       c.TotalCost,
		MarketValue:     c.MarketValue,
		CompSampleSize:  c.CompSampleSize,
		EstimatedProfit: c.EstimatedProfit,
		ROI:             c.ROI,
		Score:           c.Score,
		SourceQuery:     c.SourceQuery,
		Active:          true,
	}
}
