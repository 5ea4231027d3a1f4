package domain

// CandidateDeal is a listing that passed normalization, extended with
// valuation fields filled in by the estimator and scorer. Transient;
// only candidates that qualify become persisted Deals.
type CandidateDeal struct {
	ListingSummary

	TotalCost       float64
	MarketValue     float64 // robust comp estimate; 0 means insufficient data
	CompSampleSize  int
	EstimatedProfit float64
	ROI             float64 // EstimatedProfit / TotalCost, valid when TotalCost > 0
	Score           float64
	SourceQuery     string
}

// NewCandidateDeal builds a candidate from a normalized listing.
func NewCandidateDeal(l ListingSummary, sourceQuery string) *CandidateDeal {
	return &CandidateDeal{
		ListingSummary: l,
		TotalCost:      l.Price + l.ShippingCost,
		SourceQuery:    sourceQuery,
	}
}
