package domain

import "time"

// BuyingMode classifies how a listing can be purchased.
type BuyingMode string

const (
	BuyingModeAuction    BuyingMode = "AUCTION"
	BuyingModeFixedPrice BuyingMode = "FIXED_PRICE"
	BuyingModeBestOffer  BuyingMode = "BEST_OFFER"
	BuyingModeUnknown    BuyingMode = "UNKNOWN"
)

// ListingSummary is a normalized view of one upstream search result.
// It is transient: produced by the browse client, consumed by the
// normalizer, never persisted directly.
type ListingSummary struct {
	ItemID       string
	Title        string
	ItemURL      string
	ImageURL     string
	Price        float64
	ShippingCost float64
	Currency     string
	BuyingMode   BuyingMode
	BidCount     int
	EndTime      *time.Time // nil when the listing has no end date
}
