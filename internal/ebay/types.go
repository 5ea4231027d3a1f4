package ebay

import (
	"strconv"
	"time"

	"card-deal-scanner/internal/domain"
)

// searchResponse is the raw Browse API search response.
type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

// itemSummary is one raw search result.
type itemSummary struct {
	ItemID          string           `json:"itemId"`
	Title           string           `json:"title"`
	ItemWebURL      string           `json:"itemWebUrl"`
	Image           *itemImage       `json:"image"`
	Price           *money           `json:"price"`
	CurrentBidPrice *money           `json:"currentBidPrice"`
	ShippingOptions []shippingOption `json:"shippingOptions"`
	BuyingOptions   []string         `json:"buyingOptions"`
	BidCount        int              `json:"bidCount"`
	ItemEndDate     string           `json:"itemEndDate"`
}

type itemImage struct {
	ImageURL string `json:"imageUrl"`
}

type money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func (m *money) amount() float64 {
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

type shippingOption struct {
	ShippingCost *money `json:"shippingCost"`
}

// toSummary maps a raw item to the normalized listing form.
func (it itemSummary) toSummary() domain.ListingSummary {
	s := domain.ListingSummary{
		ItemID:     it.ItemID,
		Title:      it.Title,
		ItemURL:    it.ItemWebURL,
		BuyingMode: mapBuyingMode(it.BuyingOptions),
		BidCount:   it.BidCount,
	}
	if it.Image != nil {
		s.ImageURL = it.Image.ImageURL
	}

	// Auctions report the running bid separately from the fixed price.
	price := it.Price
	if it.CurrentBidPrice != nil {
		price = it.CurrentBidPrice
	}
	if price != nil {
		s.Price = price.amount()
		s.Currency = price.Currency
	}

	s.ShippingCost = cheapestShipping(it.ShippingOptions)

	if it.ItemEndDate != "" {
		if t, err := time.Parse(time.RFC3339, it.ItemEndDate); err == nil {
			s.EndTime = &t
		}
	}

	return s
}

// mapBuyingMode maps the upstream buyingOptions vocabulary to BuyingMode.
// A listing offering both auction and fixed purchase counts as an auction.
func mapBuyingMode(options []string) domain.BuyingMode {
	has := make(map[string]bool, len(options))
	for _, o := range options {
		has[o] = true
	}
	switch {
	case has["AUCTION"]:
		return domain.BuyingModeAuction
	case has["FIXED_PRICE"]:
		return domain.BuyingModeFixedPrice
	case has["BEST_OFFER"]:
		return domain.BuyingModeBestOffer
	default:
		return domain.BuyingModeUnknown
	}
}

// cheapestShipping returns the lowest shipping cost among the offered
// options, or 0 when none carry a cost (free or unlisted shipping).
func cheapestShipping(options []shippingOption) float64 {
	cheapest := 0.0
	found := false
	for _, opt := range options {
		if opt.ShippingCost == nil {
			continue
		}
		cost := opt.ShippingCost.amount()
		if !found || cost < cheapest {
			cheapest = cost
			found = true
		}
	}
	return cheapest
}
