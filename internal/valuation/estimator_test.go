package valuation

import (
	"context"
	"errors"
	"math"
	"testing"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/ebay"
)

// fakeSearcher returns canned comps or a canned error.
type fakeSearcher struct {
	results []domain.ListingSummary
	err     error
	lastReq ebay.SearchParams
}

func (f *fakeSearcher) Search(_ context.Context, p ebay.SearchParams) ([]domain.ListingSummary, error) {
	f.lastReq = p
	return f.results, f.err
}

func comps(prices ...float64) []domain.ListingSummary {
	out := make([]domain.ListingSummary, 0, len(prices))
	for i, p := range prices {
		out = append(out, domain.ListingSummary{
			ItemID:   string(rune('a' + i)),
			Title:    "comp",
			ItemURL:  "https://example.com",
			Price:    p,
			Currency: "USD",
		})
	}
	return out
}

func TestEstimator_OutlierResistant(t *testing.T) {
	search := &fakeSearcher{results: comps(120, 130, 125, 115, 140, 128, 500)}
	e := NewEstimator(search, EstimatorConfig{Currency: "USD"}, nil)

	est, err := e.Estimate(context.Background(), "2023 Prizm QB Auto /10")
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if !est.Sufficient() {
		t.Fatal("expected a sufficient estimate")
	}
	// The 500 outlier is trimmed; the core median lands at 128.
	if math.Abs(est.MarketValue-128) > 0.001 {
		t.Errorf("expected market value 128, got %.2f", est.MarketValue)
	}
	if est.SampleSize != 7 {
		t.Errorf("expected 7 samples, got %d", est.SampleSize)
	}

	if search.lastReq.BuyingMode != domain.BuyingModeFixedPrice {
		t.Errorf("comps must be fixed price, got %s", search.lastReq.BuyingMode)
	}
}

func TestEstimator_InsufficientSamples(t *testing.T) {
	search := &fakeSearcher{results: comps(100, 110, 105)}
	e := NewEstimator(search, EstimatorConfig{MinSamples: 5, Currency: "USD"}, nil)

	est, err := e.Estimate(context.Background(), "some card")
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if est.Sufficient() {
		t.Error("3 comps below MinSamples=5 must not be sufficient")
	}
	if est.MarketValue != 0 {
		t.Errorf("insufficient estimate must carry market value 0, got %.2f", est.MarketValue)
	}
	if est.SampleSize != 3 {
		t.Errorf("expected sample size 3, got %d", est.SampleSize)
	}
}

func TestEstimator_FiltersCurrencyAndNonPositive(t *testing.T) {
	results := comps(100, 110, 105, 120, 115)
	results[0].Currency = "EUR"
	results[1].Price = 0

	search := &fakeSearcher{results: results}
	e := NewEstimator(search, EstimatorConfig{MinSamples: 2, Currency: "USD"}, nil)

	est, err := e.Estimate(context.Background(), "some card")
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if est.SampleSize != 3 {
		t.Errorf("expected 3 usable samples, got %d", est.SampleSize)
	}
}

func TestEstimator_IncludesShippingInTotals(t *testing.T) {
	results := comps(100, 100, 100, 100, 100)
	for i := range results {
		results[i].ShippingCost = 10
	}

	search := &fakeSearcher{results: results}
	e := NewEstimator(search, EstimatorConfig{Currency: "USD"}, nil)

	est, err := e.Estimate(context.Background(), "some card")
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(est.MarketValue-110) > 0.001 {
		t.Errorf("expected delivered total 110, got %.2f", est.MarketValue)
	}
}

func TestEstimator_PropagatesSearchError(t *testing.T) {
	search := &fakeSearcher{err: ebay.ErrBudgetExhausted}
	e := NewEstimator(search, EstimatorConfig{}, nil)

	_, err := e.Estimate(context.Background(), "some card")
	if !errors.Is(err, ebay.ErrBudgetExhausted) {
		t.Errorf("expected budget error to propagate, got %v", err)
	}
}

func TestEstimator_EmptyQuery(t *testing.T) {
	search := &fakeSearcher{}
	e := NewEstimator(search, EstimatorConfig{}, nil)

	est, err := e.Estimate(context.Background(), "")
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if est.Sufficient() {
		t.Error("empty title must not produce an estimate")
	}
}

func TestBuildCompQuery(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"2023 Prizm QB Auto /10", "2023 Prizm QB Auto /10"},
		{"GEM MINT 2023 Prizm QB Auto", "2023 Prizm QB Auto"},
		{"WOW look RARE hot card", "card"},
		{"", ""},
		// Token cap: only the first ten informative tokens survive.
		{"a b c d e f g h i j k l", "a b c d e f g h i j"},
	}

	for _, tt := range tests {
		if got := BuildCompQuery(tt.title); got != tt.want {
			t.Errorf("BuildCompQuery(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestTrimmedPercentile(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		trim    float64
		p       float64
		want    float64
	}{
		{"outlier trimmed", []float64{10, 10, 10, 10, 10, 1000}, 0.20, 0.50, 10},
		{"plain median odd", []float64{1, 2, 3}, 0, 0.50, 2},
		{"plain median even interpolates", []float64{1, 2, 3, 4}, 0, 0.50, 2.5},
		{"single sample", []float64{42}, 0.20, 0.50, 42},
		{"two samples heavy trim", []float64{10, 20}, 0.45, 0.50, 15},
		{"empty", nil, 0.20, 0.50, 0},
		{"p25", []float64{10, 20, 30, 40, 50}, 0, 0.25, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimmedPercentile(tt.samples, tt.trim, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("got %.3f, want %.3f", got, tt.want)
			}
		})
	}
}
