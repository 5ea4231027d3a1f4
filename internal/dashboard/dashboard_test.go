package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage/memory"
)

func seedDeal(t *testing.T, store *memory.DealStore, itemID string, score float64, end *time.Time) {
	t.Helper()
	err := store.Upsert(context.Background(), &domain.Deal{
		ItemID:          itemID,
		Title:           "test deal " + itemID,
		ItemURL:         "https://example.com/" + itemID,
		Price:           40,
		ShippingCost:    5,
		Currency:        "USD",
		BuyingMode:      domain.BuyingModeAuction,
		EndTime:         end,
		TotalCost:       45,
		MarketValue:     120,
		EstimatedProfit: 56.7,
		ROI:             1.26,
		Score:           score,
	})
	if err != nil {
		t.Fatalf("seed deal %s: %v", itemID, err)
	}
}

func newTestMux(store *memory.DealStore) (*http.ServeMux, *Server) {
	srv := New(store, nil)
	mux := http.NewServeMux()
	srv.Register(mux)
	return mux, srv
}

func TestDashboard_DealsAPI(t *testing.T) {
	store := memory.NewDealStore()
	end := time.Now().Add(90 * time.Minute)
	seedDeal(t, store, "it-1", 80, &end)
	seedDeal(t, store, "it-2", 95, nil)

	mux, _ := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deals", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Count int            `json:"count"`
		Deals []DealResponse `json:"deals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Count != 2 {
		t.Fatalf("expected 2 deals, got %d", body.Count)
	}
	// Best score first.
	if body.Deals[0].ItemID != "it-2" {
		t.Errorf("expected it-2 first, got %s", body.Deals[0].ItemID)
	}

	timed := body.Deals[1]
	if timed.EndsInMinutes == nil {
		t.Fatal("expected ends_in_minutes for the auction deal")
	}
	if *timed.EndsInMinutes < 85 || *timed.EndsInMinutes > 90 {
		t.Errorf("ends_in_minutes out of range: %d", *timed.EndsInMinutes)
	}
	if body.Deals[0].EndsInMinutes != nil {
		t.Error("deal without end time must omit ends_in_minutes")
	}
}

func TestDashboard_DealsAPISort(t *testing.T) {
	store := memory.NewDealStore()
	seedDeal(t, store, "it-low-score", 10, nil)
	seedDeal(t, store, "it-high-score", 95, nil)

	// Give the low-score deal the higher profit.
	low, _ := store.GetByItemID(context.Background(), "it-low-score")
	low.EstimatedProfit = 200
	if err := store.Upsert(context.Background(), low); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	mux, _ := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deals?sort=profit", nil))

	var body struct {
		Deals []DealResponse `json:"deals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Deals[0].ItemID != "it-low-score" {
		t.Errorf("profit sort not applied: got %s first", body.Deals[0].ItemID)
	}
}

func TestDashboard_UpdateStatus(t *testing.T) {
	store := memory.NewDealStore()
	seedDeal(t, store, "it-1", 80, nil)

	mux, _ := newTestMux(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/deals/it-1/status", strings.NewReader(`{"status":"watching"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got, err := store.GetByItemID(context.Background(), "it-1")
	if err != nil {
		t.Fatalf("GetByItemID failed: %v", err)
	}
	if got.Status != domain.StatusWatching {
		t.Errorf("status not updated: got %s", got.Status)
	}
}

func TestDashboard_UpdateStatusErrors(t *testing.T) {
	store := memory.NewDealStore()
	seedDeal(t, store, "it-1", 80, nil)

	mux, _ := newTestMux(store)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown status", http.MethodPost, "/api/deals/it-1/status", `{"status":"nonsense"}`, http.StatusBadRequest},
		{"missing deal", http.MethodPost, "/api/deals/missing/status", `{"status":"watching"}`, http.StatusNotFound},
		{"bad body", http.MethodPost, "/api/deals/it-1/status", `{`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/deals/it-1/status", "", http.StatusMethodNotAllowed},
		{"bad path", http.MethodPost, "/api/deals/it-1/unknown", `{}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestDashboard_IndexPage(t *testing.T) {
	store := memory.NewDealStore()
	end := time.Now().Add(2 * time.Hour)
	seedDeal(t, store, "it-1", 80, &end)

	mux, _ := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "test deal it-1") {
		t.Error("deal title missing from page")
	}
	if !strings.Contains(page, "56.70") {
		t.Error("profit missing from page")
	}
}

func TestDashboard_Health(t *testing.T) {
	store := memory.NewDealStore()
	mux, _ := newTestMux(store)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("health: %d %q", rec.Code, rec.Body.String())
	}
}
