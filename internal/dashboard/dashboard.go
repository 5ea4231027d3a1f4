// Package dashboard serves the operator-facing view of active deals:
// an HTML table, a JSON API and the status workflow actions.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

// defaultLimit caps how many deals a single page or API call returns.
const defaultLimit = 100

// Server holds the dashboard HTTP handlers.
type Server struct {
	deals  storage.DealStore
	logger *log.Logger
	now    func() time.Time
	tmpl   *template.Template
}

// New creates a dashboard Server.
func New(deals storage.DealStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		deals:  deals,
		logger: logger,
		now:    time.Now,
		tmpl:   template.Must(template.New("deals").Parse(dealsPageTemplate)),
	}
}

// WithClock sets the time source, used by tests.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Register attaches the dashboard routes to the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/deals", s.handleDeals)
	mux.HandleFunc("/api/deals/", s.handleDealAction)
	mux.HandleFunc("/health", s.handleHealth)
}

// DealResponse is the JSON shape of one deal.
type DealResponse struct {
	ItemID          string     `json:"item_id"`
	Title           string     `json:"title"`
	ItemURL         string     `json:"item_url"`
	ImageURL        string     `json:"image_url,omitempty"`
	Price           float64    `json:"price"`
	ShippingCost    float64    `json:"shipping_cost"`
	Currency        string     `json:"currency"`
	BuyingMode      string     `json:"buying_mode"`
	BidCount        int        `json:"bid_count"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	EndsInMinutes   *int       `json:"ends_in_minutes,omitempty"`
	TotalCost       float64    `json:"total_cost"`
	MarketValue     float64    `json:"market_value"`
	CompSampleSize  int        `json:"comp_sample_size"`
	EstimatedProfit float64    `json:"estimated_profit"`
	ROI             float64    `json:"roi"`
	Score           float64    `json:"score"`
	SourceQuery     string     `json:"source_query,omitempty"`
	Status          string     `json:"status"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
}

// toResponse converts a deal, computing time-to-end relative to now.
func (s *Server) toResponse(d *domain.Deal) DealResponse {
	resp := DealResponse{
		ItemID:          d.ItemID,
		Title:           d.Title,
		ItemURL:         d.ItemURL,
		ImageURL:        d.ImageURL,
		Price:           d.Price,
		ShippingCost:    d.ShippingCost,
		Currency:        d.Currency,
		BuyingMode:      string(d.BuyingMode),
		BidCount:        d.BidCount,
		EndTime:         d.EndTime,
		TotalCost:       d.TotalCost,
		MarketValue:     d.MarketValue,
		CompSampleSize:  d.CompSampleSize,
		EstimatedProfit: d.EstimatedProfit,
		ROI:             d.ROI,
		Score:           d.Score,
		SourceQuery:     d.SourceQuery,
		Status:          string(d.Status),
		FirstSeenAt:     d.FirstSeenAt,
		LastSeenAt:      d.LastSeenAt,
	}
	if d.EndTime != nil {
		mins := int(d.EndTime.Sub(s.now()).Minutes())
		resp.EndsInMinutes = &mins
	}
	return resp
}

// handleDeals returns active deals as JSON, best first.
func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sort := storage.SortByScore
	switch r.URL.Query().Get("sort") {
	case "profit":
		sort = storage.SortByProfit
	case "end_time":
		sort = storage.SortByEndTime
	}

	deals, err := s.deals.FetchActive(r.Context(), defaultLimit, sort)
	if err != nil {
		s.logger.Printf("fetch active deals: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]DealResponse, 0, len(deals))
	for _, d := range deals {
		resp = append(resp, s.toResponse(d))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(resp),
		"deals": resp,
	})
}

// statusRequest is the body of a status update.
type statusRequest struct {
	Status string `json:"status"`
}

// handleDealAction routes /api/deals/{item_id}/status.
func (s *Server) handleDealAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/deals/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	itemID := parts[0]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	status := domain.DealStatus(req.Status)
	if !domain.ValidStatus(status) {
		http.Error(w, fmt.Sprintf("invalid status %q", req.Status), http.StatusBadRequest)
		return
	}

	if err := s.deals.UpdateStatus(r.Context(), itemID, status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "deal not found", http.StatusNotFound)
			return
		}
		s.logger.Printf("update status for %s: %v", itemID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"item_id": itemID,
		"status":  string(status),
	})
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// dealRow feeds the HTML template.
type dealRow struct {
	Rank            int
	Title           string
	ItemURL         string
	TotalCost       string
	MarketValue     string
	EstimatedProfit string
	ROI             string
	Score           string
	BidCount        int
	EndsIn          string
	Status          string
	Comps           int
}

// handleIndex renders the HTML deals table.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deals, err := s.deals.FetchActive(r.Context(), defaultLimit, storage.SortByScore)
	if err != nil {
		s.logger.Printf("fetch active deals: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows := make([]dealRow, 0, len(deals))
	for i, d := range deals {
		rows = append(rows, dealRow{
			Rank:            i + 1,
			Title:           d.Title,
			ItemURL:         d.ItemURL,
			TotalCost:       fmt.Sprintf("%.2f", d.TotalCost),
			MarketValue:     fmt.Sprintf("%.2f", d.MarketValue),
			EstimatedProfit: fmt.Sprintf("%.2f", d.EstimatedProfit),
			ROI:             fmt.Sprintf("%.0f%%", d.ROI*100),
			Score:           fmt.Sprintf("%.1f", d.Score),
			BidCount:        d.BidCount,
			EndsIn:          s.formatEndsIn(d.EndTime),
			Status:          string(d.Status),
			Comps:           d.CompSampleSize,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, map[string]interface{}{
		"Rows":        rows,
		"GeneratedAt": s.now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Printf("render deals page: %v", err)
	}
}

// formatEndsIn renders remaining auction time for the table.
func (s *Server) formatEndsIn(endTime *time.Time) string {
	if endTime == nil {
		return "-"
	}
	remaining := endTime.Sub(s.now())
	if remaining <= 0 {
		return "ended"
	}
	if remaining < time.Hour {
		return fmt.Sprintf("%dm", int(remaining.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(remaining.Hours()), int(remaining.Minutes())%60)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const dealsPageTemplate = `<!DOCTYPE html>
<html>
<head>
<title>Deal Scanner</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f0f0f0; }
tr:nth-child(even) { background: #fafafa; }
.profit { color: #0a7d00; font-weight: bold; }
.meta { color: #777; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Active Deals</h1>
<p class="meta">Generated at {{.GeneratedAt}} &middot; {{len .Rows}} deals</p>
<table>
<tr>
  <th>#</th><th>Title</th><th>Cost</th><th>Market</th><th>Profit</th>
  <th>ROI</th><th>Score</th><th>Bids</th><th>Ends In</th><th>Comps</th><th>Status</th>
</tr>
{{range .Rows}}
<tr>
  <td>{{.Rank}}</td>
  <td><a href="{{.ItemURL}}" target="_blank">{{.Title}}</a></td>
  <td>{{.TotalCost}}</td>
  <td>{{.MarketValue}}</td>
  <td class="profit">{{.EstimatedProfit}}</td>
  <td>{{.ROI}}</td>
  <td>{{.Score}}</td>
  <td>{{.BidCount}}</td>
  <td>{{.EndsIn}}</td>
  <td>{{.Comps}}</td>
  <td>{{.Status}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`
