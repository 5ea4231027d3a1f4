// Package ebay provides the upstream marketplace client: token acquisition,
// a rate-limited request executor, and the Browse search API wrapper.
package ebay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"card-deal-scanner/internal/domain"
)

// Sort orders accepted by the search endpoint.
const (
	SortEndingSoonest = "endingSoonest"
	SortBestMatch     = ""
)

// pageSize is the per-request limit for paginated searches.
const pageSize = 50

// SearchParams describes one keyword search.
type SearchParams struct {
	Query      string
	BuyingMode domain.BuyingMode
	Limit      int
	Offset     int
	Sort       string
}

// Client wraps the executor to perform paginated keyword searches.
type Client struct {
	exec      *Executor
	tokens    *TokenProvider
	searchURL string
	logger    *log.Logger
}

// NewClient creates a Browse search client.
func NewClient(exec *Executor, tokens *TokenProvider, searchURL string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		exec:      exec,
		tokens:    tokens,
		searchURL: searchURL,
		logger:    logger,
	}
}

// Executor exposes the underlying executor for budget inspection.
func (c *Client) Executor() *Executor {
	return c.exec
}

// Search performs a paginated keyword search and returns normalized listing
// summaries, at most p.Limit of them. On budget exhaustion it returns
// ErrBudgetExhausted with whatever was already collected; auth failures are
// wrapped in ErrAuth. Other upstream failures return the partial result and
// the error, leaving the skip-and-continue decision to the caller.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]domain.ListingSummary, error) {
	if p.Limit <= 0 {
		return nil, nil
	}

	var results []domain.ListingSummary
	offset := p.Offset

	for len(results) < p.Limit {
		remaining := p.Limit - len(results)
		limit := remaining
		if limit > pageSize {
			limit = pageSize
		}

		page, err := c.searchPage(ctx, p, limit, offset)
		if err != nil {
			return results, err
		}

		for _, it := range page.ItemSummaries {
			results = append(results, it.toSummary())
			if len(results) == p.Limit {
				break
			}
		}

		// Short page means the result set is exhausted.
		if len(page.ItemSummaries) < limit {
			break
		}
		offset += len(page.ItemSummaries)
	}

	return results, nil
}

// searchPage issues one search request, refreshing the token once on 401.
func (c *Client) searchPage(ctx context.Context, p SearchParams, limit, offset int) (*searchResponse, error) {
	for refreshed := false; ; refreshed = true {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		params := url.Values{}
		params.Set("q", p.Query)
		params.Set("limit", strconv.Itoa(limit))
		params.Set("offset", strconv.Itoa(offset))
		if p.Sort != "" {
			params.Set("sort", p.Sort)
		}
		if p.BuyingMode != "" && p.BuyingMode != domain.BuyingModeUnknown {
			params.Set("filter", fmt.Sprintf("buyingOptions:{%s}", p.BuyingMode))
		}

		headers := map[string]string{
			"Authorization": "Bearer " + tok,
		}

		var resp searchResponse
		err = c.exec.GetJSON(ctx, c.searchURL, params, headers, &resp)
		if err == nil {
			return &resp, nil
		}

		if IsStatus(err, http.StatusUnauthorized) && !refreshed {
			c.logger.Printf("search returned 401, refreshing token")
			c.tokens.Invalidate()
			continue
		}
		if IsStatus(err, http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: search rejected refreshed token", ErrAuth)
		}
		return nil, err
	}
}
