package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

// DealStore implements storage.DealStore using PostgreSQL.
type DealStore struct {
	pool *Pool
}

// NewDealStore creates a new DealStore.
func NewDealStore(pool *Pool) *DealStore {
	return &DealStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DealStore = (*DealStore)(nil)

// dealColumns is the column list shared by every read query.
const dealColumns = `
	item_id, title, item_url, image_url, price, shipping_cost, currency,
	buying_mode, bid_count, end_time, total_cost, market_value,
	comp_sample_size, estimated_profit, roi, score, source_query,
	status, active, first_seen_at, last_seen_at, created_at, updated_at
`

// MarkAllInactive sets active=false on every deal.
func (s *DealStore) MarkAllInactive(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deals SET active = FALSE, updated_at = NOW() WHERE active
	`)
	if err != nil {
		return 0, fmt.Errorf("mark all inactive: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Upsert inserts or updates a deal keyed by item_id in one statement.
// On conflict every valuation field is overwritten and the deal is
// reactivated; first_seen_at, created_at and the operator status survive.
func (s *DealStore) Upsert(ctx context.Context, d *domain.Deal) error {
	if d == nil || d.ItemID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO deals (
			item_id, title, item_url, image_url, price, shipping_cost,
			currency, buying_mode, bid_count, end_time, total_cost,
			market_value, comp_sample_size, estimated_profit, roi, score,
			source_query, status, active,
			first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, 'new', TRUE, NOW(), NOW(), NOW(), NOW()
		)
		ON CONFLICT (item_id) DO UPDATE SET
			title = EXCLUDED.title,
			item_url = EXCLUDED.item_url,
			image_url = EXCLUDED.image_url,
			price = EXCLUDED.price,
			shipping_cost = EXCLUDED.shipping_cost,
			currency = EXCLUDED.currency,
			buying_mode = EXCLUDED.buying_mode,
			bid_count = EXCLUDED.bid_count,
			end_time = EXCLUDED.end_time,
			total_cost = EXCLUDED.total_cost,
			market_value = EXCLUDED.market_value,
			comp_sample_size = EXCLUDED.comp_sample_size,
			estimated_profit = EXCLUDED.estimated_profit,
			roi = EXCLUDED.roi,
			score = EXCLUDED.score,
			source_query = EXCLUDED.source_query,
			active = TRUE,
			last_seen_at = NOW(),
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		d.ItemID,
		d.Title,
		d.ItemURL,
		d.ImageURL,
		d.Price,
		d.ShippingCost,
		d.Currency,
		string(d.BuyingMode),
		d.BidCount,
		d.EndTime,
		d.TotalCost,
		d.MarketValue,
		d.CompSampleSize,
		d.EstimatedProfit,
		d.ROI,
		d.Score,
		d.SourceQuery,
	)
	if err != nil {
		return fmt.Errorf("upsert deal: %w", err)
	}
	return nil
}

// PruneInactive deletes deals still inactive after a run's upserts.
func (s *DealStore) PruneInactive(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deals WHERE NOT active`)
	if err != nil {
		return 0, fmt.Errorf("prune inactive: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FetchActive returns at most limit active deals in the given order.
func (s *DealStore) FetchActive(ctx context.Context, limit int, sort storage.ActiveSort) ([]*domain.Deal, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM deals
		WHERE active
		ORDER BY %s
		LIMIT $1
	`, dealColumns, orderClause(sort))

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch active deals: %w", err)
	}
	defer rows.Close()

	return scanDeals(rows)
}

// GetByItemID retrieves a deal by item ID. Returns ErrNotFound if absent.
func (s *DealStore) GetByItemID(ctx context.Context, itemID string) (*domain.Deal, error) {
	query := fmt.Sprintf(`SELECT %s FROM deals WHERE item_id = $1`, dealColumns)

	row := s.pool.QueryRow(ctx, query, itemID)
	d, err := scanDeal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deal by item id: %w", err)
	}
	return d, nil
}

// UpdateStatus sets the operator workflow status for a deal.
func (s *DealStore) UpdateStatus(ctx context.Context, itemID string, status domain.DealStatus) error {
	if !domain.ValidStatus(status) {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE deals SET status = $2, updated_at = NOW() WHERE item_id = $1
	`, itemID, string(status))
	if err != nil {
		return fmt.Errorf("update deal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// orderClause maps an ActiveSort to its ORDER BY expression. Every ordering
// tie-breaks with the remaining criteria so results are deterministic.
func orderClause(sort storage.ActiveSort) string {
	switch sort {
	case storage.SortByProfit:
		return "estimated_profit DESC, score DESC, end_time ASC NULLS LAST, item_id ASC"
	case storage.SortByEndTime:
		return "end_time ASC NULLS LAST, score DESC, estimated_profit DESC, item_id ASC"
	default:
		return "score DESC, estimated_profit DESC, end_time ASC NULLS LAST, item_id ASC"
	}
}

// scanDeal scans a single row into a Deal.
func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var d domain.Deal
	var buyingMode, status string

	err := row.Scan(
		&d.ItemID,
		&d.Title,
		&d.ItemURL,
		&d.ImageURL,
		&d.Price,
		&d.ShippingCost,
		&d.Currency,
		&buyingMode,
		&d.BidCount,
		&d.EndTime,
		&d.TotalCost,
		&d.MarketValue,
		&d.CompSampleSize,
		&d.EstimatedProfit,
		&d.ROI,
		&d.Score,
		&d.SourceQuery,
		&status,
		&d.Active,
		&d.FirstSeenAt,
		&d.LastSeenAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.BuyingMode = domain.BuyingMode(buyingMode)
	d.Status = domain.DealStatus(status)
	return &d, nil
}

// scanDeals scans multiple rows into a slice of Deal.
func scanDeals(rows pgx.Rows) ([]*domain.Deal, error) {
	var deals []*domain.Deal

	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal row: %w", err)
		}
		deals = append(deals, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deal rows: %w", err)
	}

	return deals, nil
}
