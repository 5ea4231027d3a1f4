package storage

import (
	"context"

	"card-deal-scanner/internal/domain"
)

// ActiveSort selects the ordering for the active-deals read path.
// Every ordering breaks ties with the remaining two criteria.
type ActiveSort string

const (
	// SortByScore orders by score DESC, profit DESC, soonest end time.
	// This is the dashboard's display order.
	SortByScore ActiveSort = "score"

	// SortByProfit orders by estimated profit DESC.
	SortByProfit ActiveSort = "profit"

	// SortByEndTime orders by soonest end time first.
	SortByEndTime ActiveSort = "end_time"
)

// DealStore provides access to the persisted deals table.
//
// State machine per deal: new → active ⇄ inactive → deleted.
// MarkAllInactive flips every row at the start of a run; Upsert reactivates
// re-observed listings; PruneInactive removes what was not reconfirmed.
type DealStore interface {
	// MarkAllInactive sets active=false on every deal. Called once at the
	// start of a scan run, before any upserts. Returns affected row count.
	MarkAllInactive(ctx context.Context) (int64, error)

	// Upsert inserts or updates a deal keyed by item_id as a single atomic
	// statement. On conflict all valuation fields are overwritten, active is
	// set true and last_seen_at refreshed; first_seen_at, created_at and the
	// operator status are preserved.
	Upsert(ctx context.Context, d *domain.Deal) error

	// PruneInactive deletes deals still inactive after a run's upserts.
	// Returns the number of deals removed.
	PruneInactive(ctx context.Context) (int64, error)

	// FetchActive returns at most limit active deals in the given order.
	// Inactive deals are never returned.
	FetchActive(ctx context.Context, limit int, sort ActiveSort) ([]*domain.Deal, error)

	// GetByItemID retrieves a deal by item ID. Returns ErrNotFound if absent.
	GetByItemID(ctx context.Context, itemID string) (*domain.Deal, error)

	// UpdateStatus sets the operator workflow status for a deal.
	// Returns ErrNotFound if the deal does not exist.
	UpdateStatus(ctx context.Context, itemID string, status domain.DealStatus) error
}

// CompSampleStore records comparable-listing price observations for later
// estimator calibration. Append-only analytics; losing samples is acceptable.
type CompSampleStore interface {
	// InsertBulk appends a batch of samples.
	InsertBulk(ctx context.Context, samples []*domain.CompSample) error
}
