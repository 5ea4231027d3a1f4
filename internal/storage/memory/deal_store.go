package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

// DealStore is an in-memory implementation of storage.DealStore.
// Used by tests and the -use-memory server mode.
type DealStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Deal // keyed by item_id
	now  func() time.Time
}

// NewDealStore creates a new in-memory deal store.
func NewDealStore() *DealStore {
	return &DealStore{
		data: make(map[string]*domain.Deal),
		now:  time.Now,
	}
}

// WithClock sets the time source, used by tests.
func (s *DealStore) WithClock(now func() time.Time) *DealStore {
	s.now = now
	return s
}

// MarkAllInactive sets active=false on every deal.
func (s *DealStore) MarkAllInactive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, d := range s.data {
		if d.Active {
			d.Active = false
			d.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

// Upsert inserts or updates a deal keyed by item_id.
func (s *DealStore) Upsert(_ context.Context, d *domain.Deal) error {
	if d == nil || d.ItemID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.data[d.ItemID]
	if !ok {
		dealCopy := *d
		dealCopy.Status = domain.StatusNew
		dealCopy.Active = true
		dealCopy.FirstSeenAt = now
		dealCopy.LastSeenAt = now
		dealCopy.CreatedAt = now
		dealCopy.UpdatedAt = now
		s.data[d.ItemID] = &dealCopy
		return nil
	}

	// Overwrite valuation fields; preserve first_seen_at, created_at and
	// the operator status.
	dealCopy := *d
	dealCopy.Status = existing.Status
	dealCopy.Active = true
	dealCopy.FirstSeenAt = existing.FirstSeenAt
	dealCopy.CreatedAt = existing.CreatedAt
	dealCopy.LastSeenAt = now
	dealCopy.UpdatedAt = now
	s.data[d.ItemID] = &dealCopy
	return nil
}

// PruneInactive deletes deals still inactive.
func (s *DealStore) PruneInactive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, d := range s.data {
		if !d.Active {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

// FetchActive returns at most limit active deals in the given order.
func (s *DealStore) FetchActive(_ context.Context, limit int, sortBy storage.ActiveSort) ([]*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Deal
	for _, d := range s.data {
		if d.Active {
			dealCopy := *d
			result = append(result, &dealCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return dealLess(result[i], result[j], sortBy)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByItemID retrieves a deal by item ID.
func (s *DealStore) GetByItemID(_ context.Context, itemID string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[itemID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	dealCopy := *d
	return &dealCopy, nil
}

// UpdateStatus sets the operator workflow status for a deal.
func (s *DealStore) UpdateStatus(_ context.Context, itemID string, status domain.DealStatus) error {
	if !domain.ValidStatus(status) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data[itemID]
	if !ok {
		return storage.ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = s.now()
	return nil
}

// dealLess implements the tie-broken orderings of storage.ActiveSort.
func dealLess(a, b *domain.Deal, sortBy storage.ActiveSort) bool {
	switch sortBy {
	case storage.SortByProfit:
		if a.EstimatedProfit != b.EstimatedProfit {
			return a.EstimatedProfit > b.EstimatedProfit
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return endTimeLess(a, b)

	case storage.SortByEndTime:
		if el := endTimeLess(a, b); el || endTimeLess(b, a) {
			return el
		}
		return a.Score > b.Score

	default: // SortByScore
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.EstimatedProfit != b.EstimatedProfit {
			return a.EstimatedProfit > b.EstimatedProfit
		}
		return endTimeLess(a, b)
	}
}

// endTimeLess orders soonest end time first; deals without one sort last.
func endTimeLess(a, b *domain.Deal) bool {
	switch {
	case a.EndTime == nil:
		return false
	case b.EndTime == nil:
		return true
	default:
		return a.EndTime.Before(*b.EndTime)
	}
}

// Verify interface compliance at compile time.
var _ storage.DealStore = (*DealStore)(nil)
