package memory

import (
	"context"
	"sync"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

// CompSampleStore is an in-memory implementation of storage.CompSampleStore.
type CompSampleStore struct {
	mu      sync.RWMutex
	samples []*domain.CompSample
}

// NewCompSampleStore creates a new in-memory comp sample store.
func NewCompSampleStore() *CompSampleStore {
	return &CompSampleStore{}
}

// InsertBulk appends a batch of samples.
func (s *CompSampleStore) InsertBulk(_ context.Context, samples []*domain.CompSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		if sample == nil {
			return storage.ErrInvalidInput
		}
		sampleCopy := *sample
		s.samples = append(s.samples, &sampleCopy)
	}
	return nil
}

// All returns a copy of every recorded sample, used by tests.
func (s *CompSampleStore) All() []*domain.CompSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CompSample, 0, len(s.samples))
	for _, sample := range s.samples {
		sampleCopy := *sample
		out = append(out, &sampleCopy)
	}
	return out
}

// Verify interface compliance at compile time.
var _ storage.CompSampleStore = (*CompSampleStore)(nil)
