package clickhouse

import (
	"context"
	"fmt"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

// CompSampleStore implements storage.CompSampleStore using ClickHouse.
// comp_price_samples is an append-only MergeTree; no uniqueness is enforced.
type CompSampleStore struct {
	conn *Conn
}

// NewCompSampleStore creates a new CompSampleStore.
func NewCompSampleStore(conn *Conn) *CompSampleStore {
	return &CompSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CompSampleStore = (*CompSampleStore)(nil)

// InsertBulk appends a batch of samples.
func (s *CompSampleStore) InsertBulk(ctx context.Context, samples []*domain.CompSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO comp_price_samples (
			run_id, item_id, comp_query, price, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sample := range samples {
		if sample == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			sample.RunID, sample.ItemID, sample.CompQuery,
			sample.Price, sample.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all samples for a run, ordered by observation time.
func (s *CompSampleStore) GetByRunID(ctx context.Context, runID string) ([]*domain.CompSample, error) {
	query := `
		SELECT run_id, item_id, comp_query, price, observed_at
		FROM comp_price_samples
		WHERE run_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var samples []*domain.CompSample
	for rows.Next() {
		var sample domain.CompSample
		err := rows.Scan(
			&sample.RunID, &sample.ItemID, &sample.CompQuery,
			&sample.Price, &sample.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan comp sample row: %w", err)
		}
		samples = append(samples, &sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comp sample rows: %w", err)
	}

	return samples, nil
}
