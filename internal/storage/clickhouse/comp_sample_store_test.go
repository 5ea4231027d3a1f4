package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-deal-scanner/internal/domain"
	"card-deal-scanner/internal/storage"
)

func TestCompSampleStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCompSampleStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op.
	require.NoError(t, store.InsertBulk(ctx, nil))

	observed := time.Now().UTC().Truncate(time.Millisecond)
	samples := []*domain.CompSample{
		{RunID: "run-1", ItemID: "it-1", CompQuery: "prizm qb auto", Price: 120, ObservedAt: observed},
		{RunID: "run-1", ItemID: "it-1", CompQuery: "prizm qb auto", Price: 128, ObservedAt: observed},
		{RunID: "run-2", ItemID: "it-2", CompQuery: "mosaic rb rookie", Price: 55, ObservedAt: observed},
	}
	require.NoError(t, store.InsertBulk(ctx, samples))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "it-1", got[0].ItemID)
	assert.Equal(t, "prizm qb auto", got[0].CompQuery)
	assert.WithinDuration(t, observed, got[0].ObservedAt, time.Millisecond)

	prices := []float64{got[0].Price, got[1].Price}
	assert.ElementsMatch(t, []float64{120, 128}, prices)

	other, err := store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.InDelta(t, 55, other[0].Price, 0.001)

	empty, err := store.GetByRunID(ctx, "run-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCompSampleStore_NilSample(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCompSampleStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.CompSample{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
