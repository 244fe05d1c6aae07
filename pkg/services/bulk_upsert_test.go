package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
)

func profileRecords(n int) []ingestion.ProfileRecord {
	out := make([]ingestion.ProfileRecord, n)
	for i := range out {
		out[i] = ingestion.ProfileRecord{
			Line:           i + 2,
			SourceNativeID: fmt.Sprint(i + 1),
			ExternalCode:   fmt.Sprintf("IRD-%d", i+1),
			Location:       geo.Coordinate{Lon: -16 + float64(i)*0.001, Lat: 14},
		}
	}
	return out
}

func TestBulkUpsert_AllBatchesCommitted(t *testing.T) {
	repo := &mockProfileRepository{
		results: []repositories.BatchResult{
			{Created: 2},
			{Created: 1, Updated: 1},
			{Updated: 1},
		},
	}
	engine := NewBulkUpsertEngine(repo, &mockLayerRepository{}, 2, zap.NewNop())

	out, err := engine.UpsertProfiles(context.Background(), 1, profileRecords(5))
	require.NoError(t, err)

	require.Len(t, repo.batches, 3)
	assert.Len(t, repo.batches[0], 2)
	assert.Len(t, repo.batches[2], 1)
	assert.Equal(t, UpsertOutcome{Created: 3, Updated: 2, BatchesCommitted: 3}, out)
}

func TestBulkUpsert_StopsAtFirstFailingBatch(t *testing.T) {
	boom := fmt.Errorf("failed to upsert profiles: %w", apperrors.ErrPersistence)
	repo := &mockProfileRepository{errs: []error{nil, boom}}
	engine := NewBulkUpsertEngine(repo, &mockLayerRepository{}, 200, zap.NewNop())

	out, err := engine.UpsertProfiles(context.Background(), 1, profileRecords(600))
	require.Error(t, err)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, 1, batchErr.CommittedBatches)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)

	assert.Len(t, repo.batches, 2, "batch 3 must never be attempted")
	assert.Equal(t, 1, out.BatchesCommitted)
	assert.Equal(t, 200, out.Created)
}

func TestBulkUpsert_EmptyInput(t *testing.T) {
	repo := &mockProfileRepository{}
	engine := NewBulkUpsertEngine(repo, &mockLayerRepository{}, 10, zap.NewNop())

	out, err := engine.UpsertProfiles(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, UpsertOutcome{}, out)
	assert.Empty(t, repo.batches)
}

func TestBulkUpsert_InvalidBatchSize(t *testing.T) {
	engine := NewBulkUpsertEngine(&mockProfileRepository{}, &mockLayerRepository{}, 0, zap.NewNop())

	_, err := engine.UpsertProfiles(context.Background(), 1, profileRecords(1))
	assert.ErrorIs(t, err, apperrors.ErrInvalidValue)
}

func TestBulkUpsert_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &mockProfileRepository{}
	engine := NewBulkUpsertEngine(repo, &mockLayerRepository{}, 10, zap.NewNop())

	_, err := engine.UpsertProfiles(ctx, 1, profileRecords(3))
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Batch)
	assert.Equal(t, 0, batchErr.CommittedBatches)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.batches)
}

func TestBulkUpsert_Layers(t *testing.T) {
	layers := &mockLayerRepository{result: repositories.BatchResult{Created: 1, Skipped: 1}}
	engine := NewBulkUpsertEngine(&mockProfileRepository{}, layers, 2, zap.NewNop())

	records := []ingestion.LayerRecord{
		{ProfileNativeID: "1", Name: "A", TopCM: 0, BottomCM: 10},
		{ProfileNativeID: "2", Name: "A", TopCM: 0, BottomCM: 10},
		{ProfileNativeID: "1", Name: "B", TopCM: 10, BottomCM: 30},
	}
	out, err := engine.UpsertLayers(context.Background(), 1, records)
	require.NoError(t, err)

	assert.Len(t, layers.batches, 2)
	assert.Equal(t, UpsertOutcome{Created: 2, Skipped: 2, BatchesCommitted: 2}, out)
}
