package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
)

// UpsertOutcome accumulates the per-batch results of one bulk upsert.
type UpsertOutcome struct {
	Created          int
	Updated          int
	Skipped          int
	BatchesCommitted int
}

// BatchError reports the batch that failed. Batches before it stay
// committed; batches after it are never attempted.
type BatchError struct {
	Batch            int // 1-based
	CommittedBatches int
	Err              error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d committed: %v", e.Batch, e.CommittedBatches, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BulkUpserter writes deduplicated records in fixed-size transactional batches.
type BulkUpserter interface {
	UpsertProfiles(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (UpsertOutcome, error)
	UpsertLayers(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (UpsertOutcome, error)
}

type bulkUpsertEngine struct {
	profileRepo repositories.ProfileRepository
	layerRepo   repositories.LayerRepository
	batchSize   int
	logger      *zap.Logger
}

// NewBulkUpsertEngine creates a BulkUpserter. batchSize must be positive.
func NewBulkUpsertEngine(
	profileRepo repositories.ProfileRepository,
	layerRepo repositories.LayerRepository,
	batchSize int,
	logger *zap.Logger,
) BulkUpserter {
	return &bulkUpsertEngine{
		profileRepo: profileRepo,
		layerRepo:   layerRepo,
		batchSize:   batchSize,
		logger:      logger.Named("bulk-upsert"),
	}
}

var _ BulkUpserter = (*bulkUpsertEngine)(nil)

func (e *bulkUpsertEngine) UpsertProfiles(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (UpsertOutcome, error) {
	return upsertInBatches(ctx, e.logger, e.batchSize, records, func(ctx context.Context, batch []ingestion.ProfileRecord) (repositories.BatchResult, error) {
		return e.profileRepo.UpsertBatch(ctx, sourceID, batch)
	})
}

func (e *bulkUpsertEngine) UpsertLayers(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (UpsertOutcome, error) {
	return upsertInBatches(ctx, e.logger, e.batchSize, records, func(ctx context.Context, batch []ingestion.LayerRecord) (repositories.BatchResult, error) {
		return e.layerRepo.UpsertBatch(ctx, sourceID, batch)
	})
}

// upsertInBatches applies write to each chunk in order and stops at the
// first failure.
func upsertInBatches[T any](
	ctx context.Context,
	logger *zap.Logger,
	batchSize int,
	items []T,
	write func(context.Context, []T) (repositories.BatchResult, error),
) (UpsertOutcome, error) {
	var out UpsertOutcome
	if batchSize <= 0 {
		return out, fmt.Errorf("invalid batch size %d: %w", batchSize, apperrors.ErrInvalidValue)
	}

	batches := ingestion.Chunk(items, batchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return out, &BatchError{
				Batch:            i + 1,
				CommittedBatches: out.BatchesCommitted,
				Err:              fmt.Errorf("%w: %w", apperrors.ErrPersistence, err),
			}
		}

		res, err := write(ctx, batch)
		if err != nil {
			logger.Error("Batch failed, stopping",
				zap.Int("batch", i+1),
				zap.Int("batches_total", len(batches)),
				zap.Int("batches_committed", out.BatchesCommitted),
				zap.Error(err))
			return out, &BatchError{Batch: i + 1, CommittedBatches: out.BatchesCommitted, Err: err}
		}

		out.Created += res.Created
		out.Updated += res.Updated
		out.Skipped += res.Skipped
		out.BatchesCommitted++

		logger.Debug("Batch committed",
			zap.Int("batch", i+1),
			zap.Int("size", len(batch)),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated))
	}
	return out, nil
}
