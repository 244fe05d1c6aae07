package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// IngestionRunRepository stores the outcome of each upload.
type IngestionRunRepository interface {
	Create(ctx context.Context, run *models.IngestionRun) error
	Update(ctx context.Context, run *models.IngestionRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error)
}

type ingestionRunRepository struct {
	db *database.DB
}

// NewIngestionRunRepository creates a new IngestionRunRepository.
func NewIngestionRunRepository(db *database.DB) IngestionRunRepository {
	return &ingestionRunRepository{db: db}
}

var _ IngestionRunRepository = (*ingestionRunRepository)(nil)

func (r *ingestionRunRepository) Create(ctx context.Context, run *models.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (id, kind, source_name, file_name, stage)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING started_at`

	err := r.db.Pool.QueryRow(ctx, query,
		run.RunID, run.Kind, run.Source, run.FileName, run.Stage,
	).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}
	return nil
}

func (r *ingestionRunRepository) Update(ctx context.Context, run *models.IngestionRun) error {
	query := `
		UPDATE ingestion_runs
		SET stage = $2, failed_stage = $3, error_kind = $4, error_message = $5,
		    rows_read = $6, records_mapped = $7, duplicates_dropped = $8,
		    created = $9, updated = $10, skipped = $11, batches_committed = $12,
		    finished_at = $13
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query,
		run.RunID, run.Stage, run.FailedStage, run.ErrorKind, run.ErrorMessage,
		run.RowsRead, run.RecordsMapped, run.DuplicatesDropped,
		run.Created, run.Updated, run.Skipped, run.BatchesCommitted,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update ingestion run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *ingestionRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	query := `
		SELECT id, kind, source_name, file_name, stage, failed_stage, error_kind, error_message,
		       rows_read, records_mapped, duplicates_dropped, created, updated, skipped,
		       batches_committed, started_at, finished_at
		FROM ingestion_runs
		WHERE id = $1`

	var run models.IngestionRun
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.RunID, &run.Kind, &run.Source, &run.FileName, &run.Stage,
		&run.FailedStage, &run.ErrorKind, &run.ErrorMessage,
		&run.RowsRead, &run.RecordsMapped, &run.DuplicatesDropped,
		&run.Created, &run.Updated, &run.Skipped, &run.BatchesCommitted,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingestion run: %w", err)
	}
	return &run, nil
}
