package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// SourceRepository provides data access for the source catalog.
type SourceRepository interface {
	Create(ctx context.Context, source *models.Source) error
	Upsert(ctx context.Context, source *models.Source) error
	GetByID(ctx context.Context, id int64) (*models.Source, error)
	GetByName(ctx context.Context, name string) (*models.Source, error)
	List(ctx context.Context) ([]*models.Source, error)
	Names(ctx context.Context) ([]string, error)
}

type sourceRepository struct {
	db *database.DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *database.DB) SourceRepository {
	return &sourceRepository{db: db}
}

var _ SourceRepository = (*sourceRepository)(nil)

const sourceColumns = `
	s.id, s.name, s.description, s.url, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM soil_profiles p WHERE p.source_id = s.id)`

func (r *sourceRepository) Create(ctx context.Context, source *models.Source) error {
	query := `
		INSERT INTO sources (name, description, url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query, source.Name, source.Description, source.URL).
		Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		if database.PgErrorCode(err) == database.CodeUniqueViolation {
			return fmt.Errorf("source %q already exists: %w", source.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// Upsert creates the source or refreshes its description and URL by name.
func (r *sourceRepository) Upsert(ctx context.Context, source *models.Source) error {
	query := `
		INSERT INTO sources (name, description, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
		    url = EXCLUDED.url,
		    updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query, source.Name, source.Description, source.URL).
		Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (r *sourceRepository) GetByID(ctx context.Context, id int64) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources s WHERE s.id = $1`
	return r.getOne(ctx, query, id)
}

func (r *sourceRepository) GetByName(ctx context.Context, name string) (*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources s WHERE s.name = $1`
	return r.getOne(ctx, query, name)
}

func (r *sourceRepository) getOne(ctx context.Context, query string, arg any) (*models.Source, error) {
	s, err := scanSource(r.db.Pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *sourceRepository) List(ctx context.Context) ([]*models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources s ORDER BY s.name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*models.Source, 0)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

func (r *sourceRepository) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT name FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list source names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect source names: %w", err)
	}
	return names, nil
}

func scanSource(row pgx.Row) (*models.Source, error) {
	var s models.Source
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.URL, &s.CreatedAt, &s.UpdatedAt, &s.ProfileCount)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
