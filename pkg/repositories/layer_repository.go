package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// LayerRepository provides data access for profile layers.
type LayerRepository interface {
	// UpsertBatch attaches layers to every profile of sourceID that carries
	// the layer's native profile id. Each input layer is counted once:
	// layers whose profile is unknown are skipped.
	UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (BatchResult, error)
	ListByProfile(ctx context.Context, profileID int64) ([]*models.Layer, error)
}

type layerRepository struct {
	db *database.DB
}

// NewLayerRepository creates a new LayerRepository.
func NewLayerRepository(db *database.DB) LayerRepository {
	return &layerRepository{db: db}
}

var _ LayerRepository = (*layerRepository)(nil)

func (r *layerRepository) UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (BatchResult, error) {
	var result BatchResult
	if len(records) == 0 {
		return result, nil
	}

	n := len(records)
	profileIDs := make([]string, n)
	names := make([]string, n)
	tops := make([]float64, n)
	bottoms := make([]float64, n)
	carbons := make([]pgtype.Float8, n)
	for i, rec := range records {
		profileIDs[i] = rec.ProfileNativeID
		names[i] = rec.Name
		tops[i] = rec.TopCM
		bottoms[i] = rec.BottomCM
		carbons[i] = float8OrNull(rec.OrganicCarbon)
	}

	// A native id may name profiles at several locations; the layer is
	// attached to each of them. Counts are per input row: created when any
	// attachment was new, skipped when no profile matched.
	query := `
		WITH input AS (
			SELECT * FROM unnest($2::text[], $3::text[], $4::float8[], $5::float8[], $6::float8[])
			       WITH ORDINALITY AS t(native_id, name, top, bottom, carbon, ord)
		), matched AS (
			SELECT i.ord, p.id AS profile_id, i.name, i.top, i.bottom, i.carbon
			FROM input i
			JOIN soil_profiles p ON p.source_id = $1 AND p.source_native_id = i.native_id
		), written AS (
			INSERT INTO layers (profile_id, name, depth_top, depth_bottom, carbon_content)
			SELECT profile_id, name, top, bottom, carbon FROM matched
			ON CONFLICT (profile_id, name) DO UPDATE
			SET depth_top = EXCLUDED.depth_top,
			    depth_bottom = EXCLUDED.depth_bottom,
			    carbon_content = EXCLUDED.carbon_content,
			    updated_at = now()
			RETURNING profile_id, name, (xmax = 0) AS inserted
		)
		SELECT bool_or(w.inserted)
		FROM matched m
		JOIN written w ON w.profile_id = m.profile_id AND w.name = m.name
		GROUP BY m.ord`

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, sourceID, profileIDs, names, tops, bottoms, carbons)
		if err != nil {
			return err
		}
		inserted, err := pgx.CollectRows(rows, pgx.RowTo[bool])
		if err != nil {
			return err
		}
		for _, ins := range inserted {
			if ins {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, classifyWriteError("upsert layers", err)
	}

	result.Skipped = n - result.Created - result.Updated
	return result, nil
}

func (r *layerRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.Layer, error) {
	query := `
		SELECT id, profile_id, name, depth_top::float8, depth_bottom::float8,
		       description, carbon_content::float8, created_at, updated_at
		FROM layers
		WHERE profile_id = $1
		ORDER BY depth_top, name`

	rows, err := r.db.Pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()

	layers := make([]*models.Layer, 0)
	for rows.Next() {
		var l models.Layer
		err := rows.Scan(&l.ID, &l.ProfileID, &l.Name, &l.DepthTop, &l.DepthBottom,
			&l.Description, &l.CarbonContent, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layers: %w", err)
	}
	return layers, nil
}
