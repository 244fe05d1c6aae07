package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

// BatchResult counts the rows an upsert statement inserted or updated.
type BatchResult struct {
	Created int
	Updated int
	Skipped int
}

// ProfileRepository provides data access for soil profiles.
type ProfileRepository interface {
	// UpsertBatch applies one batch in a single transaction keyed by
	// (location, source). Conflicting rows only get location, source and
	// source_native_id rewritten; remote_sensing_data is never touched.
	UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (BatchResult, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error)
	Count(ctx context.Context, filter models.ProfileFilter) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Profile, error)
	// ListIdentities pages profiles by ascending id.
	ListIdentities(ctx context.Context, afterID int64, limit int) ([]models.ProfileIdentity, error)
	// MergeRemoteSensing merges each patch into remote_sensing_data with
	// jsonb concatenation, all patches in one transaction.
	MergeRemoteSensing(ctx context.Context, patches []models.RemoteSensingPatch) (int64, error)
}

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

func (r *profileRepository) UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (BatchResult, error) {
	var result BatchResult
	if len(records) == 0 {
		return result, nil
	}

	n := len(records)
	nativeIDs := make([]string, n)
	codes := make([]string, n)
	geoms := make([][]byte, n)
	descriptions := make([]string, n)
	dates := make([]pgtype.Timestamptz, n)
	countries := make([]pgtype.Text, n)
	for i, rec := range records {
		g, err := geo.EncodePoint(rec.Location)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		nativeIDs[i] = rec.SourceNativeID
		codes[i] = rec.ExternalCode
		geoms[i] = g
		descriptions[i] = rec.Description
		dates[i] = timestamptzOrNull(rec.SamplingDate)
		countries[i] = textOrNull(rec.Country)
	}

	query := `
		INSERT INTO soil_profiles (
			source_id, source_native_id, external_code, location,
			description, sampling_date, country, remote_sensing_data
		)
		SELECT $1, t.native_id, t.code, ST_GeomFromEWKB(t.geom),
		       t.description, t.sampling_date, t.country, '{}'::jsonb
		FROM unnest($2::text[], $3::text[], $4::bytea[], $5::text[], $6::timestamptz[], $7::text[])
		     AS t(native_id, code, geom, description, sampling_date, country)
		ON CONFLICT (location, source_id) DO UPDATE
		SET location = EXCLUDED.location,
		    source_id = EXCLUDED.source_id,
		    source_native_id = EXCLUDED.source_native_id,
		    updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, sourceID, nativeIDs, codes, geoms, descriptions, dates, countries)
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
		return BatchResult{}, classifyWriteError("upsert profiles", err)
	}
	return result, nil
}

const profileSelect = `
	SELECT p.id, p.source_id, COALESCE(s.name, ''), p.source_native_id, p.external_code,
	       ST_AsEWKB(p.location), p.description, p.sampling_date, p.country,
	       p.remote_sensing_data, p.created_at, p.updated_at
	FROM soil_profiles p
	LEFT JOIN sources s ON s.id = p.source_id`

const profileFilterWhere = `
	WHERE ($1::text[] IS NULL OR s.name = ANY($1))
	  AND ($2::float8 IS NULL OR p.location && ST_MakeEnvelope($2, $3, $4, $5, 4326))`

func filterArgs(f models.ProfileFilter) []any {
	var names []string
	if len(f.SourceNames) > 0 {
		names = f.SourceNames
	}
	var minLon, minLat, maxLon, maxLat *float64
	if f.BBox != nil {
		minLon, minLat, maxLon, maxLat = &f.BBox.MinLon, &f.BBox.MinLat, &f.BBox.MaxLon, &f.BBox.MaxLat
	}
	return []any{names, minLon, minLat, maxLon, maxLat}
}

func (r *profileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error) {
	query := profileSelect + profileFilterWhere + ` ORDER BY p.id LIMIT $6 OFFSET $7`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args := append(filterArgs(filter), limit, max(filter.Offset, 0))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

func (r *profileRepository) Count(ctx context.Context, filter models.ProfileFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM soil_profiles p LEFT JOIN sources s ON s.id = p.source_id` + profileFilterWhere

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, filterArgs(filter)...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, profileSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (r *profileRepository) ListIdentities(ctx context.Context, afterID int64, limit int) ([]models.ProfileIdentity, error) {
	query := `
		SELECT id, ST_AsEWKB(location)
		FROM soil_profiles
		WHERE id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile identities: %w", err)
	}
	defer rows.Close()

	var identities []models.ProfileIdentity
	for rows.Next() {
		var (
			id   int64
			ewkb []byte
		)
		if err := rows.Scan(&id, &ewkb); err != nil {
			return nil, fmt.Errorf("failed to scan profile identity: %w", err)
		}
		loc, err := geo.DecodePoint(ewkb)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", id, err)
		}
		identities = append(identities, models.ProfileIdentity{ID: id, Location: loc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile identities: %w", err)
	}
	return identities, nil
}

func (r *profileRepository) MergeRemoteSensing(ctx context.Context, patches []models.RemoteSensingPatch) (int64, error) {
	if len(patches) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(patches))
	docs := make([]string, 0, len(patches))
	for _, p := range patches {
		if len(p.Data) == 0 {
			continue
		}
		b, err := json.Marshal(p.Data)
		if err != nil {
			return 0, fmt.Errorf("profile %d: failed to encode remote sensing data: %w", p.ProfileID, err)
		}
		ids = append(ids, p.ProfileID)
		docs = append(docs, string(b))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE soil_profiles p
		SET remote_sensing_data = COALESCE(p.remote_sensing_data, '{}'::jsonb) || t.data::jsonb
		FROM unnest($1::bigint[], $2::text[]) AS t(id, data)
		WHERE p.id = t.id`

	var affected int64
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, ids, docs)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, classifyWriteError("merge remote sensing data", err)
	}
	return affected, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var (
		p    models.Profile
		ewkb []byte
		rsd  []byte
	)
	err := row.Scan(
		&p.ID, &p.SourceID, &p.SourceName, &p.SourceNativeID, &p.ExternalCode,
		&ewkb, &p.Description, &p.SamplingDate, &p.Country,
		&rsd, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	loc, err := geo.DecodePoint(ewkb)
	if err != nil {
		return nil, err
	}
	p.Location = loc
	p.RemoteSensingData = json.RawMessage(rsd)
	return &p, nil
}

// classifyWriteError maps natural-key conflicts to ErrPersistenceConflict
// and every other write failure to ErrPersistence. The driver error stays
// in the chain.
func classifyWriteError(op string, err error) error {
	if database.IsKeyConflict(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, apperrors.ErrPersistenceConflict, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, apperrors.ErrPersistence, err)
}
