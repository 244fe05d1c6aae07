//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/testhelpers"
)

func Test_001_InitialSchema(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	for _, table := range []string{
		"sources", "soil_profiles", "layers", "properties",
		"profile_properties", "layer_properties", "ingestion_runs",
	} {
		var exists bool
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	columns := map[string]string{
		"source_native_id":    "character varying",
		"external_code":       "character varying",
		"location":            "USER-DEFINED",
		"remote_sensing_data": "jsonb",
		"sampling_date":       "timestamp with time zone",
	}
	for colName, expectedType := range columns {
		var dataType string
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = 'soil_profiles'
			AND column_name = $1
		`, colName).Scan(&dataType)
		require.NoError(t, err, "Column %s should exist", colName)
		assert.Equal(t, expectedType, dataType, "Column %s should have type %s", colName, expectedType)
	}

	// The natural key must be a real constraint so ON CONFLICT can target it.
	var constraintDef string
	err := engineDB.DB.Pool.QueryRow(ctx, `
		SELECT pg_get_constraintdef(oid)
		FROM pg_constraint
		WHERE conname = 'soil_profiles_location_source_key'
	`).Scan(&constraintDef)
	require.NoError(t, err)
	assert.Equal(t, "UNIQUE (location, source_id)", constraintDef)

	var srid int
	err = engineDB.DB.Pool.QueryRow(ctx, `
		SELECT srid FROM geometry_columns
		WHERE f_table_name = 'soil_profiles' AND f_geometry_column = 'location'
	`).Scan(&srid)
	require.NoError(t, err)
	assert.Equal(t, 4326, srid)
}

func Test_Migrations_Idempotent(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)

	sqlDB, err := sql.Open("pgx", engineDB.ConnStr)
	require.NoError(t, err)
	defer sqlDB.Close()

	// Already applied by the shared helper; a second run is a no-op.
	require.NoError(t, database.RunMigrations(sqlDB, zap.NewNop()))
}
