//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestEngineDB_PostGISAvailable(t *testing.T) {
	engineDB := GetEngineDB(t)
	ctx := context.Background()

	var version string
	err := engineDB.DB.Pool.QueryRow(ctx, "SELECT postgis_lib_version()").Scan(&version)
	if err != nil {
		t.Fatalf("postgis is not installed: %v", err)
	}
	if version == "" {
		t.Error("expected a PostGIS version")
	}
}

func TestEngineDB_Truncate(t *testing.T) {
	engineDB := GetEngineDB(t)
	ctx := context.Background()

	_, err := engineDB.DB.Pool.Exec(ctx, "INSERT INTO sources (name) VALUES ('TRUNCATE_ME')")
	if err != nil {
		t.Fatalf("failed to insert source: %v", err)
	}

	engineDB.TruncateAll(t)

	var count int
	if err := engineDB.DB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM sources").Scan(&count); err != nil {
		t.Fatalf("failed to count sources: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty sources table, got %d rows", count)
	}
}
