package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
)

func TestSourceService_Create(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := newMockSourceRepository()
	svc := NewSourceService(repo, &mockAdapterValidator{missing: map[string]bool{"GLOSIS": true}}, zap.New(core))

	src := &models.Source{Name: "  IRD  ", Description: "IRD survey"}
	require.NoError(t, svc.Create(context.Background(), src))
	assert.Equal(t, "IRD", src.Name)
	assert.Equal(t, 0, logs.Len())

	require.NoError(t, svc.Create(context.Background(), &models.Source{Name: "GLOSIS"}))
	assert.Equal(t, 1, logs.Len(), "a source without adapter is accepted with a warning")

	err := svc.Create(context.Background(), &models.Source{Name: "IRD"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSourceService_Create_InvalidName(t *testing.T) {
	svc := NewSourceService(newMockSourceRepository(), &mockAdapterValidator{}, zap.NewNop())

	assert.ErrorIs(t, svc.Create(context.Background(), &models.Source{Name: " "}), apperrors.ErrInvalidValue)
	assert.ErrorIs(t, svc.Create(context.Background(), &models.Source{Name: strings.Repeat("x", 101)}), apperrors.ErrInvalidValue)
}

func TestSourceService_ValidateAdapters(t *testing.T) {
	repo := newMockSourceRepository(&models.Source{ID: 1, Name: "IRD"}, &models.Source{ID: 2, Name: "GLOSIS"})
	svc := NewSourceService(repo, &mockAdapterValidator{missing: map[string]bool{"GLOSIS": true}}, zap.NewNop())

	missing, err := svc.ValidateAdapters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GLOSIS"}, missing)
}

func TestProfileService_ListFeatures(t *testing.T) {
	country := "Senegal"
	repo := &mockProfileRepository{
		profiles: []*models.Profile{{
			ID:                42,
			SourceName:        "IRD",
			SourceNativeID:    "101",
			ExternalCode:      "IRD-101",
			Location:          geo.Coordinate{Lon: -16.5, Lat: 14.25},
			Country:           &country,
			RemoteSensingData: json.RawMessage(`{"S1":{"VV":-12}}`),
			CreatedAt:         time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
		total: 7,
	}
	svc := NewProfileService(repo, &mockLayerRepository{}, zap.NewNop())

	page, err := svc.ListFeatures(context.Background(), models.ProfileFilter{SourceNames: []string{"IRD"}, Limit: 5000})
	require.NoError(t, err)

	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, MaxProfilePageSize, repo.lastFilter.Limit)
	require.Len(t, page.Collection.Features, 1)

	b, err := json.Marshal(page.Collection)
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	f := doc.Features[0]
	assert.Equal(t, "42", f.ID)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-16.5, 14.25}, f.Geometry.Coordinates)
	assert.Equal(t, "IRD-101", f.Properties["external_code"])
	assert.Equal(t, "Senegal", f.Properties["country"])
	assert.Contains(t, f.Properties, "remote_sensing_data")
}

func TestProfileService_ListFeatures_Empty(t *testing.T) {
	svc := NewProfileService(&mockProfileRepository{}, &mockLayerRepository{}, zap.NewNop())

	page, err := svc.ListFeatures(context.Background(), models.ProfileFilter{})
	require.NoError(t, err)

	b, err := json.Marshal(page.Collection)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(b))
}

func TestProfileService_ListLayers(t *testing.T) {
	repo := &mockProfileRepository{profiles: []*models.Profile{{ID: 1}}}
	layers := &mockLayerRepository{layers: map[int64][]*models.Layer{
		1: {{ID: 10, ProfileID: 1, Name: "A", DepthTop: 0, DepthBottom: 15}},
	}}
	svc := NewProfileService(repo, layers, zap.NewNop())

	got, err := svc.ListLayers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)

	_, err = svc.ListLayers(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
