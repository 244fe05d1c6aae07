package services

import (
	"context"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
)

// MaxProfilePageSize caps a single listing page.
const MaxProfilePageSize = 1000

// ProfilePage is one page of profiles as GeoJSON.
type ProfilePage struct {
	Collection *geojson.FeatureCollection
	Total      int64
}

// ProfileService serves read access to profiles and their layers.
type ProfileService interface {
	ListFeatures(ctx context.Context, filter models.ProfileFilter) (*ProfilePage, error)
	Get(ctx context.Context, id int64) (*models.Profile, error)
	GetFeature(ctx context.Context, id int64) (*geojson.Feature, error)
	// ListLayers returns ErrNotFound when the profile does not exist.
	ListLayers(ctx context.Context, profileID int64) ([]*models.Layer, error)
}

type profileService struct {
	profileRepo repositories.ProfileRepository
	layerRepo   repositories.LayerRepository
	logger      *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(
	profileRepo repositories.ProfileRepository,
	layerRepo repositories.LayerRepository,
	logger *zap.Logger,
) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		layerRepo:   layerRepo,
		logger:      logger.Named("profiles"),
	}
}

var _ ProfileService = (*profileService)(nil)

func (s *profileService) ListFeatures(ctx context.Context, filter models.ProfileFilter) (*ProfilePage, error) {
	if filter.Limit > MaxProfilePageSize {
		filter.Limit = MaxProfilePageSize
	}

	profiles, err := s.profileRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.profileRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	features := make([]*geojson.Feature, 0, len(profiles))
	for _, p := range profiles {
		features = append(features, profileFeature(p))
	}
	return &ProfilePage{Collection: geo.NewFeatureCollection(features), Total: total}, nil
}

func (s *profileService) Get(ctx context.Context, id int64) (*models.Profile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

func (s *profileService) GetFeature(ctx context.Context, id int64) (*geojson.Feature, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return profileFeature(p), nil
}

func (s *profileService) ListLayers(ctx context.Context, profileID int64) ([]*models.Layer, error) {
	if _, err := s.profileRepo.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	return s.layerRepo.ListByProfile(ctx, profileID)
}

func profileFeature(p *models.Profile) *geojson.Feature {
	return geo.NewFeature(strconv.FormatInt(p.ID, 10), p.Location, p.Properties())
}
