package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
)

// AdapterValidator reports registered source names with no adapter.
// *soilsource.Registry implements it.
type AdapterValidator interface {
	Validate(sourceNames []string) []string
}

// SourceService manages the source catalog.
type SourceService interface {
	List(ctx context.Context) ([]*models.Source, error)
	Get(ctx context.Context, id int64) (*models.Source, error)
	Create(ctx context.Context, source *models.Source) error

	// ValidateAdapters returns the names of registered sources that no
	// adapter can ingest.
	ValidateAdapters(ctx context.Context) ([]string, error)
}

type sourceService struct {
	sourceRepo repositories.SourceRepository
	adapters   AdapterValidator
	logger     *zap.Logger
}

// NewSourceService creates a new SourceService.
func NewSourceService(sourceRepo repositories.SourceRepository, adapters AdapterValidator, logger *zap.Logger) SourceService {
	return &sourceService{
		sourceRepo: sourceRepo,
		adapters:   adapters,
		logger:     logger.Named("sources"),
	}
}

var _ SourceService = (*sourceService)(nil)

func (s *sourceService) List(ctx context.Context) ([]*models.Source, error) {
	return s.sourceRepo.List(ctx)
}

func (s *sourceService) Get(ctx context.Context, id int64) (*models.Source, error) {
	return s.sourceRepo.GetByID(ctx, id)
}

func (s *sourceService) Create(ctx context.Context, source *models.Source) error {
	source.Name = strings.TrimSpace(source.Name)
	if source.Name == "" {
		return fmt.Errorf("source name is required: %w", apperrors.ErrInvalidValue)
	}
	if len(source.Name) > 100 {
		return fmt.Errorf("source name longer than 100 characters: %w", apperrors.ErrInvalidValue)
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return err
	}

	if missing := s.adapters.Validate([]string{source.Name}); len(missing) > 0 {
		s.logger.Warn("Source created without an ingestion adapter; uploads for it will be rejected",
			zap.String("source", source.Name))
	}
	return nil
}

func (s *sourceService) ValidateAdapters(ctx context.Context) ([]string, error) {
	names, err := s.sourceRepo.Names(ctx)
	if err != nil {
		return nil, err
	}
	return s.adapters.Validate(names), nil
}
