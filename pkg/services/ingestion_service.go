package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/adapters/soilsource"
	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/logging"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

const maxRunErrorMessage = 1000

// TableReader decodes an uploaded file. *tabular.Reader implements it.
type TableReader interface {
	Read(ctx context.Context, src io.Reader, ext string, enc tabular.TextEncoding) (*tabular.Table, error)
}

// AdapterLookup resolves a source name to its adapter. *soilsource.Registry
// implements it.
type AdapterLookup interface {
	Lookup(name string) (soilsource.Adapter, error)
}

// IngestRequest is one uploaded file.
type IngestRequest struct {
	Source       string
	FileName     string
	File         io.Reader
	Encoding     tabular.TextEncoding
	LocationType soilsource.LocationType
	// ProjectionEPSG overrides the adapter's and the configured default
	// projection. Zero means no override.
	ProjectionEPSG int
}

// IngestionService runs uploads through decode, mapping, normalization,
// deduplication and batched persistence.
type IngestionService interface {
	// IngestProfiles returns a report even on failure once the run has an id.
	IngestProfiles(ctx context.Context, req IngestRequest) (*models.IngestionReport, error)
	IngestLayers(ctx context.Context, req IngestRequest) (*models.IngestionReport, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error)
}

type ingestionService struct {
	sourceRepo  repositories.SourceRepository
	runRepo     repositories.IngestionRunRepository
	reader      TableReader
	adapters    AdapterLookup
	normalizer  *geo.Normalizer
	upserter    BulkUpserter
	defaultEPSG int
	logger      *zap.Logger
}

// NewIngestionService creates a new IngestionService. defaultEPSG applies
// to centroid uploads when neither the request nor the adapter names a
// projection.
func NewIngestionService(
	sourceRepo repositories.SourceRepository,
	runRepo repositories.IngestionRunRepository,
	reader TableReader,
	adapters AdapterLookup,
	normalizer *geo.Normalizer,
	upserter BulkUpserter,
	defaultEPSG int,
	logger *zap.Logger,
) IngestionService {
	return &ingestionService{
		sourceRepo:  sourceRepo,
		runRepo:     runRepo,
		reader:      reader,
		adapters:    adapters,
		normalizer:  normalizer,
		upserter:    upserter,
		defaultEPSG: defaultEPSG,
		logger:      logger.Named("ingestion"),
	}
}

var _ IngestionService = (*ingestionService)(nil)

// pipeline carries one upload through its stages.
type pipeline struct {
	run    *ingestion.Run
	record *models.IngestionRun
	source *models.Source
	logger *zap.Logger
}

func (p *pipeline) advance(to ingestion.Stage) error {
	if err := p.run.Advance(to); err != nil {
		return p.run.Fail(err)
	}
	p.record.Stage = string(to)
	return nil
}

func (s *ingestionService) IngestProfiles(ctx context.Context, req IngestRequest) (*models.IngestionReport, error) {
	p := s.begin(ctx, models.IngestionKindProfiles, req)
	err := s.ingestProfiles(ctx, p, req)
	return s.finish(ctx, p, err)
}

func (s *ingestionService) IngestLayers(ctx context.Context, req IngestRequest) (*models.IngestionReport, error) {
	p := s.begin(ctx, models.IngestionKindLayers, req)
	err := s.ingestLayers(ctx, p, req)
	return s.finish(ctx, p, err)
}

func (s *ingestionService) GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	return s.runRepo.GetByID(ctx, id)
}

func (s *ingestionService) ingestProfiles(ctx context.Context, p *pipeline, req IngestRequest) error {
	adapter, err := s.preconditions(ctx, p, req)
	if err != nil {
		return err
	}
	crs, err := s.resolveCRS(adapter, req)
	if err != nil {
		return p.run.Fail(err)
	}
	p.logger = p.logger.With(zap.Stringer("crs", crs))

	table, err := s.decode(ctx, p, req)
	if err != nil {
		return err
	}

	records, err := adapter.MapProfiles(table, soilsource.Options{LocationType: req.LocationType})
	if err != nil {
		return p.run.Fail(err)
	}
	p.record.RecordsMapped = len(records)
	if err := p.advance(ingestion.StageMapped); err != nil {
		return err
	}

	if err := ingestion.Normalize(s.normalizer, crs, records); err != nil {
		return p.run.Fail(err)
	}
	if err := p.advance(ingestion.StageNormalized); err != nil {
		return err
	}

	unique, dropped := ingestion.DeduplicateProfiles(p.source.ID, records)
	p.record.DuplicatesDropped = dropped
	if err := p.advance(ingestion.StageDeduplicated); err != nil {
		return err
	}
	if dropped > 0 {
		p.logger.Info("Dropped duplicate profiles", zap.Int("dropped", dropped))
	}

	out, err := s.upserter.UpsertProfiles(ctx, p.source.ID, unique)
	p.applyOutcome(out, err)
	if err != nil {
		return p.run.Fail(err)
	}
	return p.advance(ingestion.StagePersisted)
}

func (s *ingestionService) ingestLayers(ctx context.Context, p *pipeline, req IngestRequest) error {
	adapter, err := s.preconditions(ctx, p, req)
	if err != nil {
		return err
	}

	table, err := s.decode(ctx, p, req)
	if err != nil {
		return err
	}

	records, err := adapter.MapLayers(table)
	if err != nil {
		return p.run.Fail(err)
	}
	p.record.RecordsMapped = len(records)
	if err := p.advance(ingestion.StageMapped); err != nil {
		return err
	}

	// Layers carry no coordinates.
	if err := p.advance(ingestion.StageNormalized); err != nil {
		return err
	}

	unique, dropped := ingestion.DeduplicateLayers(records)
	p.record.DuplicatesDropped = dropped
	if err := p.advance(ingestion.StageDeduplicated); err != nil {
		return err
	}

	out, err := s.upserter.UpsertLayers(ctx, p.source.ID, unique)
	p.applyOutcome(out, err)
	if err != nil {
		return p.run.Fail(err)
	}
	if out.Skipped > 0 {
		p.logger.Warn("Layers skipped: no matching profile for this source", zap.Int("skipped", out.Skipped))
	}
	return p.advance(ingestion.StagePersisted)
}

// preconditions resolves the source and its adapter before the file is read.
func (s *ingestionService) preconditions(ctx context.Context, p *pipeline, req IngestRequest) (soilsource.Adapter, error) {
	if req.Source == "" {
		return nil, p.run.Fail(fmt.Errorf("no source given: %w", apperrors.ErrMissingSource))
	}

	source, err := s.sourceRepo.GetByName(ctx, req.Source)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, p.run.Fail(fmt.Errorf("source %q is not registered: %w", req.Source, apperrors.ErrMissingSource))
		}
		return nil, p.run.Fail(fmt.Errorf("failed to resolve source %q: %w", req.Source, err))
	}
	p.source = source

	adapter, err := s.adapters.Lookup(source.Name)
	if err != nil {
		return nil, p.run.Fail(err)
	}
	return adapter, nil
}

func (s *ingestionService) decode(ctx context.Context, p *pipeline, req IngestRequest) (*tabular.Table, error) {
	table, err := s.reader.Read(ctx, req.File, filepath.Ext(req.FileName), req.Encoding)
	if err != nil {
		return nil, p.run.Fail(err)
	}
	p.record.RowsRead = len(table.Rows)
	if err := p.advance(ingestion.StageDecoded); err != nil {
		return nil, err
	}
	return table, nil
}

// resolveCRS picks the request projection, then the adapter default, then
// the configured default. Longitude and latitude uploads are already WGS84
// and ignore any projection zone.
func (s *ingestionService) resolveCRS(adapter soilsource.Adapter, req IngestRequest) (geo.CRS, error) {
	if req.LocationType != soilsource.LocationCentroid {
		return geo.ParseCRS(geo.EPSGWGS84)
	}
	epsg := req.ProjectionEPSG
	if epsg == 0 {
		epsg = adapter.Info().DefaultProjectionEPSG
	}
	if epsg == 0 {
		epsg = s.defaultEPSG
	}
	return geo.ParseCRS(epsg)
}

func (p *pipeline) applyOutcome(out UpsertOutcome, err error) {
	p.record.Created = out.Created
	p.record.Updated = out.Updated
	p.record.Skipped = out.Skipped
	p.record.BatchesCommitted = out.BatchesCommitted

	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		p.record.BatchesCommitted = batchErr.CommittedBatches
	}
}

func (s *ingestionService) begin(ctx context.Context, kind string, req IngestRequest) *pipeline {
	run := ingestion.NewRun()
	p := &pipeline{
		run: run,
		record: &models.IngestionRun{
			IngestionReport: models.IngestionReport{
				RunID:  run.ID,
				Kind:   kind,
				Source: req.Source,
				Stage:  string(run.Stage()),
			},
			FileName: req.FileName,
		},
		logger: s.logger.With(
			zap.String("run_id", run.ID.String()),
			zap.String("kind", kind),
			zap.String("source", req.Source),
			zap.String("file", req.FileName),
		),
	}

	if err := s.runRepo.Create(ctx, p.record); err != nil {
		p.logger.Warn("Failed to record ingestion run start", zap.Error(err))
	}
	return p
}

func (s *ingestionService) finish(ctx context.Context, p *pipeline, err error) (*models.IngestionReport, error) {
	now := time.Now().UTC()
	p.record.FinishedAt = &now
	p.record.Stage = string(p.run.Stage())

	if err != nil {
		// Fail is a no-op on an already failed run.
		p.run.Fail(err)
		failed := string(p.run.FailedAt())
		kind := p.run.ErrorKind()
		msg := logging.TruncateString(logging.SanitizeError(err), maxRunErrorMessage)
		p.record.Stage = string(ingestion.StageFailed)
		p.record.FailedStage = &failed
		p.record.ErrorKind = &kind
		p.record.ErrorMessage = &msg

		fields := []zap.Field{
			zap.String("failed_stage", failed),
			zap.String("error_kind", kind),
			zap.Int("batches_committed", p.record.BatchesCommitted),
			zap.Error(err),
		}
		if apperrors.IsValidation(err) {
			p.logger.Warn("Ingestion rejected", fields...)
		} else {
			p.logger.Error("Ingestion failed", fields...)
		}
	} else {
		p.logger.Info("Ingestion completed",
			zap.Int("rows_read", p.record.RowsRead),
			zap.Int("records_mapped", p.record.RecordsMapped),
			zap.Int("duplicates_dropped", p.record.DuplicatesDropped),
			zap.Int("created", p.record.Created),
			zap.Int("updated", p.record.Updated),
			zap.Int("skipped", p.record.Skipped),
			zap.Int("batches_committed", p.record.BatchesCommitted))
	}

	// The request context may already be cancelled; the run record should
	// still reach storage.
	if uerr := s.runRepo.Update(context.WithoutCancel(ctx), p.record); uerr != nil {
		p.logger.Warn("Failed to record ingestion run outcome", zap.Error(uerr))
	}

	report := p.record.IngestionReport
	return &report, err
}
