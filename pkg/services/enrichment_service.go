package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
	"github.com/geosoil-inc/geosoil-engine/pkg/sensing"
)

// EnrichmentOptions selects what to sample and how to page through profiles.
type EnrichmentOptions struct {
	Sensors   []sensing.Sensor
	Start     time.Time
	End       time.Time
	Scale     int
	BatchSize int
	// Resume continues after the last checkpointed profile id.
	Resume bool
}

// EnrichmentSummary counts what one enrichment run did.
type EnrichmentSummary struct {
	Profiles       int   `json:"profiles"`
	Enriched       int   `json:"enriched"`
	NoData         int   `json:"no_data"`
	SensorFailures int   `json:"sensor_failures"`
	Batches        int   `json:"batches"`
	LastProfileID  int64 `json:"last_profile_id"`
}

// EnrichmentService attaches remote sensing medians to stored profiles.
// It only ever merges into remote_sensing_data.
type EnrichmentService interface {
	Run(ctx context.Context, opts EnrichmentOptions) (*EnrichmentSummary, error)
}

// CursorStore checkpoints the last enriched profile id.
type CursorStore interface {
	Load(ctx context.Context, key string) (int64, error)
	Save(ctx context.Context, key string, profileID int64) error
	Clear(ctx context.Context, key string) error
}

type enrichmentService struct {
	profileRepo repositories.ProfileRepository
	sampler     sensing.Sampler
	cursors     CursorStore
	concurrency int
	logger      *zap.Logger
}

// NewEnrichmentService creates a new EnrichmentService. cursors may be nil,
// in which case runs cannot be resumed.
func NewEnrichmentService(
	profileRepo repositories.ProfileRepository,
	sampler sensing.Sampler,
	cursors CursorStore,
	concurrency int,
	logger *zap.Logger,
) EnrichmentService {
	if cursors == nil {
		cursors = noopCursorStore{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &enrichmentService{
		profileRepo: profileRepo,
		sampler:     sampler,
		cursors:     cursors,
		concurrency: concurrency,
		logger:      logger.Named("enrichment"),
	}
}

var _ EnrichmentService = (*enrichmentService)(nil)

func (s *enrichmentService) Run(ctx context.Context, opts EnrichmentOptions) (*EnrichmentSummary, error) {
	if err := validateEnrichmentOptions(opts); err != nil {
		return nil, err
	}

	key := cursorKey(opts)
	summary := &EnrichmentSummary{}

	var after int64
	if opts.Resume {
		id, err := s.cursors.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load enrichment cursor: %w", err)
		}
		after = id
		if after > 0 {
			s.logger.Info("Resuming enrichment", zap.Int64("after_profile_id", after))
		}
	}

	for {
		page, err := s.profileRepo.ListIdentities(ctx, after, opts.BatchSize)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			break
		}

		patches, failures, err := s.samplePage(ctx, page, opts)
		if err != nil {
			return summary, err
		}

		nonEmpty := patches[:0]
		for _, p := range patches {
			if len(p.Data) > 0 {
				nonEmpty = append(nonEmpty, p)
			}
		}
		if _, err := s.profileRepo.MergeRemoteSensing(ctx, nonEmpty); err != nil {
			return summary, err
		}

		after = page[len(page)-1].ID
		summary.Profiles += len(page)
		summary.Enriched += len(nonEmpty)
		summary.NoData += len(page) - len(nonEmpty)
		summary.SensorFailures += failures
		summary.Batches++
		summary.LastProfileID = after

		if err := s.cursors.Save(ctx, key, after); err != nil {
			s.logger.Warn("Failed to save enrichment cursor", zap.Int64("profile_id", after), zap.Error(err))
		}

		s.logger.Info("Enrichment batch merged",
			zap.Int("batch", summary.Batches),
			zap.Int("profiles", len(page)),
			zap.Int("enriched", len(nonEmpty)),
			zap.Int64("last_profile_id", after))

		if len(page) < opts.BatchSize {
			break
		}
	}

	if err := s.cursors.Clear(ctx, key); err != nil {
		s.logger.Warn("Failed to clear enrichment cursor", zap.Error(err))
	}
	return summary, nil
}

// samplePage samples every sensor for every profile of the page with
// bounded concurrency. A failing sensor is skipped for that profile only.
func (s *enrichmentService) samplePage(
	ctx context.Context,
	page []models.ProfileIdentity,
	opts EnrichmentOptions,
) ([]models.RemoteSensingPatch, int, error) {
	patches := make([]models.RemoteSensingPatch, len(page))
	failures := make([]int, len(page))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, identity := range page {
		g.Go(func() error {
			data := make(map[string]map[string]float64, len(opts.Sensors))
			for _, sensor := range opts.Sensors {
				values, err := s.sampler.Sample(gctx, sensing.SampleRequest{
					Sensor:   sensor,
					Location: identity.Location,
					Start:    opts.Start,
					End:      opts.End,
					Scale:    opts.Scale,
				})
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failures[i]++
					s.logger.Warn("Sensor sampling failed, skipping",
						zap.Int64("profile_id", identity.ID),
						zap.String("sensor", sensor.Code),
						zap.Error(err))
					continue
				}
				if len(values) > 0 {
					data[sensor.Code] = values
				}
			}
			patches[i] = models.RemoteSensingPatch{ProfileID: identity.ID, Data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for _, f := range failures {
		total += f
	}
	return patches, total, nil
}

func validateEnrichmentOptions(opts EnrichmentOptions) error {
	if len(opts.Sensors) == 0 {
		return fmt.Errorf("no sensor selected: %w", apperrors.ErrInvalidValue)
	}
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d: %w", opts.BatchSize, apperrors.ErrInvalidValue)
	}
	if opts.Start.IsZero() || opts.End.IsZero() || !opts.End.After(opts.Start) {
		return fmt.Errorf("invalid date range %s..%s: %w",
			opts.Start.Format(sensing.DateLayout), opts.End.Format(sensing.DateLayout), apperrors.ErrInvalidValue)
	}
	return nil
}

// cursorKey identifies a run by what it samples, so a resumed run only
// picks up a checkpoint written by the same selection.
func cursorKey(opts EnrichmentOptions) string {
	codes := make([]string, len(opts.Sensors))
	for i, sensor := range opts.Sensors {
		codes[i] = sensor.Code
	}
	return fmt.Sprintf("geosoil:enrichment:%s:%s:%s:%d",
		strings.Join(codes, "+"),
		opts.Start.Format(sensing.DateLayout),
		opts.End.Format(sensing.DateLayout),
		opts.Scale)
}

// RedisCursorStore keeps enrichment checkpoints in Redis.
type RedisCursorStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ CursorStore = (*RedisCursorStore)(nil)

// NewRedisCursorStore creates a CursorStore whose checkpoints expire after ttl.
func NewRedisCursorStore(client *redis.Client, ttl time.Duration) *RedisCursorStore {
	return &RedisCursorStore{client: client, ttl: ttl}
}

func (r *RedisCursorStore) Load(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cursor %q: %w", key, err)
	}
	return id, nil
}

func (r *RedisCursorStore) Save(ctx context.Context, key string, profileID int64) error {
	return r.client.Set(ctx, key, profileID, r.ttl).Err()
}

func (r *RedisCursorStore) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

type noopCursorStore struct{}

func (noopCursorStore) Load(context.Context, string) (int64, error) { return 0, nil }
func (noopCursorStore) Save(context.Context, string, int64) error { return nil }
func (noopCursorStore) Clear(context.Context, string) error { return nil }
