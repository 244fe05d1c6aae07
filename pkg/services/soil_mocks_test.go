package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
	"github.com/geosoil-inc/geosoil-engine/pkg/sensing"
)

// mockSourceRepository is an in-memory source catalog keyed by name.
type mockSourceRepository struct {
	sources   map[string]*models.Source
	lookups   int
	createErr error
	getErr    error
}

func newMockSourceRepository(sources ...*models.Source) *mockSourceRepository {
	m := &mockSourceRepository{sources: make(map[string]*models.Source)}
	for _, s := range sources {
		m.sources[s.Name] = s
	}
	return m
}

func (m *mockSourceRepository) Create(ctx context.Context, source *models.Source) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.sources[source.Name]; ok {
		return apperrors.ErrConflict
	}
	source.ID = int64(len(m.sources) + 1)
	m.sources[source.Name] = source
	return nil
}

func (m *mockSourceRepository) Upsert(ctx context.Context, source *models.Source) error {
	m.sources[source.Name] = source
	return nil
}

func (m *mockSourceRepository) GetByID(ctx context.Context, id int64) (*models.Source, error) {
	for _, s := range m.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSourceRepository) GetByName(ctx context.Context, name string) (*models.Source, error) {
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sources[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (m *mockSourceRepository) List(ctx context.Context) ([]*models.Source, error) {
	out := make([]*models.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSourceRepository) Names(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(m.sources))
	for name := range m.sources {
		out = append(out, name)
	}
	return out, nil
}

// mockIngestionRunRepository records every write.
type mockIngestionRunRepository struct {
	mu        sync.Mutex
	created   []models.IngestionRun
	updated   []models.IngestionRun
	createErr error
	updateErr error
}

func (m *mockIngestionRunRepository) Create(ctx context.Context, run *models.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *run)
	return nil
}

func (m *mockIngestionRunRepository) Update(ctx context.Context, run *models.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, *run)
	return nil
}

func (m *mockIngestionRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.updated) - 1; i >= 0; i-- {
		if m.updated[i].RunID == id {
			run := m.updated[i]
			return &run, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockIngestionRunRepository) last() models.IngestionRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated[len(m.updated)-1]
}

// mockProfileRepository answers batch writes from a scripted list of
// results and serves identities from memory.
type mockProfileRepository struct {
	mu         sync.Mutex
	batches    [][]ingestion.ProfileRecord
	results    []repositories.BatchResult
	errs       []error
	profiles   []*models.Profile
	identities []models.ProfileIdentity
	total      int64
	merged     []models.RemoteSensingPatch
	mergeCalls int
	lastFilter models.ProfileFilter
}

func (m *mockProfileRepository) UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (repositories.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.batches)
	m.batches = append(m.batches, records)
	if i < len(m.errs) && m.errs[i] != nil {
		return repositories.BatchResult{}, m.errs[i]
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return repositories.BatchResult{Created: len(records)}, nil
}

func (m *mockProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]*models.Profile, error) {
	m.lastFilter = filter
	return m.profiles, nil
}

func (m *mockProfileRepository) Count(ctx context.Context, filter models.ProfileFilter) (int64, error) {
	return m.total, nil
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockProfileRepository) ListIdentities(ctx context.Context, afterID int64, limit int) ([]models.ProfileIdentity, error) {
	var page []models.ProfileIdentity
	for _, id := range m.identities {
		if id.ID > afterID {
			page = append(page, id)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (m *mockProfileRepository) MergeRemoteSensing(ctx context.Context, patches []models.RemoteSensingPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeCalls++
	m.merged = append(m.merged, patches...)
	return int64(len(patches)), nil
}

type mockLayerRepository struct {
	batches [][]ingestion.LayerRecord
	result  repositories.BatchResult
	layers  map[int64][]*models.Layer
}

func (m *mockLayerRepository) UpsertBatch(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (repositories.BatchResult, error) {
	m.batches = append(m.batches, records)
	return m.result, nil
}

func (m *mockLayerRepository) ListByProfile(ctx context.Context, profileID int64) ([]*models.Layer, error) {
	return m.layers[profileID], nil
}

// mockBulkUpserter captures what the orchestrator hands to persistence.
type mockBulkUpserter struct {
	profiles []ingestion.ProfileRecord
	layers   []ingestion.LayerRecord
	outcome  UpsertOutcome
	err      error
	calls    int
}

func (m *mockBulkUpserter) UpsertProfiles(ctx context.Context, sourceID int64, records []ingestion.ProfileRecord) (UpsertOutcome, error) {
	m.calls++
	m.profiles = records
	return m.outcome, m.err
}

func (m *mockBulkUpserter) UpsertLayers(ctx context.Context, sourceID int64, records []ingestion.LayerRecord) (UpsertOutcome, error) {
	m.calls++
	m.layers = records
	return m.outcome, m.err
}

// mockSampler returns fixed values per sensor code and fails the codes in failing.
type mockSampler struct {
	mu      sync.Mutex
	values  map[string]map[string]float64
	failing map[string]error
	calls   int
}

func (m *mockSampler) Sample(ctx context.Context, req sensing.SampleRequest) (map[string]float64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err, ok := m.failing[req.Sensor.Code]; ok {
		return nil, err
	}
	out := make(map[string]float64, len(m.values[req.Sensor.Code]))
	for k, v := range m.values[req.Sensor.Code] {
		out[k] = v
	}
	return out, nil
}

type mockCursorStore struct {
	cursors map[string]int64
	saves   []int64
	cleared bool
}

func newMockCursorStore() *mockCursorStore {
	return &mockCursorStore{cursors: make(map[string]int64)}
}

func (m *mockCursorStore) Load(ctx context.Context, key string) (int64, error) {
	return m.cursors[key], nil
}

func (m *mockCursorStore) Save(ctx context.Context, key string, profileID int64) error {
	m.cursors[key] = profileID
	m.saves = append(m.saves, profileID)
	return nil
}

func (m *mockCursorStore) Clear(ctx context.Context, key string) error {
	delete(m.cursors, key)
	m.cleared = true
	return nil
}

// mockAdapterValidator reports the configured names as missing adapters.
type mockAdapterValidator struct {
	missing map[string]bool
}

func (m *mockAdapterValidator) Validate(names []string) []string {
	var out []string
	for _, n := range names {
		if m.missing[n] {
			out = append(out, n)
		}
	}
	return out
}
