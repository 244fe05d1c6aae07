package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/adapters/soilsource"
	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/auth"
	"github.com/geosoil-inc/geosoil-engine/pkg/models"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
)

// newTestAuthMiddleware accepts unsigned tokens with the geosoil audience,
// as a server running without verification does.
func newTestAuthMiddleware(t *testing.T) *auth.Middleware {
	t.Helper()
	client, err := auth.NewJWKSClient(context.Background(), &auth.JWKSConfig{Audience: "geosoil"})
	require.NoError(t, err)
	return auth.NewMiddleware(auth.NewAuthService(client, zap.NewNop()), zap.NewNop())
}

type mockSourceService struct {
	sources   []*models.Source
	listErr   error
	createErr error
	created   *models.Source
}

func (m *mockSourceService) List(ctx context.Context) ([]*models.Source, error) {
	return m.sources, m.listErr
}

func (m *mockSourceService) Get(ctx context.Context, id int64) (*models.Source, error) {
	for _, s := range m.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSourceService) Create(ctx context.Context, source *models.Source) error {
	if m.createErr != nil {
		return m.createErr
	}
	source.ID = 10
	m.created = source
	return nil
}

func (m *mockSourceService) ValidateAdapters(ctx context.Context) ([]string, error) {
	return nil, nil
}

type mockAdapterCatalog struct{}

func (mockAdapterCatalog) Infos() []soilsource.Info {
	return soilsource.NewDefaultRegistry().Infos()
}

type mockProfileService struct {
	page       *services.ProfilePage
	feature    *geojson.Feature
	layers     []*models.Layer
	err        error
	lastFilter models.ProfileFilter
}

func (m *mockProfileService) ListFeatures(ctx context.Context, filter models.ProfileFilter) (*services.ProfilePage, error) {
	m.lastFilter = filter
	return m.page, m.err
}

func (m *mockProfileService) Get(ctx context.Context, id int64) (*models.Profile, error) {
	return nil, m.err
}

func (m *mockProfileService) GetFeature(ctx context.Context, id int64) (*geojson.Feature, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.feature, nil
}

func (m *mockProfileService) ListLayers(ctx context.Context, profileID int64) ([]*models.Layer, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.layers, nil
}

// mockIngestionService records the request and its file contents.
type mockIngestionService struct {
	report   *models.IngestionReport
	err      error
	run      *models.IngestionRun
	req      services.IngestRequest
	body     string
	called   string
	runCalls int
}

func (m *mockIngestionService) capture(kind string, req services.IngestRequest) (*models.IngestionReport, error) {
	m.called = kind
	m.req = req
	if req.File != nil {
		b, _ := io.ReadAll(req.File)
		m.body = string(b)
	}
	return m.report, m.err
}

func (m *mockIngestionService) IngestProfiles(ctx context.Context, req services.IngestRequest) (*models.IngestionReport, error) {
	return m.capture(models.IngestionKindProfiles, req)
}

func (m *mockIngestionService) IngestLayers(ctx context.Context, req services.IngestRequest) (*models.IngestionReport, error) {
	return m.capture(models.IngestionKindLayers, req)
}

func (m *mockIngestionService) GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	m.runCalls++
	if m.run == nil || m.run.RunID != id {
		return nil, apperrors.ErrNotFound
	}
	return m.run, nil
}

type mockDatabaseChecker struct {
	version string
	err     error
}

func (m *mockDatabaseChecker) PostGISVersion(ctx context.Context) (string, error) {
	return m.version, m.err
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
