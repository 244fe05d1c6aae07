package sensing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/config"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/retry"
)

func newTestSampler(t *testing.T, handler http.HandlerFunc) *HTTPSampler {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewHTTPSampler(&config.SensingConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, zap.NewNop())
	s.retry.InitialDelay = time.Millisecond
	s.retry.MaxDelay = 5 * time.Millisecond
	return s
}

func sampleRequest(sensor Sensor) SampleRequest {
	return SampleRequest{
		Sensor:   sensor,
		Location: geo.Coordinate{Lon: -16.5, Lat: 14.25},
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Scale:    10,
	}
}

func TestHTTPSampler_Sample(t *testing.T) {
	var got sampleBody
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sample", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values": {"B3": 0.1, "B4": "0.2", "B8": 0.6, "AOT": null}}`))
	})

	values, err := s.Sample(context.Background(), sampleRequest(S2))
	require.NoError(t, err)

	assert.Equal(t, "COPERNICUS/S2_SR", got.Collection)
	assert.Equal(t, [2]float64{-16.5, 14.25}, got.Point, "point is lon, lat")
	assert.Equal(t, "2024-01-01", got.Start)
	assert.Equal(t, "2024-06-30", got.End)
	assert.Equal(t, 10, got.Scale)
	assert.Equal(t, "median", got.Reducer)

	assert.InDelta(t, 0.2, values["B4"], 1e-9)
	assert.NotContains(t, values, "AOT", "null values are dropped")
	assert.InDelta(t, 0.5, values["NDVI"], 1e-9)
	assert.Contains(t, values, "NDWI")
}

func TestHTTPSampler_FixedScaleAndNoIndices(t *testing.T) {
	var got sampleBody
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"values": {"Oa01_radiance": 51.2}}`))
	})

	values, err := s.Sample(context.Background(), sampleRequest(S3))
	require.NoError(t, err)
	assert.Equal(t, 300, got.Scale)
	assert.Empty(t, got.Bands)
	assert.Equal(t, map[string]float64{"Oa01_radiance": 51.2}, values)
}

func TestHTTPSampler_EmptyValues(t *testing.T) {
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"values": {}}`))
	})

	values, err := s.Sample(context.Background(), sampleRequest(S2))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestHTTPSampler_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"values": {"VV": -12.5, "VH": -19.1}}`))
	})

	values, err := s.Sample(context.Background(), sampleRequest(S1))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.InDelta(t, -12.5, values["VV"], 1e-9)
}

func TestHTTPSampler_DoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "point outside collection", http.StatusBadRequest)
	})

	_, err := s.Sample(context.Background(), sampleRequest(S1))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestHTTPSampler_ServiceError(t *testing.T) {
	s := newTestSampler(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"values": null, "error": "quota exceeded"}`))
	})

	_, err := s.Sample(context.Background(), sampleRequest(S2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestBuildURL(t *testing.T) {
	u, err := buildURL("https://sampler.example.com/api/", "v1", "sample")
	require.NoError(t, err)
	assert.Equal(t, "https://sampler.example.com/api/v1/sample", u)

	_, err = buildURL("", "v1")
	assert.Error(t, err)
}
