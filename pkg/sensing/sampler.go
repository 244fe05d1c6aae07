package sensing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/config"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/jsonutil"
	"github.com/geosoil-inc/geosoil-engine/pkg/retry"
)

// DateLayout is the date format the sampling service expects.
const DateLayout = "2006-01-02"

// SampleRequest asks for the median of a sensor's collection over a date
// range at one point.
type SampleRequest struct {
	Sensor   Sensor
	Location geo.Coordinate
	Start    time.Time
	End      time.Time
	Scale    int
}

// Sampler returns band values for a request. An empty map means the
// collection had no image over the point in the date range.
type Sampler interface {
	Sample(ctx context.Context, req SampleRequest) (map[string]float64, error)
}

// HTTPSampler calls a remote sampling service.
type HTTPSampler struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      *retry.Config
	logger     *zap.Logger
}

var _ Sampler = (*HTTPSampler)(nil)

// NewHTTPSampler creates a sampler for cfg.BaseURL.
func NewHTTPSampler(cfg *config.SensingConfig, logger *zap.Logger) *HTTPSampler {
	return &HTTPSampler{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		retry:      retry.WithMaxRetries(cfg.MaxRetries),
		logger:     logger.Named("sampler"),
	}
}

type sampleBody struct {
	Collection string     `json:"collection"`
	Bands      []string   `json:"bands,omitempty"`
	Point      [2]float64 `json:"point"` // lon, lat
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Scale      int        `json:"scale"`
	Reducer    string     `json:"reducer"`
}

type sampleResponse struct {
	Values map[string]json.RawMessage `json:"values"`
	Error  json.RawMessage            `json:"error,omitempty"`
}

func (s *HTTPSampler) Sample(ctx context.Context, req SampleRequest) (map[string]float64, error) {
	endpoint, err := buildURL(s.baseURL, "v1", "sample")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	payload, err := json.Marshal(sampleBody{
		Collection: req.Sensor.Collection,
		Bands:      req.Sensor.Bands,
		Point:      [2]float64{req.Location.Lon, req.Location.Lat},
		Start:      req.Start.Format(DateLayout),
		End:        req.End.Format(DateLayout),
		Scale:      req.Sensor.ScaleFor(req.Scale),
		Reducer:    "median",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample request: %w", err)
	}

	var body []byte
	err = retry.DoIfRetryable(ctx, s.retry, func() error {
		body, err = s.post(ctx, endpoint, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", req.Sensor.Code, err)
	}

	var resp sampleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sample %s: failed to parse response: %w", req.Sensor.Code, err)
	}
	if msg := jsonutil.FlexibleStringValue(resp.Error); msg != "" {
		return nil, fmt.Errorf("sample %s: service error: %s", req.Sensor.Code, msg)
	}

	values := make(map[string]float64, len(resp.Values))
	for band, raw := range resp.Values {
		if v, ok := jsonutil.FlexibleFloatValue(raw); ok {
			values[band] = v
		}
	}
	if req.Sensor.Indices && len(values) > 0 {
		AddSpectralIndices(values)
	}
	return values, nil
}

func (s *HTTPSampler) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sampling service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("Sampling service returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	return u.String(), nil
}
