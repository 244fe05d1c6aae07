// Package sensing samples satellite imagery medians at profile locations
// through a remote sampling service.
package sensing

import (
	"fmt"
	"strings"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

// SensorAll selects every sensor in the catalogue.
const SensorAll = "all"

// Sensor is one image collection sampled at a point.
type Sensor struct {
	Code       string
	Collection string
	// Bands are requested from the collection. Empty means every band.
	Bands []string
	// FixedScale overrides the requested sampling scale in metres.
	FixedScale int
	// Indices adds NDVI and NDWI computed from the sampled bands.
	Indices bool
}

var s2Bands = []string{
	"B1", "B2", "B3", "B4", "B5", "B6", "B7",
	"B8", "B8A", "B9", "B11", "B12", "AOT", "WVP",
}

var (
	S1 = Sensor{Code: "S1", Collection: "COPERNICUS/S1_GRD", Bands: []string{"VV", "VH"}}
	S2 = Sensor{Code: "S2", Collection: "COPERNICUS/S2_SR", Bands: s2Bands, Indices: true}
	S3 = Sensor{Code: "S3", Collection: "COPERNICUS/S3/OLCI", FixedScale: 300}
)

// Catalogue lists the sensors in sampling order.
func Catalogue() []Sensor {
	return []Sensor{S2, S1, S3}
}

// ParseSensors accepts a sensor code or "all", case-insensitively.
func ParseSensors(s string) ([]Sensor, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, SensorAll) {
		return Catalogue(), nil
	}
	for _, sensor := range Catalogue() {
		if strings.EqualFold(s, sensor.Code) {
			return []Sensor{sensor}, nil
		}
	}
	return nil, fmt.Errorf("sensor %q: %w", s, apperrors.ErrInvalidValue)
}

// ScaleFor returns the sampling scale to use when requested metres were asked for.
func (s Sensor) ScaleFor(requested int) int {
	if s.FixedScale > 0 {
		return s.FixedScale
	}
	if requested <= 0 {
		return 10
	}
	return requested
}
