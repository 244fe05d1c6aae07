package geo

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

// NewPoint builds an SRID 4326 point with longitude on the X axis.
func NewPoint(c Coordinate) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(EPSGWGS84)
}

// EncodePoint serializes c as little-endian EWKB for a geometry(Point, 4326) column.
func EncodePoint(c Coordinate) ([]byte, error) {
	b, err := ewkb.Marshal(NewPoint(c), binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode point: %w", err)
	}
	return b, nil
}

// DecodePoint parses EWKB produced by PostGIS.
func DecodePoint(b []byte) (Coordinate, error) {
	g, err := ewkb.Unmarshal(b)
	if err != nil {
		return Coordinate{}, fmt.Errorf("failed to decode point: %w", err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return Coordinate{}, fmt.Errorf("expected point geometry, got %T", g)
	}
	return Coordinate{Lon: p.X(), Lat: p.Y()}, nil
}

// NewFeature wraps a point into a GeoJSON feature.
func NewFeature(id string, c Coordinate, properties map[string]interface{}) *geojson.Feature {
	return &geojson.Feature{
		ID:         id,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}),
		Properties: properties,
	}
}

// NewFeatureCollection never returns a nil feature slice so that empty
// listings encode as [].
func NewFeatureCollection(features []*geojson.Feature) *geojson.FeatureCollection {
	if features == nil {
		features = []*geojson.Feature{}
	}
	return &geojson.FeatureCollection{Features: features}
}

// BBox is a lon/lat bounding box filter.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (*BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox needs 4 comma-separated values, got %d: %w", len(parts), apperrors.ErrInvalidValue)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q: %w", p, apperrors.ErrInvalidValue)
		}
		v[i] = f
	}
	b := &BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	for _, c := range []Coordinate{{b.MinLon, b.MinLat}, {b.MaxLon, b.MaxLat}} {
		if err := ValidateGeographic(c); err != nil {
			return nil, fmt.Errorf("bbox corner: %v: %w", err, apperrors.ErrInvalidValue)
		}
	}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return nil, fmt.Errorf("bbox min exceeds max: %w", apperrors.ErrInvalidValue)
	}
	return b, nil
}
