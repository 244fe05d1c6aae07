// Package geo converts source coordinates into canonical WGS-84
// longitude/latitude and encodes points for PostGIS and GeoJSON.
package geo

import (
	"fmt"
	"math"

	"github.com/im7mortal/UTM"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

// EPSGWGS84 is the canonical storage reference system.
const EPSGWGS84 = 4326

const (
	minEasting  = 100000.0
	maxEasting  = 1000000.0
	maxNorthing = 10000000.0
)

// Coordinate is a canonical geographic position. Lon is always first.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Projected is a position in a projected system: X is easting, Y is northing.
type Projected struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CRS identifies a supported coordinate reference system.
type CRS struct {
	EPSG     int
	Zone     int
	Northern bool
}

// ParseCRS accepts EPSG:4326 and the WGS-84 UTM zones (326xx north, 327xx south).
func ParseCRS(epsg int) (CRS, error) {
	switch {
	case epsg == EPSGWGS84:
		return CRS{EPSG: epsg}, nil
	case epsg >= 32601 && epsg <= 32660:
		return CRS{EPSG: epsg, Zone: epsg - 32600, Northern: true}, nil
	case epsg >= 32701 && epsg <= 32760:
		return CRS{EPSG: epsg, Zone: epsg - 32700, Northern: false}, nil
	default:
		return CRS{}, fmt.Errorf("EPSG:%d is not a supported reference system: %w", epsg, apperrors.ErrProjection)
	}
}

// IsGeographic reports whether the CRS is already canonical lon/lat.
func (c CRS) IsGeographic() bool {
	return c.Zone == 0
}

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// Normalizer converts coordinates between a source CRS and WGS-84.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// ToGeographic converts p from crs to canonical lon/lat.
// For geographic input X is read as longitude and Y as latitude.
func (n *Normalizer) ToGeographic(crs CRS, p Projected) (Coordinate, error) {
	if !finite(p.X) || !finite(p.Y) {
		return Coordinate{}, fmt.Errorf("non-finite coordinate (%v, %v): %w", p.X, p.Y, apperrors.ErrProjection)
	}

	if crs.IsGeographic() {
		c := Coordinate{Lon: p.X, Lat: p.Y}
		return c, ValidateGeographic(c)
	}

	if p.X < minEasting || p.X >= maxEasting {
		return Coordinate{}, fmt.Errorf("easting %v outside %s extent: %w", p.X, crs, apperrors.ErrProjection)
	}
	if p.Y < 0 || p.Y > maxNorthing {
		return Coordinate{}, fmt.Errorf("northing %v outside %s extent: %w", p.Y, crs, apperrors.ErrProjection)
	}

	// The library returns latitude first.
	lat, lon, err := UTM.ToLatLon(p.X, p.Y, crs.Zone, "", crs.Northern)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%s to EPSG:%d: %v: %w", crs, EPSGWGS84, err, apperrors.ErrProjection)
	}

	c := Coordinate{Lon: lon, Lat: lat}
	if err := ValidateGeographic(c); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// FromGeographic is the inverse of ToGeographic. The position must fall in
// the CRS zone and hemisphere.
func (n *Normalizer) FromGeographic(crs CRS, c Coordinate) (Projected, error) {
	if err := ValidateGeographic(c); err != nil {
		return Projected{}, err
	}
	if crs.IsGeographic() {
		return Projected{X: c.Lon, Y: c.Lat}, nil
	}
	if crs.Northern != (c.Lat >= 0) {
		return Projected{}, fmt.Errorf("latitude %v is outside the %s hemisphere: %w", c.Lat, crs, apperrors.ErrProjection)
	}

	easting, northing, zone, _, err := UTM.FromLatLon(c.Lat, c.Lon, crs.Northern)
	if err != nil {
		return Projected{}, fmt.Errorf("EPSG:%d to %s: %v: %w", EPSGWGS84, crs, err, apperrors.ErrProjection)
	}
	if zone != crs.Zone {
		return Projected{}, fmt.Errorf("longitude %v falls in UTM zone %d, not %d: %w", c.Lon, zone, crs.Zone, apperrors.ErrProjection)
	}
	return Projected{X: easting, Y: northing}, nil
}

// ValidateGeographic checks that c is a finite WGS-84 position.
func ValidateGeographic(c Coordinate) error {
	if !finite(c.Lon) || !finite(c.Lat) {
		return fmt.Errorf("non-finite coordinate (%v, %v): %w", c.Lon, c.Lat, apperrors.ErrProjection)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range: %w", c.Lon, apperrors.ErrProjection)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range: %w", c.Lat, apperrors.ErrProjection)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
