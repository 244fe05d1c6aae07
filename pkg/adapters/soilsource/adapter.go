// Package soilsource maps the column layout of each supported soil data
// provider onto typed ingestion records.
package soilsource

import (
	"fmt"
	"strings"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

// Code names a supported provider. It matches Source.Name in the catalog.
type Code string

const (
	CodeIRD   Code = "IRD"
	CodeAFSP  Code = "AFSP"
	CodeWOSIS Code = "WOSIS"
)

// AllCodes lists every provider an adapter must exist for.
func AllCodes() []Code {
	return []Code{CodeIRD, CodeAFSP, CodeWOSIS}
}

// LocationType selects how an upload carries coordinates.
type LocationType string

const (
	// LocationLonLat: longitude and latitude in decimal degrees.
	LocationLonLat LocationType = "LT"
	// LocationCentroid: projected centroid that must be reprojected.
	LocationCentroid LocationType = "CT"
)

// ParseLocationType accepts "LT" and "CT" case-insensitively; empty means LT.
func ParseLocationType(s string) (LocationType, error) {
	switch LocationType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", LocationLonLat:
		return LocationLonLat, nil
	case LocationCentroid:
		return LocationCentroid, nil
	default:
		return "", fmt.Errorf("location type %q: %w", s, apperrors.ErrUnsupportedLocationType)
	}
}

// Options are per-upload mapping options.
type Options struct {
	LocationType LocationType
}

// Info describes a registered adapter for API discovery.
type Info struct {
	Code                  Code           `json:"code"`
	DisplayName           string         `json:"display_name"`
	Description           string         `json:"description"`
	LocationTypes         []LocationType `json:"location_types"`
	DefaultProjectionEPSG int            `json:"default_projection_epsg,omitempty"`
}

// Adapter maps decoded tables for one provider. Mapping fails as a whole on
// the first bad row.
type Adapter interface {
	Info() Info
	MapProfiles(table *tabular.Table, opts Options) ([]ingestion.ProfileRecord, error)
	MapLayers(table *tabular.Table) ([]ingestion.LayerRecord, error)
}
