package models

import (
	"encoding/json"
	"time"

	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
)

// Source is a named data provider. Its Name selects the ingestion adapter.
type Source struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	URL          *string   `json:"url,omitempty"`
	ProfileCount int64     `json:"profile_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is a sampling location, unique per (location, source).
// RemoteSensingData is owned by enrichment and never written by ingestion.
type Profile struct {
	ID                int64           `json:"id"`
	SourceID          *int64          `json:"source_id,omitempty"`
	SourceName        string          `json:"source,omitempty"`
	SourceNativeID    string          `json:"source_native_id"`
	ExternalCode      string          `json:"external_code"`
	Location          geo.Coordinate  `json:"location"`
	Description       string          `json:"description,omitempty"`
	SamplingDate      *time.Time      `json:"sampling_date,omitempty"`
	Country           *string         `json:"country,omitempty"`
	RemoteSensingData json.RawMessage `json:"remote_sensing_data,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Properties returns the GeoJSON feature properties of p.
func (p *Profile) Properties() map[string]interface{} {
	props := map[string]interface{}{
		"external_code":    p.ExternalCode,
		"source_native_id": p.SourceNativeID,
		"source":           p.SourceName,
		"description":      p.Description,
		"created_at":       p.CreatedAt,
		"updated_at":       p.UpdatedAt,
	}
	if p.SamplingDate != nil {
		props["sampling_date"] = p.SamplingDate
	}
	if p.Country != nil {
		props["country"] = *p.Country
	}
	if len(p.RemoteSensingData) > 0 {
		props["remote_sensing_data"] = p.RemoteSensingData
	}
	return props
}

// Layer is a depth interval of a profile.
type Layer struct {
	ID            int64     `json:"id"`
	ProfileID     int64     `json:"profile_id"`
	Name          string    `json:"name"`
	DepthTop      float64   `json:"depth_top"`
	DepthBottom   float64   `json:"depth_bottom"`
	Description   string    `json:"description,omitempty"`
	CarbonContent *float64  `json:"carbon_content,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileFilter narrows profile listings. Zero values mean no filter.
type ProfileFilter struct {
	SourceNames []string
	BBox        *geo.BBox
	Limit       int
	Offset      int
}

// ProfileIdentity is the read-only view handed to enrichment.
type ProfileIdentity struct {
	ID       int64
	Location geo.Coordinate
}

// RemoteSensingPatch is merged into a profile's remote_sensing_data.
// Keys are sensor labels; values map band or index names to numbers.
type RemoteSensingPatch struct {
	ProfileID int64
	Data      map[string]map[string]float64
}
