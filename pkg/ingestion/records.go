// Package ingestion holds the typed records produced by source adapters and
// the pure steps applied to them before persistence.
package ingestion

import (
	"fmt"
	"time"

	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
)

// ProfileRecord is one mapped profile row. X and Y are read as longitude and
// latitude unless NeedsReprojection is set, in which case they are easting
// and northing in the upload's projection. Location is filled by Normalize.
type ProfileRecord struct {
	Line              int
	SourceNativeID    string
	ExternalCode      string
	X                 float64
	Y                 float64
	NeedsReprojection bool
	Location          geo.Coordinate
	Country           string
	Description       string
	SamplingDate      *time.Time
}

// LayerRecord is one mapped layer row, attached to a profile through the
// profile's native id within the same source.
type LayerRecord struct {
	Line            int
	ProfileNativeID string
	Name            string
	TopCM           float64
	BottomCM        float64
	OrganicCarbon   *float64
}

// ExternalCode builds the source-prefixed human identifier, e.g. "IRD-123".
func ExternalCode(source, nativeID string) string {
	return fmt.Sprintf("%s-%s", source, nativeID)
}

// Normalize computes the canonical location of every record. The first
// failure aborts with the offending line in the message.
func Normalize(n *geo.Normalizer, crs geo.CRS, records []ProfileRecord) error {
	for i := range records {
		rec := &records[i]

		if !rec.NeedsReprojection {
			c := geo.Coordinate{Lon: rec.X, Lat: rec.Y}
			if err := geo.ValidateGeographic(c); err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			rec.Location = c
			continue
		}

		c, err := n.ToGeographic(crs, geo.Projected{X: rec.X, Y: rec.Y})
		if err != nil {
			return fmt.Errorf("line %d: %w", rec.Line, err)
		}
		rec.Location = c
	}
	return nil
}
