package soilsource

import (
	"fmt"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/ingestion"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

type coordColumns struct {
	x string
	y string
	// reproject marks x/y as easting/northing in the upload's projection.
	reproject bool
}

type layerColumns struct {
	profileID string
	name      string
	top       string
	bottom    string
	carbon    string
}

// schema is the fixed column mapping of one provider. Empty optional
// column names are not mapped.
type schema struct {
	info        Info
	id          string
	coords      map[LocationType]coordColumns
	country     string
	description string
	date        string
	layers      layerColumns
}

// schemaAdapter implements Adapter from a schema table.
type schemaAdapter struct {
	s schema
}

var _ Adapter = (*schemaAdapter)(nil)

func (a *schemaAdapter) Info() Info {
	return a.s.info
}

func (a *schemaAdapter) MapProfiles(table *tabular.Table, opts Options) ([]ingestion.ProfileRecord, error) {
	lt := opts.LocationType
	if lt == "" {
		lt = LocationLonLat
	}
	cc, ok := a.s.coords[lt]
	if !ok {
		return nil, fmt.Errorf("%s does not provide %s coordinates: %w", a.s.info.Code, lt, apperrors.ErrUnsupportedLocationType)
	}

	if err := requireColumns(table, a.s.id, cc.x, cc.y); err != nil {
		return nil, fmt.Errorf("%s profiles: %w", a.s.info.Code, err)
	}

	country := a.optional(table, a.s.country)
	description := a.optional(table, a.s.description)
	date := a.optional(table, a.s.date)

	records := make([]ingestion.ProfileRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		id, err := identifier(row, a.s.id)
		if err != nil {
			return nil, err
		}
		x, err := number(row, cc.x)
		if err != nil {
			return nil, err
		}
		y, err := number(row, cc.y)
		if err != nil {
			return nil, err
		}

		rec := ingestion.ProfileRecord{
			Line:              row.Line,
			SourceNativeID:    id,
			ExternalCode:      ingestion.ExternalCode(string(a.s.info.Code), id),
			X:                 x,
			Y:                 y,
			NeedsReprojection: cc.reproject,
			SamplingDate:      optionalDate(row, date),
		}
		if country != "" {
			rec.Country = row.Get(country)
		}
		if description != "" {
			rec.Description = row.Get(description)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a *schemaAdapter) MapLayers(table *tabular.Table) ([]ingestion.LayerRecord, error) {
	lc := a.s.layers
	if err := requireColumns(table, lc.profileID, lc.name, lc.top, lc.bottom); err != nil {
		return nil, fmt.Errorf("%s layers: %w", a.s.info.Code, err)
	}
	carbon := a.optional(table, lc.carbon)

	records := make([]ingestion.LayerRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		profileID, err := identifier(row, lc.profileID)
		if err != nil {
			return nil, err
		}
		name, err := identifier(row, lc.name)
		if err != nil {
			return nil, err
		}
		top, err := optionalNumber(row, lc.top)
		if err != nil {
			return nil, err
		}
		bottom, err := optionalNumber(row, lc.bottom)
		if err != nil {
			return nil, err
		}
		oc, err := optionalNumber(row, carbon)
		if err != nil {
			return nil, err
		}
		if top == nil || bottom == nil {
			return nil, fmt.Errorf("line %d: layer depths are required: %w", row.Line, apperrors.ErrInvalidValue)
		}
		if *bottom < *top {
			return nil, fmt.Errorf("line %d: bottom depth %v above top depth %v: %w", row.Line, *bottom, *top, apperrors.ErrInvalidValue)
		}

		records = append(records, ingestion.LayerRecord{
			Line:            row.Line,
			ProfileNativeID: profileID,
			Name:            name,
			TopCM:           *top,
			BottomCM:        *bottom,
			OrganicCarbon:   oc,
		})
	}
	return records, nil
}

// optional returns col when the table has it, else "".
func (a *schemaAdapter) optional(table *tabular.Table, col string) string {
	if col != "" && table.HasColumn(col) {
		return col
	}
	return ""
}
