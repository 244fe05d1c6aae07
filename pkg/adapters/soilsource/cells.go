package soilsource

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

// integralFloat matches ids that spreadsheets and DBF numeric fields
// render as "123.0".
var integralFloat = regexp.MustCompile(`^(-?\d+)\.0+$`)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006",
}

func requireColumns(table *tabular.Table, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !table.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("columns %s: %w", strings.Join(missing, ", "), apperrors.ErrMissingColumn)
	}
	return nil
}

func identifier(row tabular.Row, col string) (string, error) {
	v := row.Get(col)
	if v == "" {
		return "", fmt.Errorf("line %d column %q: empty identifier: %w", row.Line, col, apperrors.ErrInvalidValue)
	}
	if m := integralFloat.FindStringSubmatch(v); m != nil {
		return m[1], nil
	}
	return v, nil
}

// thousandsGrouped matches "1,234" and "12,345,678": a decimal comma
// cannot be told apart from a thousands separator there.
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)

// parseNumber accepts a single decimal comma ("1,25") but rejects values
// that read as thousands groups.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if thousandsGrouped.MatchString(s) {
		return 0, fmt.Errorf("ambiguous digit grouping in %q", s)
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func number(row tabular.Row, col string) (float64, error) {
	v := row.Get(col)
	f, err := parseNumber(v)
	if err != nil || v == "" {
		return 0, fmt.Errorf("line %d column %q: %q is not a number: %w", row.Line, col, v, apperrors.ErrInvalidValue)
	}
	return f, nil
}

// optionalNumber is nil for an absent column or empty cell. Unlike
// coordinates, measurements must be finite.
func optionalNumber(row tabular.Row, col string) (*float64, error) {
	if col == "" || row.Get(col) == "" {
		return nil, nil
	}
	f, err := number(row, col)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("line %d column %q: non-finite value: %w", row.Line, col, apperrors.ErrInvalidValue)
	}
	return &f, nil
}

// optionalDate returns nil for values in none of the known layouts; dates
// are descriptive and never fail a run.
func optionalDate(row tabular.Row, col string) *time.Time {
	if col == "" {
		return nil
	}
	v := row.Get(col)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
