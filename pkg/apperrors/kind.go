package apperrors

import "errors"

// kinds is ordered: the first sentinel matched by errors.Is wins.
var kinds = []struct {
	err        error
	code       string
	validation bool
}{
	{ErrMissingSource, "missing_source", true},
	{ErrUnsupportedSource, "unsupported_source", true},
	{ErrUnsupportedFormat, "unsupported_format", true},
	{ErrDecode, "decode_error", true},
	{ErrMissingColumn, "missing_column", true},
	{ErrInvalidValue, "invalid_value", true},
	{ErrUnsupportedLocationType, "unsupported_location_type", true},
	{ErrProjection, "projection_error", true},
	{ErrPersistenceConflict, "persistence_conflict", false},
	{ErrPersistence, "persistence_failed", false},
	{ErrNotFound, "not_found", false},
	{ErrConflict, "conflict", false},
}

// Kind returns the stable snake_case code for err, or "internal_error" when
// err does not wrap any known sentinel.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal_error"
}

// IsValidation reports whether err describes rejected input rather than a
// storage or server failure.
func IsValidation(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.validation
		}
	}
	return false
}
