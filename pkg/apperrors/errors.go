package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Ingestion error taxonomy. Everything up to and including deduplication
// aborts the run before persistence; persistence errors are scoped to a batch.
var (
	ErrUnsupportedFormat       = errors.New("unsupported file format")
	ErrDecode                  = errors.New("file could not be decoded")
	ErrUnsupportedSource       = errors.New("source is not supported for ingestion")
	ErrMissingColumn           = errors.New("required column is missing")
	ErrMissingSource           = errors.New("source is missing or not registered")
	ErrProjection              = errors.New("coordinate projection failed")
	ErrInvalidValue            = errors.New("invalid cell value")
	ErrUnsupportedLocationType = errors.New("location type not supported by source")
	ErrPersistenceConflict     = errors.New("persistence conflict on natural key")
	ErrPersistence             = errors.New("persistence failed")
)
