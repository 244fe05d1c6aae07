package models

import (
	"time"

	"github.com/google/uuid"
)

// Ingestion run kinds
const (
	IngestionKindProfiles = "profiles"
	IngestionKindLayers   = "layers"
)

// IngestionReport is the outcome of one upload. On a persistence failure it
// still carries the number of batches that stayed committed.
type IngestionReport struct {
	RunID             uuid.UUID `json:"run_id"`
	Kind              string    `json:"kind"`
	Source            string    `json:"source"`
	Stage             string    `json:"stage"`
	RowsRead          int       `json:"rows_read"`
	RecordsMapped     int       `json:"records_mapped"`
	DuplicatesDropped int       `json:"duplicates_dropped"`
	Created           int       `json:"created"`
	Updated           int       `json:"updated"`
	Skipped           int       `json:"skipped"`
	BatchesCommitted  int       `json:"batches_committed"`
}

// IngestionRun is the stored record of an upload, kept in ingestion_runs.
type IngestionRun struct {
	IngestionReport
	FileName     string     `json:"file_name"`
	FailedStage  *string    `json:"failed_stage,omitempty"`
	ErrorKind    *string    `json:"error_kind,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
