package ingestion

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/geosoil-inc/geosoil-engine/pkg/apperrors"
)

type Stage string

const (
	StageReceived     Stage = "received"
	StageDecoded      Stage = "decoded"
	StageMapped       Stage = "mapped"
	StageNormalized   Stage = "normalized"
	StageDeduplicated Stage = "deduplicated"
	StagePersisted    Stage = "persisted"
	StageFailed       Stage = "failed"
)

var next = map[Stage]Stage{
	StageReceived:     StageDecoded,
	StageDecoded:      StageMapped,
	StageMapped:       StageNormalized,
	StageNormalized:   StageDeduplicated,
	StageDeduplicated: StagePersisted,
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StagePersisted || s == StageFailed
}

// Run tracks one upload through the pipeline. It is not safe for
// concurrent use.
type Run struct {
	ID       uuid.UUID
	stage    Stage
	failedAt Stage
	err      error
}

func NewRun() *Run {
	return &Run{ID: uuid.New(), stage: StageReceived}
}

func (r *Run) Stage() Stage { return r.stage }

// FailedAt is the stage the run was in when it failed, or "".
func (r *Run) FailedAt() Stage { return r.failedAt }

// Err is the error that failed the run.
func (r *Run) Err() error { return r.err }

// ErrorKind is the apperrors code of the failure, or "".
func (r *Run) ErrorKind() string { return apperrors.Kind(r.err) }

// Advance moves the run to the stage that directly follows the current one.
func (r *Run) Advance(to Stage) error {
	want, ok := next[r.stage]
	if !ok {
		return fmt.Errorf("run %s is %s: no transition to %s", r.ID, r.stage, to)
	}
	if to != want {
		return fmt.Errorf("run %s: illegal transition %s -> %s", r.ID, r.stage, to)
	}
	r.stage = to
	return nil
}

// Fail moves a non-terminal run to StageFailed and returns cause so callers
// can write `return run.Fail(err)`.
func (r *Run) Fail(cause error) error {
	if r.stage.Terminal() {
		return cause
	}
	r.failedAt = r.stage
	r.stage = StageFailed
	r.err = cause
	return cause
}
