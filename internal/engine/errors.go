package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInstall indicates a seed or dependency install failed.
	ErrInstall = errors.New("install failed")

	// ErrAdapter indicates a package database query or erase failed
	// unexpectedly.
	ErrAdapter = errors.New("package database failure")
)

// Stage identifies the pipeline stage a failure originated from.
type Stage string

const (
	StageInstall  Stage = "install"
	StageClosure  Stage = "closure"
	StageRemoval  Stage = "removal"
	StageFinalize Stage = "finalize"
)

// StageError attributes a fatal error to a pipeline stage so callers can
// distinguish failure origin. Every adapter error is fatal: nothing is
// retried, because the whole pipeline is idempotent and cheap to rerun from
// a clean target root.
type StageError struct {
	Stage Stage
	Err   error
}

// Error returns the stage-prefixed message.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
