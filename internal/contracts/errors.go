package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrStageFailed marks a cycle-fatal stage failure
	ErrStageFailed = errors.New("stage failed")

	// ErrInvalidOutput is returned when a stage produces data that breaks its contract
	ErrInvalidOutput = errors.New("invalid stage output")

	// ErrCycleInProgress is returned when a cycle is triggered while another runs
	ErrCycleInProgress = errors.New("cycle already in progress")

	// ErrNoPrice is returned when no price is known for an asset
	ErrNoPrice = errors.New("no price for asset")
)

// StageError wraps a cycle-fatal error with the stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrStageFailed, e.Err}
}

// NewStageError creates a stage error
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failing stage if err carries one
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
