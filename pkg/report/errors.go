package report

import "fmt"

// Stage names a step of a report run.
type Stage string

const (
	// StageConfig covers loading and validating settings.
	StageConfig Stage = "config"
	// StageRead covers reading the input CSV and locating the serial column.
	StageRead Stage = "read"
	// StageAuth covers obtaining the access token.
	StageAuth Stage = "auth"
	// StageFetch covers the batched lookups. Only setup errors and cancellation are fatal here.
	StageFetch Stage = "fetch"
	// StageMerge covers appending the milestone columns.
	StageMerge Stage = "merge"
	// StageWrite covers writing the output file.
	StageWrite Stage = "write"
)

// StageError is a fatal failure tagged with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
