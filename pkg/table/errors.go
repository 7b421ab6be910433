package table

import "fmt"

// IOError is a fatal failure to read the input or write the output file.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *IOError) Unwrap() error {
	return e.Err
}
