package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OutputSuffix is appended to the input base name to form the output file name.
const OutputSuffix = "_output.csv"

// OutputPath derives the output file from the input file: same directory,
// extension replaced by OutputSuffix. "data/input.csv" -> "data/input_output.csv".
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + OutputSuffix
}

// WriteTo serializes the table as CSV.
func (t *Table) WriteTo(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

// Write replaces path with the table's CSV. The data goes to a temporary file
// in the same directory which is renamed over path only after a successful
// flush and sync; on failure path is left untouched and *IOError is returned.
func (t *Table) Write(path string) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := t.WriteTo(tmp); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	return nil
}
