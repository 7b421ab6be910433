// Package table reads, augments and writes the CSV inventory processed by a report run.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// utf8BOM is prepended by spreadsheet exports and must not end up in the first column name.
const utf8BOM = "\ufeff"

// Common errors returned by the table package.
var (
	// ErrEmptyInput is returned when the input has no header line.
	ErrEmptyInput = errors.New("input has no header row")

	// ErrDuplicateColumn is returned when a column name occurs twice.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrMissingColumn is returned when a required column is not in the header.
	ErrMissingColumn = errors.New("column not found")

	// ErrTooManyFields is returned when a row has more fields than the header.
	ErrTooManyFields = errors.New("row has more fields than the header")
)

// Row maps column name to cell value.
type Row map[string]string

// Table is an ordered set of columns plus rows. Header is the single source
// of column order; Rows never carry order information.
type Table struct {
	Header []string
	Rows   []Row
}

// Read loads a CSV file. Failures are returned as *IOError naming the path.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	t, err := ReadFrom(f)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return t, nil
}

// ReadFrom parses CSV data whose first record is the header.
// Blank header cells are named "Unnamed: N". Rows shorter than the header
// are padded with empty values; longer rows are an error.
func ReadFrom(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	// spreadsheet exports drop trailing empty cells; short rows are padded below
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			header[i] = unnamedColumn(i)
		}
	}

	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("%w %q in header", ErrDuplicateColumn, name)
		}
		seen[name] = true
	}

	t := &Table{Header: append([]string(nil), header...)}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse row: %w", err)
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("parse row: %w on line %d: %d fields, header has %d",
				ErrTooManyFields, line, len(record), len(header))
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// unnamedColumn names a blank header cell by its 0-based position.
func unnamedColumn(i int) string {
	return "Unnamed: " + strconv.Itoa(i)
}

// HasColumn reports whether name is in the header.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrMissingColumn, name, strings.Join(t.Header, ", "))
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values, nil
}

// Records returns the header followed by every row as field slices in header order.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, append([]string(nil), t.Header...))
	for _, row := range t.Rows {
		record := make([]string, len(t.Header))
		for i, name := range t.Header {
			record[i] = row[name]
		}
		records = append(records, record)
	}
	return records
}
