package table

import (
	"fmt"

	"github.com/Sternrassler/eox-report/pkg/eox"
)

// MilestoneSource resolves a serial number to its milestone dates.
type MilestoneSource interface {
	Milestones(serial string) (eox.MilestoneRecord, bool)
}

// MergeStats summarizes a Merge.
type MergeStats struct {
	Rows        int
	Populated   int
	Placeholder int
}

// Merge appends the milestone columns (eox.Columns, in order) to every row.
// Rows whose serial has no record get empty strings, so every row keeps the
// same width and no row is dropped. The serial cell is used verbatim.
func Merge(t *Table, serialColumn string, src MilestoneSource) (MergeStats, error) {
	var stats MergeStats

	if !t.HasColumn(serialColumn) {
		return stats, fmt.Errorf("%w: %q", ErrMissingColumn, serialColumn)
	}
	for _, name := range eox.Columns {
		if t.HasColumn(name) {
			return stats, fmt.Errorf("%w: input already has %q", ErrDuplicateColumn, name)
		}
	}

	t.Header = append(t.Header, eox.Columns...)

	for _, row := range t.Rows {
		record, ok := src.Milestones(row[serialColumn])
		if ok {
			stats.Populated++
		} else {
			record = eox.MilestoneRecord{}
			stats.Placeholder++
		}

		for i, value := range record.Values() {
			row[eox.Columns[i]] = value
		}
		stats.Rows++
	}

	return stats, nil
}
