package batch

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/eox-report/pkg/eox"
)

// Status is the outcome of looking up one serial number.
type Status int

const (
	// StatusFound means the service returned milestone data for the serial.
	StatusFound Status = iota
	// StatusNotFound means the service answered but had no data for the serial.
	StatusNotFound
	// StatusFailed means the serial's batch request failed.
	StatusFailed
	// StatusInvalid means the serial is malformed and was never sent.
	StatusInvalid
)

// String returns the lower-case status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	case StatusInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the lookup outcome for one serial. Record is only meaningful
// when Status is StatusFound.
type Result struct {
	Serial string
	Status Status
	Record eox.MilestoneRecord
	// Batch is the 1-based batch the serial was sent in, 0 for invalid serials.
	Batch int
}

// Found reports whether milestone data is available.
func (r Result) Found() bool {
	return r.Status == StatusFound
}

// BatchFetchError describes one failed batch. It is never fatal to a run.
type BatchFetchError struct {
	Batch   int
	Batches int
	Serials []string
	Err     error
}

// Error implements the error interface.
func (e *BatchFetchError) Error() string {
	return fmt.Sprintf("batch %d of %d (%s): %v", e.Batch, e.Batches, strings.Join(e.Serials, ","), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BatchFetchError) Unwrap() error {
	return e.Err
}

// Results holds one Result per distinct input serial.
type Results struct {
	order    []string
	bySerial map[string]Result

	// Batches is the number of batches sent.
	Batches int
	// Errors lists failed batches in the order they were sent.
	Errors []*BatchFetchError
}

func newResults() *Results {
	return &Results{bySerial: make(map[string]Result)}
}

func (r *Results) set(res Result) {
	if _, ok := r.bySerial[res.Serial]; !ok {
		r.order = append(r.order, res.Serial)
	}
	r.bySerial[res.Serial] = res
}

// Get returns the result for serial.
func (r *Results) Get(serial string) (Result, bool) {
	res, ok := r.bySerial[serial]
	return res, ok
}

// Milestones returns the milestone record for serial if it was found.
func (r *Results) Milestones(serial string) (eox.MilestoneRecord, bool) {
	res, ok := r.bySerial[serial]
	if !ok || res.Status != StatusFound {
		return eox.MilestoneRecord{}, false
	}
	return res.Record, true
}

// All returns every result in first-seen input order.
func (r *Results) All() []Result {
	out := make([]Result, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.bySerial[s])
	}
	return out
}

// Len returns the number of distinct serials.
func (r *Results) Len() int {
	return len(r.order)
}

// Count returns how many serials ended with the given status.
func (r *Results) Count(status Status) int {
	n := 0
	for _, res := range r.bySerial {
		if res.Status == status {
			n++
		}
	}
	return n
}
