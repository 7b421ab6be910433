package eox

import "time"

// Output column names for the milestone dates, in the order they are appended.
const (
	ColumnEndOfSale                   = "End Of Sale Date"
	ColumnEndOfSWMaintenance          = "End Of SW Maintenance Releases"
	ColumnEndOfRoutineFailureAnalysis = "End Of Routine Failure Analysis Date"
	ColumnEndOfSecurityVulSupport     = "End Of Security Vulnerability Support Date"
	ColumnLastDateOfSupport           = "Last Date Of Support"
)

// Columns lists the milestone columns in output order. Callers must not modify it.
var Columns = []string{
	ColumnEndOfSale,
	ColumnEndOfSWMaintenance,
	ColumnEndOfRoutineFailureAnalysis,
	ColumnEndOfSecurityVulSupport,
	ColumnLastDateOfSupport,
}

const (
	apiDateLayout    = "2006-01-02"
	outputDateLayout = "01/02/2006"
)

// MilestoneRecord holds the end-of-life dates for one serial number,
// already formatted for output. Empty means the service had no date.
type MilestoneRecord struct {
	EndOfSale                   string
	EndOfSWMaintenance          string
	EndOfRoutineFailureAnalysis string
	EndOfSecurityVulSupport     string
	LastDateOfSupport           string
}

// Values returns the dates in Columns order.
func (m MilestoneRecord) Values() []string {
	return []string{
		m.EndOfSale,
		m.EndOfSWMaintenance,
		m.EndOfRoutineFailureAnalysis,
		m.EndOfSecurityVulSupport,
		m.LastDateOfSupport,
	}
}

// IsZero reports whether the record carries no dates at all.
func (m MilestoneRecord) IsZero() bool {
	return m == MilestoneRecord{}
}

// FormatDate converts an EoX date (YYYY-MM-DD) to MM/DD/YYYY.
// Blank input yields blank output; anything unparseable is returned as is.
func FormatDate(value string) string {
	if value == "" {
		return ""
	}
	t, err := time.Parse(apiDateLayout, value)
	if err != nil {
		return value
	}
	return t.Format(outputDateLayout)
}
